// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package solver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// solvesTotal counts fixed-point runs.
	//
	// Labels:
	//   - mode: "v" or "q"
	//   - status: "converged", "diverged", or "cancelled"
	solvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aleutian",
			Subsystem: "mdp_solver",
			Name:      "solves_total",
			Help:      "Total value iteration runs by mode and status",
		},
		[]string{"mode", "status"},
	)

	// iterationsHistogram tracks iterations needed per run.
	iterationsHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aleutian",
			Subsystem: "mdp_solver",
			Name:      "iterations",
			Help:      "Iterations performed per value iteration run",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"mode"},
	)

	// solveDuration tracks wall time per run.
	solveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aleutian",
			Subsystem: "mdp_solver",
			Name:      "duration_seconds",
			Help:      "Duration of value iteration runs",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"mode"},
	)
)
