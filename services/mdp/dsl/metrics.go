// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dsl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rulesCompiledTotal counts fully specified trees that were flattened.
	//
	// Labels:
	//   - status: "committed" or "rejected"
	rulesCompiledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aleutian",
			Subsystem: "mdp_dsl",
			Name:      "rules_compiled_total",
			Help:      "Total fully specified rules flattened by status",
		},
		[]string{"status"},
	)

	// transitionsCommittedTotal counts records committed by compilation.
	transitionsCommittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aleutian",
			Subsystem: "mdp_dsl",
			Name:      "transitions_committed_total",
			Help:      "Total transition records committed from rules",
		},
	)

	// buildErrorsTotal counts builder failures.
	//
	// Labels:
	//   - kind: "syntax", "parse", "weight", or "commit"
	buildErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aleutian",
			Subsystem: "mdp_dsl",
			Name:      "build_errors_total",
			Help:      "Total builder errors by kind",
		},
		[]string{"kind"},
	)
)
