// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders solver runs as standalone HTML charts.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ErrMismatchedValues is returned when States and Values differ in length.
var ErrMismatchedValues = errors.New("states and values differ in length")

// Run is one solver run to chart.
type Run struct {
	// Title heads the page.
	Title string

	// Mode is the iterated table, "v" or "q".
	Mode string

	// Deltas holds the largest element change of every iteration.
	Deltas []float64

	// States and Values are the converged state values in index order.
	States []string
	Values []float64
}

// Write renders run as an HTML page with a convergence line chart and a
// state value bar chart.
func Write(w io.Writer, run Run) error {
	if len(run.States) != len(run.Values) {
		return fmt.Errorf("%w: %d states, %d values", ErrMismatchedValues, len(run.States), len(run.Values))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    run.Title,
			Subtitle: fmt.Sprintf("mode %s, %d iterations", run.Mode, len(run.Deltas)),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	steps := make([]string, len(run.Deltas))
	deltas := make([]opts.LineData, len(run.Deltas))
	for i, d := range run.Deltas {
		steps[i] = fmt.Sprintf("%d", i+1)
		deltas[i] = opts.LineData{Value: d}
	}
	line.SetXAxis(steps).AddSeries("max change", deltas)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "State values"}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)
	values := make([]opts.BarData, len(run.Values))
	for i, v := range run.Values {
		values[i] = opts.BarData{Value: v}
	}
	bar.SetXAxis(run.States).AddSeries("V", values)

	page := components.NewPage()
	page.AddCharts(line, bar)
	return page.Render(w)
}

// WriteFile renders run to path, creating parent directories.
func WriteFile(path string, run Run) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create chart directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := Write(f, run); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
