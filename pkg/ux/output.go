// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides styled terminal output for the mdp CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box    lipgloss.Style
	Border lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	Border: lipgloss.NewStyle().Foreground(ColorTealDeep),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Level controls how rich the output is.
type Level string

const (
	// LevelRich enables colors, icons, boxes and bordered tables.
	LevelRich Level = "rich"

	// LevelMinimal uses icons and borderless tables.
	LevelMinimal Level = "minimal"

	// LevelMachine outputs tab-separated plain text suitable for scripting.
	LevelMachine Level = "machine"
)

// ParseLevel converts a string to a Level. Unknown strings return false.
func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelRich, "":
		return LevelRich, true
	case LevelMinimal:
		return LevelMinimal, true
	case LevelMachine:
		return LevelMachine, true
	default:
		return LevelRich, false
	}
}

// Printer writes styled output at one Level.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	out   io.Writer
	level Level
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, level Level) *Printer {
	return &Printer{out: out, level: level}
}

// Level returns the output level.
func (p *Printer) Level() Level { return p.level }

// Title prints a styled title. Machine output omits it.
func (p *Printer) Title(text string) {
	if p.level == LevelMachine {
		return
	}
	fmt.Fprintln(p.out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.level {
	case LevelMachine:
		fmt.Fprintf(p.out, "OK: %s\n", text)
	case LevelMinimal:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch p.level {
	case LevelMachine:
		fmt.Fprintf(p.out, "WARN: %s\n", text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func (p *Printer) Error(text string) {
	switch p.level {
	case LevelMachine:
		fmt.Fprintf(p.out, "ERROR: %s\n", text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// KeyValue prints one labelled value.
func (p *Printer) KeyValue(key string, value any) {
	if p.level == LevelMachine {
		fmt.Fprintf(p.out, "%s\t%v\n", key, value)
		return
	}
	fmt.Fprintf(p.out, "%s %v\n", Styles.Muted.Render(key+":"), value)
}

// Box prints text in a rounded box
func (p *Printer) Box(title, content string) {
	if p.level != LevelRich {
		fmt.Fprintf(p.out, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.out, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
}

// Table prints rows under headers.
//
// Description:
//
//	Rich output draws a rounded, bordered table with a highlighted header.
//	Minimal output drops the border. Machine output is tab-separated with
//	the header on the first line.
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.level == LevelMachine {
		fmt.Fprintln(p.out, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(p.out, strings.Join(row, "\t"))
		}
		return
	}

	t := table.New().
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Highlight.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	if p.level == LevelRich {
		t = t.Border(lipgloss.RoundedBorder()).BorderStyle(Styles.Border)
	} else {
		t = t.Border(lipgloss.HiddenBorder())
	}
	fmt.Fprintln(p.out, t.Render())
}
