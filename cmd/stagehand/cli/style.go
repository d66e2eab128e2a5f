// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// Styler decorates report text for a terminal. Writers that are not
// terminals, and terminals with NO_COLOR set, get the text unchanged.
type Styler struct {
	output *termenv.Output
	plain  bool
}

// NewStyler returns a Styler for text written to w.
func NewStyler(w io.Writer) *Styler {
	output := termenv.NewOutput(w)
	return &Styler{
		output: output,
		plain:  output.EnvNoColor() || output.Profile == termenv.Ascii,
	}
}

// Heading renders a section title.
func (s *Styler) Heading(text string) string {
	if s.plain {
		return text
	}
	return s.output.String(text).Bold().String()
}

// Faint renders secondary detail such as versions and sources.
func (s *Styler) Faint(text string) string {
	if s.plain {
		return text
	}
	return s.output.String(text).Faint().String()
}

// Warning renders text in yellow.
func (s *Styler) Warning(text string) string {
	return s.color(text, "3")
}

// Failure renders text in red.
func (s *Styler) Failure(text string) string {
	return s.color(text, "1")
}

// Success renders text in green.
func (s *Styler) Success(text string) string {
	return s.color(text, "2")
}

func (s *Styler) color(text, ansi string) string {
	if s.plain {
		return text
	}
	return s.output.String(text).Foreground(s.output.Color(ansi)).String()
}

// Diff colors the lines of a unified diff or a change listing: "+"
// lines green, "-" lines red, "@@" hunk headers faint. File header
// lines ("---", "+++") are left alone.
func (s *Styler) Diff(text string) string {
	if s.plain {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	var builder strings.Builder
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		newline := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			builder.WriteString(line)
			continue
		case strings.HasPrefix(body, "+"):
			body = s.Success(body)
		case strings.HasPrefix(body, "-"):
			body = s.Failure(body)
		case strings.HasPrefix(body, "@@"):
			body = s.Faint(body)
		}
		builder.WriteString(body)
		builder.WriteString(newline)
	}
	return builder.String()
}
