// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procctl

import (
	"bufio"
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
)

// Stream identifies a child output stream.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line of child output without its line terminator.
type Line struct {
	Stream Stream
	Text   string
}

// LineClass is what a line classifier decided about a line.
type LineClass int

const (
	// LinePassthrough lines are forwarded unchanged.
	LinePassthrough LineClass = iota
	// LineProgress lines report progress and are not forwarded.
	LineProgress
	// LineFatal lines report an error the launch should fail with.
	LineFatal
	// LineIgnore lines are dropped.
	LineIgnore
)

// LineClassifier classifies child output. detail carries the
// progress value for progress lines.
type LineClassifier interface {
	Classify(stream Stream, text string) (class LineClass, detail string)
}

// PatternClassifier classifies lines with regular expressions. The
// first capture group of Progress is the reported detail. Nil patterns
// never match.
type PatternClassifier struct {
	Progress *regexp.Regexp
	Fatal    *regexp.Regexp
	Ignore   *regexp.Regexp
}

func (c *PatternClassifier) Classify(stream Stream, text string) (LineClass, string) {
	if c.Ignore != nil && c.Ignore.MatchString(text) {
		return LineIgnore, ""
	}
	if c.Progress != nil {
		if match := c.Progress.FindStringSubmatch(text); match != nil {
			detail := ""
			if len(match) > 1 {
				detail = match[1]
			}
			return LineProgress, detail
		}
	}
	if c.Fatal != nil && c.Fatal.MatchString(text) {
		return LineFatal, ""
	}
	return LinePassthrough, ""
}

type streamEvent struct {
	line   Line
	closed bool
	err    error
}

// Multiplex reads every stream concurrently and calls handle for each
// line, one call at a time, until all streams are closed. Lines of one
// stream are handled in order. A read error other than EOF ends that
// stream and is returned after the others close. When ctx is done,
// Multiplex stops handling lines and returns ctx.Err(); the readers
// stop after their next line. Callers that go on to wait for the
// writer should drain the streams (see [Child.Drain]).
func Multiplex(ctx context.Context, streams map[Stream]io.Reader, handle func(Line)) error {
	events := make(chan streamEvent)
	for stream, reader := range streams {
		go readLines(ctx, stream, reader, events)
	}

	var errs []error
	for open := len(streams); open > 0; {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case event := <-events:
			if event.closed {
				open--
				if event.err != nil {
					errs = append(errs, event.err)
				}
				continue
			}
			handle(event.line)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

func readLines(ctx context.Context, stream Stream, reader io.Reader, events chan<- streamEvent) {
	send := func(event streamEvent) bool {
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	buffered := bufio.NewReader(reader)
	for {
		text, err := buffered.ReadString('\n')
		if text != "" {
			text = strings.TrimRight(text, "\r\n")
			if !send(streamEvent{line: Line{Stream: stream, Text: text}}) {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			send(streamEvent{closed: true, err: err})
			return
		}
	}
}
