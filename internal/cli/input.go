// Package cli reads search input from a terminal and prints the results a session publishes.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bastiangx/dotsearch/pkg/config"
	"github.com/bastiangx/dotsearch/pkg/query"
	"github.com/charmbracelet/log"
)

const maxLineParts = 5

// ErrTooManyParts is returned by ParseLine for lines with more than five fields.
var ErrTooManyParts = errors.New("too many '|' separated parts")

// Session is the part of a coordinator the CLI drives.
type Session interface {
	SetInput(query.RawInput)
	Retry() error
	Subscribe() (<-chan query.Result, func())
	Wait(ctx context.Context) error
	Stats() map[string]int
}

// InputHandler feeds stdin lines into a Session and prints what it publishes.
// Each line is `words | prefixes | postfixes | min | max`; trailing parts may
// be left out and then fall back to the configured defaults.
type InputHandler struct {
	session   Session
	in        io.Reader
	render    *Renderer
	defaults  query.RawInput
	showStats bool
	lines     int
}

// NewInputHandler creates an InputHandler reading from in and printing to out.
func NewInputHandler(session Session, in io.Reader, out io.Writer, cfg config.CliConfig) *InputHandler {
	return &InputHandler{
		session: session,
		in:      in,
		render:  NewRenderer(out),
		defaults: query.RawInput{
			MinWordCount: cfg.DefaultMinWords,
			MaxWordCount: cfg.DefaultMaxWords,
		},
		showStats: cfg.ShowStats,
	}
}

// Start runs the input loop until in is exhausted, ":q" is entered or ctx is done.
// Before returning it waits for the outstanding search so the last result is printed.
func (h *InputHandler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, unsubscribe := h.session.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for res := range results {
			h.render.Result(res)
			if h.showStats {
				h.render.Stats(h.session.Stats())
			}
		}
	}()
	defer func() {
		unsubscribe()
		<-printed
	}()

	h.render.Banner()
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(h.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		h.render.Prompt()
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			return h.session.Wait(ctx)
		case line := <-lines:
			if quit := h.handleLine(line); quit {
				return h.session.Wait(ctx)
			}
		}
	}
}

// handleLine processes one input line and reports whether the loop should stop.
func (h *InputHandler) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	h.lines++

	switch line {
	case ":q", ":quit":
		return true
	case ":stats":
		h.render.Stats(h.session.Stats())
		return false
	case ":retry":
		if err := h.session.Retry(); err != nil {
			h.render.Errorf("retry: %v", err)
		}
		return false
	}

	input, err := ParseLine(line, h.defaults)
	if err != nil {
		h.render.Errorf("%v", err)
		return false
	}
	log.Debug("input", "line", h.lines, "words", input.Words, "min", input.MinWordCount, "max", input.MaxWordCount)
	h.session.SetInput(input)
	return false
}

// ParseLine splits a `words | prefixes | postfixes | min | max` line into a
// RawInput. Missing or blank count fields keep the values from defaults.
func ParseLine(line string, defaults query.RawInput) (query.RawInput, error) {
	parts := strings.Split(line, "|")
	if len(parts) > maxLineParts {
		return query.RawInput{}, ErrTooManyParts
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	input := query.RawInput{
		Words:        parts[0],
		MinWordCount: defaults.MinWordCount,
		MaxWordCount: defaults.MaxWordCount,
	}
	if len(parts) > 1 {
		input.Prefixes = parts[1]
	}
	if len(parts) > 2 {
		input.Postfixes = parts[2]
	}
	if len(parts) > 3 && parts[3] != "" {
		n, err := strconv.Atoi(parts[3])
		if err != nil {
			return query.RawInput{}, fmt.Errorf("invalid min word count %q", parts[3])
		}
		input.MinWordCount = n
	}
	if len(parts) > 4 && parts[4] != "" {
		n, err := strconv.Atoi(parts[4])
		if err != nil {
			return query.RawInput{}, fmt.Errorf("invalid max word count %q", parts[4])
		}
		input.MaxWordCount = n
	}
	return input, nil
}
