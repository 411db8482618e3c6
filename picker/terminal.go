package picker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/accelf/driveshare/content"
	"github.com/accelf/driveshare/log/logkeys"

	"github.com/micromdm/nanolib/log"
)

// ErrNoCandidates is returned when no resource under the root is
// compatible with the requested media type.
var ErrNoCandidates = errors.New("no compatible destinations")

// Resolver can open and list resources.
type Resolver interface {
	content.Resolver
	content.Lister
}

// Terminal prompts on a text terminal with a numbered menu of the
// resources under a root container URI.
type Terminal struct {
	in     *bufio.Reader
	out    io.Writer

	// lines is fed by a single reader goroutine started on first use
	// so that a cancelled Pick does not lose the next line.
	linesOnce sync.Once
	lines     chan line

	r      Resolver
	roots  []string
	logger log.Logger
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) TerminalOption {
	return func(t *Terminal) {
		t.logger = logger
	}
}

// NewTerminal creates a new terminal picker listing the containers roots using r.
func NewTerminal(in io.Reader, out io.Writer, r Resolver, roots []string, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		r:      r,
		roots:  roots,
		logger: log.NopLogger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Candidates returns the resources under the roots compatible with mediaType.
// Resources whose content cannot be sniffed are skipped.
func (t *Terminal) Candidates(ctx context.Context, mediaType string) ([]string, error) {
	var ret []string
	for _, root := range t.roots {
		uris, err := t.r.List(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", root, err)
		}
		for _, uri := range uris {
			ok, err := content.DetectCompatible(ctx, t.r, uri, mediaType)
			if err != nil {
				t.logger.Debug(
					logkeys.Message, "detecting media type",
					logkeys.Destination, uri,
					logkeys.Error, err,
				)
				continue
			}
			if ok {
				ret = append(ret, uri)
			}
		}
	}
	return ret, nil
}

// Pick lists the candidates and reads a choice.
// An empty line, "q" or the end of input cancel.
func (t *Terminal) Pick(ctx context.Context, mediaType string) (Selection, error) {
	candidates, err := t.Candidates(ctx, mediaType)
	if err != nil {
		return Selection{}, err
	}
	if len(candidates) < 1 {
		return Selection{}, fmt.Errorf("%w: %s", ErrNoCandidates, mediaType)
	}

	fmt.Fprintf(t.out, "Select a destination (%s):\n", mediaType)
	for i, uri := range candidates {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, uri)
	}

	for {
		if err = ctx.Err(); err != nil {
			return Selection{}, err
		}
		fmt.Fprintf(t.out, "Number [1-%d], empty to cancel: ", len(candidates))
		var ln line
		select {
		case ln = <-t.readLines():
		case <-ctx.Done():
			return Selection{}, ctx.Err()
		}
		input, err := ln.s, ln.err
		if err != nil && !errors.Is(err, io.EOF) {
			return Selection{}, fmt.Errorf("reading choice: %w", err)
		}
		choice := strings.TrimSpace(input)
		if choice == "" || strings.EqualFold(choice, "q") {
			return Cancelled, nil
		}
		if n, convErr := strconv.Atoi(choice); convErr == nil && n >= 1 && n <= len(candidates) {
			return Selection{URI: candidates[n-1]}, nil
		}
		if errors.Is(err, io.EOF) {
			return Cancelled, nil
		}
		fmt.Fprintf(t.out, "Invalid choice %q\n", choice)
	}
}

// Confirm prints prompt and reports whether the answer is yes.
// Anything but "y" or "yes", including the end of input, is a no.
func (t *Terminal) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprint(t.out, prompt)
	var ln line
	select {
	case ln = <-t.readLines():
	case <-ctx.Done():
		return false, ctx.Err()
	}
	if ln.err != nil && !errors.Is(ln.err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", ln.err)
	}
	switch strings.ToLower(strings.TrimSpace(ln.s)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

type line struct {
	s   string
	err error
}

// readLines returns the channel of input lines.
// After the first read error the channel yields io.EOF forever.
func (t *Terminal) readLines() <-chan line {
	t.linesOnce.Do(func() {
		t.lines = make(chan line)
		go func() {
			for {
				s, err := t.in.ReadString('\n')
				t.lines <- line{s: s, err: err}
				if err != nil {
					break
				}
			}
			for {
				t.lines <- line{err: io.EOF}
			}
		}()
	})
	return t.lines
}
