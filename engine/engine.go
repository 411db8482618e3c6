// Package engine manages share sessions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/accelf/driveshare/content"
	"github.com/accelf/driveshare/log/logkeys"
	"github.com/accelf/driveshare/share"
	"github.com/accelf/driveshare/utils/uuid"
	"github.com/accelf/driveshare/workflow"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoSuchSession = errors.New("no such session")
	ErrClosed        = errors.New("engine closed")
)

func NewErrNoSuchSession(id string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchSession, id)
}

// Engine runs a share workflow per session.
// Sessions are dropped once their workflow finishes.
type Engine struct {
	resolver content.Resolver

	sessionsMu sync.RWMutex
	sessions   map[string]*workflow.Workflow
	closed     bool

	logger      log.Logger
	ider        uuid.IDer
	finishDelay time.Duration
	observer    func(id string, s workflow.Snapshot)

	// workflows are bound to ctx rather than to the starting request.
	ctx    context.Context
	cancel context.CancelFunc
	g      errgroup.Group
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDer sets the session ID generator.
func WithIDer(ider uuid.IDer) Option {
	return func(e *Engine) {
		e.ider = ider
	}
}

// WithFinishDelay sets the finish delay of every session workflow.
func WithFinishDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.finishDelay = d
	}
}

// WithObserver sets f to be called with every session state transition.
func WithObserver(f func(id string, s workflow.Snapshot)) Option {
	return func(e *Engine) {
		e.observer = f
	}
}

// New creates a new engine copying with resolver.
func New(resolver content.Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:    resolver,
		sessions:    make(map[string]*workflow.Workflow),
		logger:      log.NopLogger,
		ider:        uuid.NewUUID(),
		finishDelay: workflow.DefaultFinishDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// StartShare starts a new session for the shared content in intent.
// An error wrapping share.ErrMissingMetadata is returned if the intent
// lacks the media type or the source.
func (e *Engine) StartShare(ctx context.Context, intent *share.Intent) (string, workflow.Snapshot, error) {
	req, err := share.FromIntent(intent)
	if err != nil {
		return "", workflow.Snapshot{}, err
	}

	id := e.ider.ID()
	logger := ctxlog.Logger(ctx, e.logger).With(logkeys.SessionID, id)

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithFinishDelay(e.finishDelay),
	}
	if e.observer != nil {
		opts = append(opts, workflow.WithObserver(func(s workflow.Snapshot) {
			e.observer(id, s)
		}))
	}

	e.sessionsMu.Lock()
	defer e.sessionsMu.Unlock()
	if e.closed {
		return "", workflow.Snapshot{}, ErrClosed
	}
	if _, ok := e.sessions[id]; ok {
		return "", workflow.Snapshot{}, fmt.Errorf("duplicate session id: %s", id)
	}
	w, err := workflow.Start(e.ctx, req, e.resolver, opts...)
	if err != nil {
		return "", workflow.Snapshot{}, err
	}
	e.sessions[id] = w
	e.g.Go(func() error {
		e.reap(id, w)
		return nil
	})

	logger.Debug(logkeys.Message, "started session")
	return id, w.Snapshot(), nil
}

// reap drops the session id once w finishes or the engine is closed.
func (e *Engine) reap(id string, w *workflow.Workflow) {
	select {
	case <-w.Finished():
	case <-e.ctx.Done():
	}
	e.sessionsMu.Lock()
	if e.sessions[id] == w {
		delete(e.sessions, id)
	}
	e.sessionsMu.Unlock()
	if err := w.Close(); err != nil {
		e.logger.Info(logkeys.Message, "closing session", logkeys.SessionID, id, logkeys.Error, err)
	}
	e.logger.Debug(logkeys.Message, "dropped session", logkeys.SessionID, id)
}

func (e *Engine) session(id string) (*workflow.Workflow, error) {
	e.sessionsMu.RLock()
	defer e.sessionsMu.RUnlock()
	w, ok := e.sessions[id]
	if !ok {
		return nil, NewErrNoSuchSession(id)
	}
	return w, nil
}

// Session returns the current snapshot of session id.
func (e *Engine) Session(id string) (workflow.Snapshot, error) {
	w, err := e.session(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return w.Snapshot(), nil
}

// Sessions returns the sorted IDs of all live sessions.
func (e *Engine) Sessions() []string {
	e.sessionsMu.RLock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.sessionsMu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Select selects dest as the destination of session id and starts the copy.
// The returned snapshot is taken right after the selection was applied
// and may already reflect copy progress.
func (e *Engine) Select(ctx context.Context, id, dest string) (workflow.Snapshot, error) {
	w, err := e.session(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	if err = w.Select(dest); err != nil {
		return w.Snapshot(), err
	}
	ctxlog.Logger(ctx, e.logger).Info(
		logkeys.Message, "destination selected",
		logkeys.SessionID, id,
		logkeys.Destination, dest,
	)
	return w.Snapshot(), nil
}

// Dismiss records a cancelled destination selection for session id.
func (e *Engine) Dismiss(ctx context.Context, id string) (workflow.Snapshot, error) {
	w, err := e.session(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	if err = w.Dismiss(); err != nil {
		return w.Snapshot(), err
	}
	return w.Snapshot(), nil
}

// Wait waits for the copy of session id to settle.
// See workflow.Workflow.Wait.
func (e *Engine) Wait(ctx context.Context, id string) (workflow.Snapshot, error) {
	w, err := e.session(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return w.Wait(ctx)
}

// Close stops accepting sessions, cancels every running copy and waits
// for all sessions to be dropped.
func (e *Engine) Close() error {
	e.sessionsMu.Lock()
	e.closed = true
	e.sessionsMu.Unlock()
	e.cancel()
	return e.g.Wait()
}
