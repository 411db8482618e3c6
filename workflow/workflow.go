package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/accelf/driveshare/content"
	"github.com/accelf/driveshare/log/logkeys"
	"github.com/accelf/driveshare/picker"
	"github.com/accelf/driveshare/share"

	"github.com/micromdm/nanolib/log"
	"golang.org/x/sync/errgroup"
)

// DefaultFinishDelay is how long a completed copy is displayed before
// the workflow finishes.
const DefaultFinishDelay = 2 * time.Second

// ErrClosed is returned when selecting a destination on a closed workflow.
var ErrClosed = errors.New("workflow closed")

// Workflow is a single share-and-copy workflow.
type Workflow struct {
	req         share.Request
	resolver    content.Resolver
	logger      log.Logger
	finishDelay time.Duration
	observers   []func(Snapshot)

	mu        sync.Mutex
	snap      Snapshot
	seq       uint64        // number of applied transitions
	delivered Snapshot      // latest snapshot all observers have seen
	changed   chan struct{} // closed and replaced whenever delivered changes
	closed    bool

	// transition seq is delivered once notified reaches seq-1.
	// mu is never held while waiting for a turn or calling observers.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	notified   uint64

	finished chan struct{}

	// the copy task runs in g under ctx; both are owned by the workflow.
	ctx    context.Context
	cancel context.CancelFunc
	g      errgroup.Group
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the workflow logger.
func WithLogger(logger log.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// WithFinishDelay overrides DefaultFinishDelay.
func WithFinishDelay(d time.Duration) Option {
	return func(w *Workflow) {
		w.finishDelay = d
	}
}

// WithObserver adds f to be called with the snapshot after every transition.
// Observers are called in transition order, one at a time. They may read
// the workflow but must not call its Select, Dismiss or
// RequestDestination methods: those wait for the observer to return.
// The state read during an observer call may be ahead of its snapshot.
func WithObserver(f func(Snapshot)) Option {
	return func(w *Workflow) {
		w.observers = append(w.observers, f)
	}
}

// Start validates req and returns a new Idle workflow for it.
// The copy task is bound to ctx.
// Resources of the workflow are released by Close.
func Start(ctx context.Context, req share.Request, resolver content.Resolver, opts ...Option) (*Workflow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if resolver == nil {
		return nil, errors.New("nil resolver")
	}
	w := &Workflow{
		req:         req,
		resolver:    resolver,
		logger:      log.NopLogger,
		finishDelay: DefaultFinishDelay,
		snap:        Snapshot{State: Idle, Request: req},
		delivered:   Snapshot{State: Idle, Request: req},
		changed:     make(chan struct{}),
		finished:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.notifyCond = sync.NewCond(&w.notifyMu)
	w.logger = w.logger.With(
		logkeys.MediaType, req.MediaType,
		logkeys.Source, req.Source,
	)
	w.ctx, w.cancel = context.WithCancel(ctx)
	return w, nil
}

// Snapshot returns the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// RetryEnabled reports whether a destination may currently be selected.
func (w *Workflow) RetryEnabled() bool {
	return w.Snapshot().RetryEnabled()
}

// Finished is closed once the workflow reaches Finished.
// The owner should then dismiss the workflow.
func (w *Workflow) Finished() <-chan struct{} {
	return w.finished
}

// apply updates the state with ev and notifies observers.
// If start is not nil it is called while the state lock is still held
// after a successful update.
// apply returns once every observer has been called with the new state.
func (w *Workflow) apply(ev Event, start func()) (Snapshot, error) {
	w.mu.Lock()
	prev := w.snap
	if ev.Kind == EventPicked && w.closed {
		w.mu.Unlock()
		return prev, ErrClosed
	}
	next, err := Update(prev, ev)
	if err != nil {
		w.mu.Unlock()
		return prev, err
	}
	w.snap = next
	w.seq++
	seq := w.seq
	if start != nil {
		start()
	}
	w.mu.Unlock()

	w.deliver(seq, prev, next)
	return next, nil
}

// deliver waits for the turn of transition seq, calls the observers and
// wakes waiters.
func (w *Workflow) deliver(seq uint64, prev, next Snapshot) {
	w.notifyMu.Lock()
	for w.notified != seq-1 {
		w.notifyCond.Wait()
	}
	w.notifyMu.Unlock()

	w.logger.Debug(
		logkeys.Message, "state transition",
		logkeys.PrevState, prev.State,
		logkeys.State, next.State,
	)
	for _, f := range w.observers {
		f(next)
	}

	w.mu.Lock()
	w.delivered = next
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()

	w.notifyMu.Lock()
	w.notified = seq
	w.notifyCond.Broadcast()
	w.notifyMu.Unlock()
}

// Select selects dest and starts copying the shared content to it.
// ErrDestinationHeld is returned if a destination is already selected.
func (w *Workflow) Select(dest string) error {
	_, err := w.apply(Event{Kind: EventPicked, Destination: dest}, func() {
		w.g.Go(func() error {
			w.run(dest)
			return nil
		})
	})
	return err
}

// Dismiss records a cancelled destination selection.
func (w *Workflow) Dismiss() error {
	_, err := w.apply(Event{Kind: EventDismissed}, nil)
	if err == nil {
		w.logger.Info(logkeys.Message, "destination selection cancelled")
	}
	return err
}

// RequestDestination prompts p for a destination and applies the outcome.
func (w *Workflow) RequestDestination(ctx context.Context, p picker.Picker) error {
	snap := w.Snapshot()
	if !snap.RetryEnabled() {
		return fmt.Errorf("%w: %s", ErrDestinationHeld, snap.Destination)
	}
	sel, err := p.Pick(ctx, snap.Request.MediaType)
	if err != nil {
		return fmt.Errorf("picking destination: %w", err)
	}
	if sel.Cancelled {
		return w.Dismiss()
	}
	return w.Select(sel.URI)
}

// run is the copy task for one selected destination.
func (w *Workflow) run(dest string) {
	logger := w.logger.With(logkeys.Destination, dest)
	if _, err := w.apply(Event{Kind: EventCopyStarted}, nil); err != nil {
		logger.Info(logkeys.Message, "starting copy", logkeys.Error, err)
		return
	}

	n, err := content.Copy(w.ctx, w.resolver, w.req.Source, dest)
	if err != nil {
		logger.Info(logkeys.Message, "copying", logkeys.Error, err)
		if _, err = w.apply(Event{Kind: EventCopyFailed, Err: err}, nil); err != nil {
			logger.Info(logkeys.Message, "recording copy failure", logkeys.Error, err)
		}
		return
	}
	if _, err = w.apply(Event{Kind: EventCopyCompleted}, nil); err != nil {
		logger.Info(logkeys.Message, "completing copy", logkeys.Error, err)
		return
	}
	logger.Info(logkeys.Message, "copied", logkeys.GenericCount, n)

	timer := time.NewTimer(w.finishDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-w.ctx.Done():
		return
	}
	if _, err = w.apply(Event{Kind: EventDelayElapsed}, nil); err != nil {
		logger.Info(logkeys.Message, "finishing", logkeys.Error, err)
		return
	}
	close(w.finished)
}

// inFlight reports whether a copy task may still change s.
func inFlight(s State) bool {
	return s == Selected || s == InProgress || s == Completed
}

// Wait blocks until no copy is in flight (that is the workflow is not
// Selected, InProgress or Completed) or ctx is done.
// Observers have been called with the returned snapshot.
func (w *Workflow) Wait(ctx context.Context) (Snapshot, error) {
	for {
		w.mu.Lock()
		snap, changed := w.delivered, w.changed
		w.mu.Unlock()
		if !inFlight(snap.State) {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Close cancels any running copy task and waits for it to return.
// The state is left as-is; an interrupted copy ends Failed.
func (w *Workflow) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
	return w.g.Wait()
}
