package workflow

import (
	"errors"
	"fmt"

	"github.com/accelf/driveshare/share"
)

var (
	// ErrInvalidTransition indicates an event that is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrDestinationHeld is returned when selecting (or dismissing the
	// selection of) a destination while one is already held.
	ErrDestinationHeld = errors.New("destination already selected")
)

// State is the state of a share workflow.
type State uint

const (
	Idle State = iota
	Selected
	Cancelled
	InProgress
	Completed
	Finished
	Failed
	maxState
)

func (s State) Valid() bool {
	return s < maxState
}

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Selected:
		return "Selected"
	case Cancelled:
		return "Cancelled"
	case InProgress:
		return "InProgress"
	case Completed:
		return "Completed"
	case Finished:
		return "Finished"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("unknown state: %d", s)
	}
}

// MarshalText encodes s as its name.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid state: %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i := Idle; i < maxState; i++ {
		if i.String() == string(text) {
			*s = i
			return nil
		}
	}
	return fmt.Errorf("invalid state: %q", text)
}

// EventKind is the type of a workflow event.
type EventKind uint

const (
	// EventPicked is a destination selection. Destination is set.
	EventPicked EventKind = iota + 1
	// EventDismissed is a cancelled destination selection.
	EventDismissed
	// EventCopyStarted is emitted once the copy task starts.
	EventCopyStarted
	// EventCopyCompleted is emitted once all content is written.
	EventCopyCompleted
	// EventCopyFailed is emitted if the copy fails. Err is set.
	EventCopyFailed
	// EventDelayElapsed is emitted once the completion has been displayed long enough.
	EventDelayElapsed
)

func (k EventKind) String() string {
	switch k {
	case EventPicked:
		return "Picked"
	case EventDismissed:
		return "Dismissed"
	case EventCopyStarted:
		return "CopyStarted"
	case EventCopyCompleted:
		return "CopyCompleted"
	case EventCopyFailed:
		return "CopyFailed"
	case EventDelayElapsed:
		return "DelayElapsed"
	default:
		return fmt.Sprintf("unknown event: %d", k)
	}
}

// Event is an input to Update.
type Event struct {
	Kind        EventKind
	Destination string
	Err         error
}

// Snapshot is the complete state of a workflow.
type Snapshot struct {
	State   State         `json:"state"`
	Request share.Request `json:"request"`

	// Destination is the selected destination URI.
	// It is only set in Selected, InProgress, Completed and Finished.
	Destination string `json:"destination,omitempty"`

	// Err is the copy failure in the Failed state.
	Err error `json:"-"`
}

// RetryEnabled reports whether a destination may be selected.
// That is exactly when no destination is held.
func (s Snapshot) RetryEnabled() bool {
	switch s.State {
	case Idle, Cancelled, Failed:
		return true
	default:
		return false
	}
}

func invalid(s Snapshot, ev Event) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev.Kind, s.State)
}

// Update applies ev to s and returns the resulting snapshot.
// On error s is returned unchanged.
func Update(s Snapshot, ev Event) (Snapshot, error) {
	next := s
	switch ev.Kind {
	case EventPicked:
		if !s.RetryEnabled() {
			return s, fmt.Errorf("%w: %s", ErrDestinationHeld, s.Destination)
		}
		if ev.Destination == "" {
			return s, fmt.Errorf("%w: empty destination", ErrInvalidTransition)
		}
		next.State, next.Destination, next.Err = Selected, ev.Destination, nil
	case EventDismissed:
		if !s.RetryEnabled() {
			return s, fmt.Errorf("%w: %s", ErrDestinationHeld, s.Destination)
		}
		next.State, next.Destination, next.Err = Cancelled, "", nil
	case EventCopyStarted:
		if s.State != Selected {
			return s, invalid(s, ev)
		}
		next.State = InProgress
	case EventCopyCompleted:
		if s.State != InProgress {
			return s, invalid(s, ev)
		}
		next.State = Completed
	case EventCopyFailed:
		if s.State != InProgress {
			return s, invalid(s, ev)
		}
		next.State, next.Destination, next.Err = Failed, "", ev.Err
	case EventDelayElapsed:
		if s.State != Completed {
			return s, invalid(s, ev)
		}
		next.State = Finished
	default:
		return s, invalid(s, ev)
	}
	return next, nil
}
