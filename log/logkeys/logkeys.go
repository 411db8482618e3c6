// Package logkeys defines some static logging keys for consistent structured logging output.
// Mostly exists as a mental aid when drafting log messages.
package logkeys

const (
	Message = "msg"
	Error   = "err"

	// a share session identifier (engine-assigned).
	SessionID = "session_id"

	MediaType   = "media_type"
	Source      = "source"
	Destination = "destination"

	// workflow state names, before and after a transition.
	State     = "state"
	PrevState = "prev_state"

	// URI scheme of a content resolver.
	Scheme = "scheme"

	// a context-dependent numerical count/length of something
	GenericCount = "count"
)
