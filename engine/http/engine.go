// Package http contains HTTP handlers that work with the share engine.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/accelf/driveshare/engine"
	"github.com/accelf/driveshare/http/api"
	"github.com/accelf/driveshare/log/logkeys"
	"github.com/accelf/driveshare/share"
	"github.com/accelf/driveshare/workflow"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

// maxBodySize limits request bodies. Shares carry URIs, not content.
const maxBodySize = 64 * 1024

var (
	ErrNoID          = errors.New("missing id parameter")
	ErrNoDestination = errors.New("no destination provided")
	ErrNoEngine      = errors.New("missing share engine")
)

type ShareStarter interface {
	StartShare(ctx context.Context, intent *share.Intent) (string, workflow.Snapshot, error)
}

type SessionGetter interface {
	Session(id string) (workflow.Snapshot, error)
}

type DestinationSelector interface {
	Select(ctx context.Context, id, dest string) (workflow.Snapshot, error)
	Dismiss(ctx context.Context, id string) (workflow.Snapshot, error)
}

// Session is the JSON representation of a share session.
type Session struct {
	ID string `json:"id"`
	workflow.Snapshot
	RetryEnabled bool   `json:"retry_enabled"`
	Error        string `json:"error,omitempty"`
}

func newSession(id string, s workflow.Snapshot) *Session {
	sess := &Session{ID: id, Snapshot: s, RetryEnabled: s.RetryEnabled()}
	if s.Err != nil {
		sess.Error = s.Err.Error()
	}
	return sess
}

// statusCode maps engine and workflow errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, share.ErrMissingMetadata), errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoSuchSession):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrDestinationHeld):
		return http.StatusConflict
	case errors.Is(err, engine.ErrClosed), errors.Is(err, workflow.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("decoding json body: %w", err)
	}
	return nil
}

func writeSession(w http.ResponseWriter, logger log.Logger, status int, sess *Session) {
	if err := api.JSON(w, sess, status); err != nil {
		logger.Info(logkeys.Message, "encoding json to body", logkeys.Error, err)
	}
}

// StartShareHandler creates a HandlerFunc that starts a share session
// from the JSON intent in the request body.
func StartShareHandler(starter ShareStarter, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if starter == nil {
			logger.Info(logkeys.Message, "starting share", logkeys.Error, ErrNoEngine)
			api.JSONError(w, ErrNoEngine, 0)
			return
		}

		intent := new(share.Intent)
		if err := decodeJSON(w, r, intent); err != nil {
			logger.Info(logkeys.Message, "starting share", logkeys.Error, err)
			api.JSONError(w, err, http.StatusBadRequest)
			return
		}

		id, snap, err := starter.StartShare(r.Context(), intent)
		if err != nil {
			logger.Info(logkeys.Message, "starting share", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}

		logger.Debug(
			logkeys.Message, "started share",
			logkeys.SessionID, id,
			logkeys.MediaType, snap.Request.MediaType,
		)
		writeSession(w, logger, http.StatusCreated, newSession(id, snap))
	}
}

// GetShareHandler creates a HandlerFunc that returns the state of a session.
func GetShareHandler(getter SessionGetter, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if getter == nil {
			logger.Info(logkeys.Message, "get share", logkeys.Error, ErrNoEngine)
			api.JSONError(w, ErrNoEngine, 0)
			return
		}

		id := flow.Param(r.Context(), "id")
		if id == "" {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, ErrNoID)
			api.JSONError(w, ErrNoID, http.StatusBadRequest)
			return
		}

		snap, err := getter.Session(id)
		if err != nil {
			logger.Info(logkeys.Message, "get share", logkeys.SessionID, id, logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		writeSession(w, logger, http.StatusOK, newSession(id, snap))
	}
}

// SelectDestinationHandler creates a HandlerFunc that selects the
// destination in the JSON request body for a session.
func SelectDestinationHandler(selector DestinationSelector, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if selector == nil {
			logger.Info(logkeys.Message, "selecting destination", logkeys.Error, ErrNoEngine)
			api.JSONError(w, ErrNoEngine, 0)
			return
		}

		id := flow.Param(r.Context(), "id")
		if id == "" {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, ErrNoID)
			api.JSONError(w, ErrNoID, http.StatusBadRequest)
			return
		}
		logger = logger.With(logkeys.SessionID, id)

		body := &struct {
			URI string `json:"uri"`
		}{}
		if err := decodeJSON(w, r, body); err != nil {
			logger.Info(logkeys.Message, "selecting destination", logkeys.Error, err)
			api.JSONError(w, err, http.StatusBadRequest)
			return
		}
		if body.URI == "" {
			logger.Info(logkeys.Message, "selecting destination", logkeys.Error, ErrNoDestination)
			api.JSONError(w, ErrNoDestination, http.StatusBadRequest)
			return
		}

		snap, err := selector.Select(r.Context(), id, body.URI)
		if err != nil {
			logger.Info(logkeys.Message, "selecting destination", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		writeSession(w, logger, http.StatusOK, newSession(id, snap))
	}
}

// DismissDestinationHandler creates a HandlerFunc that records a
// cancelled destination selection for a session.
func DismissDestinationHandler(selector DestinationSelector, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		if selector == nil {
			logger.Info(logkeys.Message, "dismissing destination", logkeys.Error, ErrNoEngine)
			api.JSONError(w, ErrNoEngine, 0)
			return
		}

		id := flow.Param(r.Context(), "id")
		if id == "" {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, ErrNoID)
			api.JSONError(w, ErrNoID, http.StatusBadRequest)
			return
		}

		snap, err := selector.Dismiss(r.Context(), id)
		if err != nil {
			logger.Info(logkeys.Message, "dismissing destination", logkeys.SessionID, id, logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		writeSession(w, logger, http.StatusOK, newSession(id, snap))
	}
}
