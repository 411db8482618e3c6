package http

import (
	"net/http"

	"github.com/micromdm/nanolib/log"
)

type APIEngine interface {
	ShareStarter
	SessionGetter
	DestinationSelector
}

// Mux can register HTTP handlers.
// Ostensibly this supports flow router.
type Mux interface {
	// Handle registers the handler for the given pattern.
	Handle(pattern string, handler http.Handler, methods ...string)
}

// HandleAPIv1 registers the share API handlers into mux.
// API endpoint paths are prepended with prefix.
// Authentication or any other layered handlers are not present.
// They are assumed to be layered with mux, possibly at the Handle call.
// The logger is adorned with a "handler" key of the endpoint name.
func HandleAPIv1(prefix string, mux Mux, logger log.Logger, e APIEngine) {
	mux.Handle(
		prefix+"/share",
		StartShareHandler(e, logger.With("handler", "start share")),
		"POST",
	)
	mux.Handle(
		prefix+"/share/:id",
		GetShareHandler(e, logger.With("handler", "get share")),
		"GET",
	)
	mux.Handle(
		prefix+"/share/:id/destination",
		SelectDestinationHandler(e, logger.With("handler", "select destination")),
		"PUT",
	)
	mux.Handle(
		prefix+"/share/:id/destination",
		DismissDestinationHandler(e, logger.With("handler", "dismiss destination")),
		"DELETE",
	)
}
