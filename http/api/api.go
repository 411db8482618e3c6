// Package api writes JSON API responses.
package api

import (
	"encoding/json"
	"net/http"
)

// JSON encodes v as JSON to w with statusCode.
// A statusCode of zero or less means 200 OK.
func JSON(w http.ResponseWriter, v any, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode < 1 {
		statusCode = http.StatusOK
	}
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

// JSONError encodes err as a JSON object with an "error" key to w.
// A statusCode of zero or less means 500 Internal Server Error.
func JSONError(w http.ResponseWriter, err error, statusCode int) {
	if statusCode < 1 {
		statusCode = http.StatusInternalServerError
	}
	JSON(w, &struct {
		Err string `json:"error"`
	}{Err: err.Error()}, statusCode)
}
