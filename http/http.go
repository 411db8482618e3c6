// Package http includes handlers and utilties.
package http

import (
	"fmt"
	"io"
	"net/http"

	nanohttp "github.com/micromdm/nanolib/http"
)

// DumpHandler outputs the request line and body of the request to output.
// Bodies are share intents and destination selections, never content.
func DumpHandler(next http.Handler, output io.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := nanohttp.GetAndReplaceBodyBytes(r)
		fmt.Fprintf(output, "%s %s\n", r.Method, r.URL.RequestURI())
		if len(body) > 0 {
			output.Write(append(body, '\n'))
		}
		next.ServeHTTP(w, r)
	}
}
