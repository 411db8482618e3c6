package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpHandler(t *testing.T) {
	var seen []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = io.ReadAll(r.Body)
	})
	var out bytes.Buffer
	h := DumpHandler(next, &out)

	body := `{"uri":"content://driveshare/a"}`
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PUT", "/v1/share/x/destination?a=b", strings.NewReader(body)))

	assert.Equal(t, body, string(seen))
	assert.Equal(t, "PUT /v1/share/x/destination?a=b\n"+body+"\n", out.String())
}

func TestDumpHandlerNoBody(t *testing.T) {
	var out bytes.Buffer
	DumpHandler(http.NotFoundHandler(), &out).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/share/x", nil))
	assert.Equal(t, "GET /v1/share/x\n", out.String())
}
