package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/accelf/driveshare/content/inmem"
	"github.com/accelf/driveshare/content/test"
	"github.com/accelf/driveshare/engine"
	"github.com/accelf/driveshare/utils/uuid"
	"github.com/accelf/driveshare/workflow"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionID = "0f8fad5b-d9cb-469f-a165-70867728950e"

func newServer(t *testing.T, finishDelay time.Duration) (http.Handler, *inmem.InMem) {
	t.Helper()
	store := inmem.New("")
	test.Put(t, store, store.URI("doc.pdf"), []byte("%PDF-1.7 fake"))
	e := engine.New(store,
		engine.WithIDer(uuid.NewStaticIDs(sessionID)),
		engine.WithFinishDelay(finishDelay),
	)
	t.Cleanup(func() { e.Close() })
	mux := flow.New()
	HandleAPIv1("/v1", mux, log.NopLogger, e)
	return mux, store
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var m map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	}
	return rec, m
}

func TestStartShare(t *testing.T) {
	h, store := newServer(t, time.Hour)

	rec, m := do(t, h, "POST", "/v1/share", `{"type": "application/pdf", "stream": "`+store.URI("doc.pdf")+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, sessionID, m["id"])
	assert.Equal(t, "Idle", m["state"])
	assert.Equal(t, true, m["retry_enabled"])
	assert.Equal(t, map[string]any{"media_type": "application/pdf", "source": store.URI("doc.pdf")}, m["request"])

	rec, m = do(t, h, "GET", "/v1/share/"+sessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Idle", m["state"])
}

func TestStartShareBadRequest(t *testing.T) {
	h, _ := newServer(t, time.Hour)
	for _, body := range []string{
		`{"type": "application/pdf"}`,
		`{"stream": "content://driveshare/doc.pdf"}`,
		`{}`,
		`not json`,
	} {
		rec, m := do(t, h, "POST", "/v1/share", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotEmpty(t, m["error"])
	}
}

func TestGetShareNotFound(t *testing.T) {
	h, _ := newServer(t, time.Hour)
	rec, m := do(t, h, "GET", "/v1/share/"+sessionID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, m["error"], engine.ErrNoSuchSession.Error())
}

func TestSelectDestination(t *testing.T) {
	h, store := newServer(t, time.Hour)
	rec, _ := do(t, h, "POST", "/v1/share", `{"type": "application/pdf", "stream": "`+store.URI("doc.pdf")+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, h, "PUT", "/v1/share/"+sessionID+"/destination", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, m := do(t, h, "PUT", "/v1/share/"+sessionID+"/destination", `{"uri": "`+store.URI("copy.pdf")+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, store.URI("copy.pdf"), m["destination"])
	assert.Equal(t, false, m["retry_enabled"])

	require.Eventually(t, func() bool {
		_, m := do(t, h, "GET", "/v1/share/"+sessionID, "")
		return m["state"] == workflow.Completed.String()
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, []byte("%PDF-1.7 fake"), test.Get(t, store, store.URI("copy.pdf")))

	rec, _ = do(t, h, "PUT", "/v1/share/"+sessionID+"/destination", `{"uri": "`+store.URI("other.pdf")+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = do(t, h, "DELETE", "/v1/share/"+sessionID+"/destination", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionGoneAfterFinish(t *testing.T) {
	h, store := newServer(t, time.Millisecond)
	do(t, h, "POST", "/v1/share", `{"type": "application/pdf", "stream": "`+store.URI("doc.pdf")+`"}`)
	rec, _ := do(t, h, "PUT", "/v1/share/"+sessionID+"/destination", `{"uri": "`+store.URI("copy.pdf")+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		rec, _ := do(t, h, "GET", "/v1/share/"+sessionID, "")
		return rec.Code == http.StatusNotFound
	}, 5*time.Second, time.Millisecond)
}

func TestDismissDestination(t *testing.T) {
	h, store := newServer(t, time.Hour)
	do(t, h, "POST", "/v1/share", `{"type": "application/pdf", "stream": "`+store.URI("doc.pdf")+`"}`)

	rec, m := do(t, h, "DELETE", "/v1/share/"+sessionID+"/destination", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cancelled", m["state"])
	assert.Equal(t, true, m["retry_enabled"])
	assert.NotContains(t, m, "destination")
}

func TestFailedCopyReported(t *testing.T) {
	h, store := newServer(t, time.Hour)
	do(t, h, "POST", "/v1/share", `{"type": "application/pdf", "stream": "`+store.URI("missing.pdf")+`"}`)
	do(t, h, "PUT", "/v1/share/"+sessionID+"/destination", `{"uri": "`+store.URI("copy.pdf")+`"}`)

	var m map[string]any
	require.Eventually(t, func() bool {
		_, m = do(t, h, "GET", "/v1/share/"+sessionID, "")
		return m["state"] == "Failed"
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, true, m["retry_enabled"])
	assert.Contains(t, m["error"], "resource unavailable")
}

func TestNilEngine(t *testing.T) {
	rec := httptest.NewRecorder()
	StartShareHandler(nil, log.NopLogger).ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
