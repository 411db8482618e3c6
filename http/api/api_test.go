package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, errors.New("no file provided"), http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error": "no file provided"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	JSONError(rec, errors.New("oops"), 0)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, JSON(rec, map[string]string{"id": "x"}, 0))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id": "x"}`, rec.Body.String())
}
