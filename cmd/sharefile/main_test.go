package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/accelf/driveshare/content/inmem"
	"github.com/accelf/driveshare/content/test"
	"github.com/accelf/driveshare/picker"
	"github.com/accelf/driveshare/share"
	"github.com/accelf/driveshare/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answers confirms with the given answers in order.
type answers struct {
	yes     []bool
	prompts []string
}

func (a *answers) Confirm(_ context.Context, prompt string) (bool, error) {
	a.prompts = append(a.prompts, prompt)
	if len(a.yes) == 0 {
		return false, nil
	}
	ok := a.yes[0]
	a.yes = a.yes[1:]
	return ok, nil
}

// picks selects the given URIs in order; an empty URI cancels.
func picks(uris ...string) picker.Picker {
	return picker.PickerFunc(func(ctx context.Context, mediaType string) (picker.Selection, error) {
		uri := uris[0]
		uris = uris[1:]
		return picker.Static(uri).Pick(ctx, mediaType)
	})
}

func newWorkflow(t *testing.T, source string) (*workflow.Workflow, *inmem.InMem) {
	t.Helper()
	store := inmem.New("")
	test.Put(t, store, store.URI("shared.txt"), []byte("shared"))
	req, err := share.New("text/plain", store.URI(source))
	require.NoError(t, err)
	w, err := workflow.Start(context.Background(), req, store, workflow.WithFinishDelay(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, store
}

func TestRunStatic(t *testing.T) {
	w, store := newWorkflow(t, "shared.txt")
	errOut := &strings.Builder{}
	assert.Equal(t, 0, run(context.Background(), w, picks(store.URI("copy.txt")), nil, errOut))
	assert.Equal(t, workflow.Finished, w.Snapshot().State)
	assert.Equal(t, []byte("shared"), test.Get(t, store, store.URI("copy.txt")))
	assert.Empty(t, errOut.String())
}

func TestRunStaticFailure(t *testing.T) {
	w, store := newWorkflow(t, "missing.txt")
	assert.Equal(t, 1, run(context.Background(), w, picks(store.URI("copy.txt")), nil, &strings.Builder{}))
	assert.Equal(t, workflow.Failed, w.Snapshot().State)
}

func TestRunCancelThenRetry(t *testing.T) {
	w, store := newWorkflow(t, "shared.txt")
	c := &answers{yes: []bool{true}}
	code := run(context.Background(), w, picks("", store.URI("copy.txt")), c, &strings.Builder{})
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"Select destination? [y/N] "}, c.prompts)
	assert.Equal(t, workflow.Finished, w.Snapshot().State)
	assert.Equal(t, []byte("shared"), test.Get(t, store, store.URI("copy.txt")))
}

func TestRunCancelDeclined(t *testing.T) {
	w, _ := newWorkflow(t, "shared.txt")
	c := &answers{}
	assert.Equal(t, 0, run(context.Background(), w, picks(""), c, &strings.Builder{}))
	assert.Len(t, c.prompts, 1)
	snap := w.Snapshot()
	assert.Equal(t, workflow.Cancelled, snap.State)
	assert.True(t, snap.RetryEnabled())
}

func TestRunFailureDeclined(t *testing.T) {
	w, store := newWorkflow(t, "missing.txt")
	c := &answers{}
	assert.Equal(t, 1, run(context.Background(), w, picks(store.URI("copy.txt")), c, &strings.Builder{}))
	assert.Len(t, c.prompts, 1)
}
