// Package picker prompts for share destinations.
package picker

import (
	"context"
)

// Selection is the outcome of a destination prompt.
// Cancelled is set when the user dismissed the prompt; URI is then empty.
type Selection struct {
	URI       string
	Cancelled bool
}

// Cancelled is the Selection of a dismissed prompt.
var Cancelled = Selection{Cancelled: true}

// Picker asks the user to select a destination resource.
type Picker interface {
	// Pick prompts for a destination compatible with mediaType.
	// User cancellation is reported in the Selection, not as an error.
	Pick(ctx context.Context, mediaType string) (Selection, error)
}

// PickerFunc adapts a function to a Picker.
type PickerFunc func(ctx context.Context, mediaType string) (Selection, error)

// Pick calls f.
func (f PickerFunc) Pick(ctx context.Context, mediaType string) (Selection, error) {
	return f(ctx, mediaType)
}

// Static always selects the same URI.
// An empty URI always cancels.
type Static string

// Pick returns the static selection.
func (s Static) Pick(_ context.Context, _ string) (Selection, error) {
	if s == "" {
		return Cancelled, nil
	}
	return Selection{URI: string(s)}, nil
}
