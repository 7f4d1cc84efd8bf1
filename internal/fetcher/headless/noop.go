package headless

import (
	"context"
	"errors"
)

// ErrDisabled is returned by Noop for every render.
var ErrDisabled = errors.New("headless renderer disabled")

// Noop implements grounding.Renderer when headless rendering is switched off.
// Every dynamic extraction then reports the failure placeholder.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// RenderText always fails with ErrDisabled.
func (Noop) RenderText(_ context.Context, _ string) (string, error) {
	return "", ErrDisabled
}
