package ports

import "context"

// Renderer reflects the position of a session on the process diagram.
type Renderer interface {
	// Highlight marks nodeID as current, replacing any prior highlight.
	Highlight(ctx context.Context, nodeID string) error
	// ClearHighlight removes the highlight.
	ClearHighlight(ctx context.Context) error
}

// NopRenderer ignores every call.
type NopRenderer struct{}

func (NopRenderer) Highlight(context.Context, string) error { return nil }
func (NopRenderer) ClearHighlight(context.Context) error    { return nil }
