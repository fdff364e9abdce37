package graph

import (
	"context"
	"sync"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// Renderer implements ports.Renderer by recording a Mermaid overlay.
// It is safe for concurrent use.
type Renderer struct {
	mu      sync.Mutex
	current string
	visited []string
}

// NewRenderer creates an empty Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Highlight marks nodeID as current and visited.
func (r *Renderer) Highlight(_ context.Context, nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nodeID
	r.visited = append(r.visited, nodeID)
	return nil
}

// ClearHighlight removes the current marker and keeps the visited trail.
func (r *Renderer) ClearHighlight(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
	return nil
}

// Overlay returns a snapshot of the recorded state.
func (r *Renderer) Overlay() *GraphOverlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &GraphOverlay{
		VisitedNodes: append([]string(nil), r.visited...),
		CurrentNode:  r.current,
	}
}

// Mermaid renders g with the recorded overlay.
func (r *Renderer) Mermaid(g *domain.Graph) string {
	return GenerateMermaid(g, r.Overlay())
}
