package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromSession builds the overlay of a stored session.
func OverlayFromSession(s *domain.Session) *GraphOverlay {
	if s == nil {
		return nil
	}
	return &GraphOverlay{
		VisitedNodes: append([]string(nil), s.History...),
		CurrentNode:  s.CurrentNodeID,
	}
}

// GenerateMermaid produces a Mermaid flowchart of g.
// It applies BPMN-like shapes:
// - Start/End events: ((Circle)) / (((Double circle)))
// - Intermediate events: ([Stadium])
// - Gateways: {Rhombus}
// - Sub-process: [[Subroutine]]
// - Task: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.ID)
		opener, closer := shape(node.Type)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(node.Label()), closer)

		for _, f := range node.Outgoing {
			if _, ok := g.Node(f.Target); !ok {
				continue
			}
			arrow := "-->"
			if f.Name != "" {
				arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(f.Name))
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(f.Target))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			if _, ok := g.Node(id); !ok {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func shape(t domain.NodeType) (string, string) {
	switch {
	case t == domain.NodeStartEvent:
		return "((", "))"
	case t == domain.NodeEndEvent:
		return "(((", ")))"
	case t == domain.NodeIntermediateCatchEvent, t == domain.NodeIntermediateThrowEvent:
		return "([", "])"
	case t.IsGateway():
		return "{", "}"
	case t == domain.NodeSubProcess:
		return "[[", "]]"
	}
	return "[", "]"
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	// "end" closes a subgraph in Mermaid.
	if strings.EqualFold(s, "end") {
		s += "_node"
	}
	return s
}
