package domain

// Phase is the lifecycle stage of a session.
type Phase string

const (
	PhaseIdle          Phase = "idle"           // Created, not started
	PhaseActive        Phase = "active"         // Advancing through the graph
	PhaseAwaitingInput Phase = "awaiting_input" // Halted on a node that needs a reply
	PhaseEnded         Phase = "ended"          // Sink state reached or cancelled
)

// EndReason records why a session reached PhaseEnded.
type EndReason string

const (
	EndCompleted EndReason = "completed" // An end event was reached
	EndCancelled EndReason = "cancelled" // End was called explicitly
	EndFailed    EndReason = "failed"    // A fatal runtime error stopped the session
)

// Context holds the values accumulated by hooks and the matcher during a session.
// The engine does not interpret it beyond the keys it documents.
type Context map[string]any

// Well-known context keys.
const (
	// KeyItems holds the list offered by an intermediate catch event ([]Item).
	KeyItems = "items"
	// KeySelected holds the item picked from KeyItems (Item).
	KeySelected = "selected"
	// KeyReservation holds the acknowledgement of a committed reservation (Reservation).
	KeyReservation = "reservation"
)

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Session is the runtime snapshot of one conversation.
type Session struct {
	ID string `json:"id"`

	// CurrentNodeID is empty when no node is active (before start and after end).
	CurrentNodeID string `json:"current_node_id,omitempty"`

	Phase Phase `json:"phase"`

	// ExpectedChoices is only used to re-prompt after an unmatched reply.
	ExpectedChoices []string `json:"expected_choices,omitempty"`

	Context Context `json:"context,omitempty"`

	// History tracks the nodes visited, in order.
	History []string `json:"history,omitempty"`

	EndReason EndReason `json:"end_reason,omitempty"`
}

// NewSession creates an idle session.
func NewSession(id string) *Session {
	return &Session{
		ID:      id,
		Phase:   PhaseIdle,
		Context: make(Context),
	}
}

// HasCurrent reports whether a node is active.
func (s *Session) HasCurrent() bool {
	return s.CurrentNodeID != ""
}

// Snapshot returns a copy that shares no slices or maps with s.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	next := *s
	next.Context = s.Context.Clone()
	if s.ExpectedChoices != nil {
		next.ExpectedChoices = append([]string(nil), s.ExpectedChoices...)
	}
	if s.History != nil {
		next.History = append([]string(nil), s.History...)
	}
	return &next
}
