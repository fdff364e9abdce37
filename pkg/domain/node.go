package domain

// NodeType identifies the BPMN element kind of a node and drives how the engine steps through it.
type NodeType string

const (
	NodeStartEvent             NodeType = "startEvent"
	NodeTask                   NodeType = "task"
	NodeSubProcess             NodeType = "subProcess"
	NodeExclusiveGateway       NodeType = "exclusiveGateway"
	NodeParallelGateway        NodeType = "parallelGateway"
	NodeInclusiveGateway       NodeType = "inclusiveGateway"
	NodeEventBasedGateway      NodeType = "eventBasedGateway"
	NodeIntermediateCatchEvent NodeType = "intermediateCatchEvent"
	NodeIntermediateThrowEvent NodeType = "intermediateThrowEvent"
	NodeEndEvent               NodeType = "endEvent"
)

// NodeTypes lists every supported element kind in a stable order.
var NodeTypes = []NodeType{
	NodeStartEvent,
	NodeTask,
	NodeExclusiveGateway,
	NodeParallelGateway,
	NodeInclusiveGateway,
	NodeEventBasedGateway,
	NodeIntermediateCatchEvent,
	NodeEndEvent,
	NodeSubProcess,
	NodeIntermediateThrowEvent,
}

// Known reports whether t is one of the supported element kinds.
func (t NodeType) Known() bool {
	for _, k := range NodeTypes {
		if k == t {
			return true
		}
	}
	return false
}

// IsGateway reports whether t is a branching node.
func (t NodeType) IsGateway() bool {
	switch t {
	case NodeExclusiveGateway, NodeParallelGateway, NodeInclusiveGateway, NodeEventBasedGateway:
		return true
	}
	return false
}

// IsActivity reports whether t is a task or sub-process, the only kinds hooks bind to.
func (t NodeType) IsActivity() bool {
	return t == NodeTask || t == NodeSubProcess
}

// Flow is a sequence flow between two nodes.
// Name is the optional branch label users can answer with.
type Flow struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Name   string `json:"name,omitempty"`
}

// Node represents a single element of the process diagram.
type Node struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	Type NodeType `json:"type"`

	// Outgoing and Incoming keep document order.
	// The first outgoing flow is the default path for auto-advancing nodes.
	Outgoing []Flow `json:"outgoing"`
	Incoming []Flow `json:"incoming"`

	// WaitingEvents holds the event definition kinds declared on an event-based gateway
	// (e.g. "message", "timer").
	WaitingEvents []string `json:"waiting_events,omitempty"`
}

// FirstOutgoing returns the default outgoing flow, if any.
func (n *Node) FirstOutgoing() (Flow, bool) {
	if len(n.Outgoing) == 0 {
		return Flow{}, false
	}
	return n.Outgoing[0], true
}

// Label returns the node name, or its ID when the name is empty.
func (n *Node) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}
