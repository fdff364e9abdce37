package bpmn

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/pkg/domain"
)

// Namespace is the BPMN 2.0 model namespace.
const Namespace = "http://www.omg.org/spec/BPMN/20100524/MODEL"

// Option configures the parser.
type Option func(*parser)

// WithLogger sets the logger used to report dropped flows.
func WithLogger(logger *slog.Logger) Option {
	return func(p *parser) {
		p.logger = logger
	}
}

// WithStrictFlows rejects sequence flows whose endpoints are not collected nodes.
func WithStrictFlows() Option {
	return func(p *parser) {
		p.strict = true
	}
}

type parser struct {
	logger *slog.Logger
	strict bool
}

// element is a generic XML tree node. Attributes and children keep document order.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []element  `xml:",any"`
}

func (e *element) attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}

// is reports whether e is the BPMN element with the given local name.
// Elements without a namespace are accepted for hand-written diagrams.
func (e *element) is(local string) bool {
	return e.XMLName.Local == local && (e.XMLName.Space == Namespace || e.XMLName.Space == "")
}

// ParseFile reads and parses the diagram at path.
func ParseFile(path string, opts ...Option) (*domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagram: %w", err)
	}
	return ParseBytes(data, opts...)
}

// ParseBytes parses an in-memory diagram.
func ParseBytes(data []byte, opts ...Option) (*domain.Graph, error) {
	return Parse(bytes.NewReader(data), opts...)
}

// Parse decodes a BPMN diagram and builds the graph of its main process.
// It returns ParseError for malformed markup or duplicate ids and
// NoExecutableProcessError when the document defines no process.
func Parse(r io.Reader, opts ...Option) (*domain.Graph, error) {
	p := &parser{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}

	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Msg: "empty document", Err: err}
		}
		return nil, &ParseError{Msg: "invalid XML structure", Err: err}
	}

	process := selectProcess(&root)
	if process == nil {
		return nil, &NoExecutableProcessError{}
	}

	return p.build(process)
}

// selectProcess returns the executable process, else the first process found.
func selectProcess(root *element) *element {
	var processes []*element
	var walk func(e *element)
	walk = func(e *element) {
		if e.is("process") {
			processes = append(processes, e)
			return
		}
		for i := range e.Children {
			walk(&e.Children[i])
		}
	}
	walk(root)

	for _, proc := range processes {
		if proc.attr("isExecutable") == "true" {
			return proc
		}
	}
	if len(processes) > 0 {
		return processes[0]
	}
	return nil
}

func (p *parser) build(process *element) (*domain.Graph, error) {
	var (
		nodes []*domain.Node
		index = make(map[string]*domain.Node)
		flows []*element
	)

	// Sub-process contents are not descended into: the interpreter treats a
	// sub-process as a single activity.
	var collect func(e *element) error
	collect = func(e *element) error {
		for i := range e.Children {
			child := &e.Children[i]
			if child.is("sequenceFlow") {
				flows = append(flows, child)
				continue
			}

			nodeType := domain.NodeType(child.XMLName.Local)
			if !nodeType.Known() || !child.is(child.XMLName.Local) {
				if child.is("laneSet") || child.is("lane") {
					continue
				}
				if err := collect(child); err != nil {
					return err
				}
				continue
			}

			id := child.attr("id")
			if id == "" {
				continue
			}
			if _, dup := index[id]; dup {
				return &ParseError{Msg: fmt.Sprintf("duplicate element id %q", id)}
			}

			node := &domain.Node{
				ID:       id,
				Name:     strings.TrimSpace(child.attr("name")),
				Type:     nodeType,
				Outgoing: []domain.Flow{},
				Incoming: []domain.Flow{},
			}
			if nodeType == domain.NodeEventBasedGateway {
				node.WaitingEvents = eventDefinitions(child)
			}
			index[id] = node
			nodes = append(nodes, node)
		}
		return nil
	}
	if err := collect(process); err != nil {
		return nil, err
	}

	for _, el := range flows {
		flow := domain.Flow{
			ID:     el.attr("id"),
			Source: el.attr("sourceRef"),
			Target: el.attr("targetRef"),
			Name:   strings.TrimSpace(el.attr("name")),
		}

		source, hasSource := index[flow.Source]
		target, hasTarget := index[flow.Target]

		if !hasSource || !hasTarget {
			if p.strict {
				return nil, &ParseError{Msg: fmt.Sprintf("sequence flow %q references unknown node (source=%q target=%q)", flow.ID, flow.Source, flow.Target)}
			}
			p.logger.Warn("sequence flow endpoint not found, dropping from that endpoint",
				"flow_id", flow.ID,
				"source", flow.Source,
				"target", flow.Target,
			)
		}

		if hasSource {
			source.Outgoing = append(source.Outgoing, flow)
		}
		if hasTarget {
			target.Incoming = append(target.Incoming, flow)
		}
	}

	return domain.NewGraph(process.attr("id"), process.attr("name"), nodes), nil
}

// eventDefinitions returns the kinds of the *EventDefinition children of e.
func eventDefinitions(e *element) []string {
	var kinds []string
	for _, child := range e.Children {
		if kind, ok := strings.CutSuffix(child.XMLName.Local, "EventDefinition"); ok && kind != "" {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
