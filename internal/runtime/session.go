package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/hooks"
	"github.com/aretw0/bpmnchat/pkg/matcher"
	"github.com/aretw0/bpmnchat/pkg/ports"
)

// Session drives one conversation through the engine's graph.
// A Session is not safe for concurrent use: callers serialize Start, Step,
// SubmitInput and End (see pkg/session.Manager).
type Session struct {
	engine   *Engine
	state    *domain.Session
	surface  ports.Surface
	renderer ports.Renderer
	logger   *slog.Logger
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.state.ID
}

// State returns a snapshot of the session.
func (s *Session) State() *domain.Session {
	return s.state.Snapshot()
}

// Start places the session on the start event and runs until it awaits input or ends.
// With no start event it returns *domain.NoStartEventError and the session stays idle.
// With several, the first in document order wins.
func (s *Session) Start(ctx context.Context) error {
	if s.state.Phase != domain.PhaseIdle {
		return domain.ErrAlreadyStarted
	}

	starts := s.engine.graph.ByType(domain.NodeStartEvent)
	if len(starts) == 0 {
		return &domain.NoStartEventError{ProcessID: s.engine.graph.ProcessID}
	}
	if len(starts) > 1 {
		s.logger.Warn("several start events, using the first", "node_id", starts[0].ID, "count", len(starts))
	}

	s.moveTo(starts[0].ID)
	return s.Step(ctx)
}

// Step advances an active session until it awaits input or ends.
// It is a no-op in any other phase.
func (s *Session) Step(ctx context.Context) error {
	ctx = logging.WithContext(ctx, s.logger)
	for i := 0; s.state.Phase == domain.PhaseActive; i++ {
		if i >= maxAutoSteps {
			return s.fail(ctx, nil, &domain.UnhandledFlowError{NodeID: s.state.CurrentNodeID, Reason: "auto-advance limit reached"}, msgUnhandled)
		}
		if i > 0 {
			if err := s.pace(ctx); err != nil {
				return err
			}
		}
		if err := s.stepOnce(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SubmitInput resolves a reply against the current node.
//
// An unmatched reply re-prompts and returns *domain.NoMatchError without
// changing the session. Blank replies are ignored.
func (s *Session) SubmitInput(ctx context.Context, text string) error {
	if s.state.Phase != domain.PhaseAwaitingInput {
		return domain.ErrNotAwaitingInput
	}
	if matcher.Normalize(text) == "" {
		return nil
	}
	ctx = logging.WithContext(ctx, s.logger)

	if err := s.emit(ctx, domain.SpeakerUser, text); err != nil {
		return err
	}

	node, ok := s.engine.graph.Node(s.state.CurrentNodeID)
	if !ok {
		return s.fail(ctx, nil, &domain.UnhandledFlowError{NodeID: s.state.CurrentNodeID, Reason: "node not found"}, msgUnhandled)
	}

	res, err := s.engine.matcher.Match(s.engine.graph, node, s.state.Context, text)
	if err != nil {
		var noMatch *domain.NoMatchError
		if errors.As(err, &noMatch) {
			noMatch.Choices = append([]string(nil), s.state.ExpectedChoices...)
			if h := s.engine.lifecycle.OnNoMatch; h != nil {
				h(ctx, &domain.InputEvent{EventBase: s.engine.base(domain.EventNoMatch, s.state.ID), NodeID: node.ID, Input: text})
			}
			s.logger.Debug("reply did not match", "node_id", node.ID, "input", text)
			if err := s.emit(ctx, domain.SpeakerBot, repromptMessage(s.state.ExpectedChoices)); err != nil {
				return err
			}
			return noMatch
		}
		msg := msgUnhandled
		if errors.Is(err, domain.ErrContextMissing) {
			msg = msgNoOptions
		}
		return s.fail(ctx, node, err, msg)
	}

	s.logger.Debug("reply matched", "node_id", node.ID, "kind", res.Kind.String(), "rule", res.Rule)

	switch res.Kind {
	case matcher.KindLoopBack:
		if res.Message != "" {
			if err := s.emit(ctx, domain.SpeakerBot, res.Message); err != nil {
				return err
			}
		}
		s.leave(ctx, node)
		s.moveTo(res.ResetTo)
	case matcher.KindCapture:
		s.state.Context[res.CaptureKey] = res.Value
		if err := s.emit(ctx, domain.SpeakerBot, captureAck(res.Ack, res.Value)); err != nil {
			return err
		}
		s.follow(ctx, node, res.Flow)
	default:
		if res.Selected != nil {
			s.state.Context[domain.KeySelected] = *res.Selected
		}
		s.follow(ctx, node, res.Flow)
	}

	return s.Step(ctx)
}

// End cancels the session. It is valid in any phase and idempotent.
// Committed hook side effects are not undone.
func (s *Session) End(ctx context.Context) error {
	switch s.state.Phase {
	case domain.PhaseEnded:
		return nil
	case domain.PhaseIdle:
		s.finish(ctx, nil, domain.EndCancelled)
		return nil
	}
	node, _ := s.engine.graph.Node(s.state.CurrentNodeID)
	s.finish(ctx, node, domain.EndCancelled)
	return s.emit(ctx, domain.SpeakerBot, msgSessionClosed)
}

// stepOnce visits the current node.
func (s *Session) stepOnce(ctx context.Context) error {
	node, ok := s.engine.graph.Node(s.state.CurrentNodeID)
	if !ok {
		return s.fail(ctx, nil, &domain.UnhandledFlowError{NodeID: s.state.CurrentNodeID, Reason: "node not found"}, msgUnhandled)
	}

	if err := s.renderer.Highlight(ctx, node.ID); err != nil {
		s.logger.Warn("highlight failed", "node_id", node.ID, "err", err)
	}
	if h := s.engine.lifecycle.OnNodeEnter; h != nil {
		h(ctx, &domain.NodeEvent{EventBase: s.engine.base(domain.EventNodeEnter, s.state.ID), NodeID: node.ID, NodeType: node.Type})
	}
	s.logger.Debug("entering node", "node_id", node.ID, "type", string(node.Type))

	switch node.Type {
	case domain.NodeStartEvent:
		if err := s.emit(ctx, domain.SpeakerBot, msgGreeting); err != nil {
			return err
		}
		return s.advance(ctx, node)

	case domain.NodeTask, domain.NodeSubProcess:
		return s.visitActivity(ctx, node)

	case domain.NodeExclusiveGateway, domain.NodeInclusiveGateway:
		choices, named := flowChoices(node)
		prompt := exclusivePrompt(node, choices, named)
		if node.Type == domain.NodeInclusiveGateway {
			prompt = inclusivePrompt(node, choices, named)
		}
		return s.await(ctx, prompt, choices)

	case domain.NodeParallelGateway:
		targets := make([]string, 0, len(node.Outgoing))
		for _, f := range node.Outgoing {
			targets = append(targets, s.targetLabel(f, "Actividad"))
		}
		if err := s.emit(ctx, domain.SpeakerBot, parallelMessage(node, targets)); err != nil {
			return err
		}
		return s.advance(ctx, node)

	case domain.NodeEventBasedGateway:
		choices := make([]string, 0, len(node.Outgoing))
		for _, f := range node.Outgoing {
			choices = append(choices, s.targetLabel(f, "Evento en"))
		}
		hasFlows := len(choices) > 0
		if !hasFlows {
			choices = []string{"continuar"}
		}
		return s.await(ctx, eventPrompt(node, choices, hasFlows), choices)

	case domain.NodeIntermediateCatchEvent:
		raw, ok := s.state.Context[domain.KeyItems]
		if !ok {
			return s.fail(ctx, node, &domain.ContextMissingError{NodeID: node.ID, Key: domain.KeyItems}, msgNoOptions)
		}
		items, err := domain.DecodeItems(raw)
		if err != nil {
			return s.fail(ctx, node, &domain.ContextMissingError{NodeID: node.ID, Key: domain.KeyItems, Err: err}, msgNoOptions)
		}
		return s.await(ctx, msgCatchPrompt, itemChoices(items))

	case domain.NodeIntermediateThrowEvent:
		if err := s.emit(ctx, domain.SpeakerBot, throwMessage(node)); err != nil {
			return err
		}
		return s.advance(ctx, node)

	case domain.NodeEndEvent:
		s.finish(ctx, node, domain.EndCompleted)
		return s.emit(ctx, domain.SpeakerBot, closingMessage(node))
	}

	return s.fail(ctx, node, &domain.UnhandledFlowError{NodeID: node.ID, Reason: "unsupported node type " + string(node.Type)}, msgUnhandled)
}

func (s *Session) visitActivity(ctx context.Context, node *domain.Node) error {
	if err := s.emit(ctx, domain.SpeakerBot, node.Label()); err != nil {
		return err
	}

	if name, handler, ok := s.engine.hooks.Resolve(node); ok {
		if err := s.callHook(ctx, node, name, handler); err != nil {
			return err
		}
	}

	// Capture tasks wait for free text instead of auto-advancing.
	if rule, ok := s.engine.routes.Lookup(node); ok && rule.Capture != nil {
		return s.await(ctx, "", nil)
	}
	return s.advance(ctx, node)
}

func (s *Session) callHook(ctx context.Context, node *domain.Node, name string, handler hooks.Handler) error {
	call := hooks.Call{
		SessionID:      s.state.ID,
		NodeID:         node.ID,
		NodeName:       node.Name,
		IdempotencyKey: s.idempotencyKey(node.ID),
		Context:        s.state.Context.Clone(),
	}

	if h := s.engine.lifecycle.OnHookCall; h != nil {
		h(ctx, &domain.HookEvent{EventBase: s.engine.base(domain.EventHookCall, s.state.ID), NodeID: node.ID, HookName: name})
	}
	started := time.Now()
	res, err := handler(ctx, call)
	elapsed := time.Since(started)
	if h := s.engine.lifecycle.OnHookReturn; h != nil {
		h(ctx, &domain.HookEvent{
			EventBase: s.engine.base(domain.EventHookReturn, s.state.ID),
			NodeID:    node.ID,
			HookName:  name,
			Duration:  elapsed,
			IsError:   err != nil,
		})
	}

	if err != nil {
		s.logger.Error("hook failed", "node_id", node.ID, "hook", name, "err", err)
		return s.fail(ctx, node, &domain.HookError{NodeID: node.ID, Hook: name, Err: err}, msgFailure)
	}
	s.logger.Debug("hook returned", "node_id", node.ID, "hook", name, "duration", elapsed)

	if res.Context != nil {
		s.state.Context = res.Context
	}
	for _, msg := range res.Messages {
		if err := s.emit(ctx, domain.SpeakerBot, msg); err != nil {
			return err
		}
	}
	return nil
}

// idempotencyKey identifies the current visit of nodeID. It is stable
// across a resume because History is persisted with the session.
func (s *Session) idempotencyKey(nodeID string) string {
	visits := 0
	for _, id := range s.state.History {
		if id == nodeID {
			visits++
		}
	}
	return s.state.ID + ":" + nodeID + ":" + strconv.Itoa(visits)
}

// advance follows the first outgoing flow, or ends the session when there is none.
func (s *Session) advance(ctx context.Context, node *domain.Node) error {
	flow, ok := node.FirstOutgoing()
	if !ok {
		return s.fail(ctx, node, &domain.UnhandledFlowError{NodeID: node.ID, Reason: "no outgoing flow"}, msgUnhandled)
	}
	s.follow(ctx, node, flow)
	return nil
}

func (s *Session) follow(ctx context.Context, from *domain.Node, flow domain.Flow) {
	s.leave(ctx, from)
	s.moveTo(flow.Target)
}

func (s *Session) leave(ctx context.Context, node *domain.Node) {
	if h := s.engine.lifecycle.OnNodeLeave; h != nil {
		h(ctx, &domain.NodeEvent{EventBase: s.engine.base(domain.EventNodeLeave, s.state.ID), NodeID: node.ID, NodeType: node.Type})
	}
}

func (s *Session) moveTo(nodeID string) {
	s.state.CurrentNodeID = nodeID
	s.state.Phase = domain.PhaseActive
	s.state.ExpectedChoices = nil
	s.state.History = append(s.state.History, nodeID)
}

func (s *Session) await(ctx context.Context, prompt string, choices []string) error {
	s.state.Phase = domain.PhaseAwaitingInput
	s.state.ExpectedChoices = choices
	if prompt == "" {
		return nil
	}
	return s.emit(ctx, domain.SpeakerBot, prompt)
}

// fail ends the session after a fatal runtime error and returns err.
func (s *Session) fail(ctx context.Context, node *domain.Node, err error, notice string) error {
	s.logger.Warn("session failed", "node_id", s.state.CurrentNodeID, "err", err)
	s.finish(ctx, node, domain.EndFailed)
	if emitErr := s.emit(ctx, domain.SpeakerBot, notice); emitErr != nil {
		return errors.Join(err, emitErr)
	}
	return err
}

// finish moves the session to PhaseEnded, discarding its context and highlight.
func (s *Session) finish(ctx context.Context, node *domain.Node, reason domain.EndReason) {
	if node != nil && reason != domain.EndCompleted {
		s.leave(ctx, node)
	}
	s.state.Phase = domain.PhaseEnded
	s.state.EndReason = reason
	s.state.CurrentNodeID = ""
	s.state.ExpectedChoices = nil
	s.state.Context = make(domain.Context)

	if err := s.renderer.ClearHighlight(ctx); err != nil {
		s.logger.Warn("clear highlight failed", "err", err)
	}

	ev := &domain.EndEvent{EventBase: s.engine.base(domain.EventSessionEnd, s.state.ID), Reason: reason}
	if node != nil {
		ev.NodeID = node.ID
	}
	if h := s.engine.lifecycle.OnSessionEnd; h != nil {
		h(ctx, ev)
	}
	s.logger.Debug("session ended", "reason", string(reason))
}

func (s *Session) emit(ctx context.Context, speaker domain.Speaker, text string) error {
	if err := s.surface.Emit(ctx, domain.Turn{Speaker: speaker, Text: text}); err != nil {
		return fmt.Errorf("failed to emit turn: %w", err)
	}
	return nil
}

func (s *Session) pace(ctx context.Context) error {
	if s.engine.pacing <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.engine.pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Session) targetLabel(f domain.Flow, fallback string) string {
	if name := s.engine.graph.TargetName(f); name != "" {
		return name
	}
	return fallback + " " + f.Target
}

// flowChoices returns the lower-cased flow names, or the sí/no pair when no flow is named.
func flowChoices(node *domain.Node) ([]string, bool) {
	var choices []string
	for _, f := range node.Outgoing {
		if f.Name != "" {
			choices = append(choices, strings.ToLower(f.Name))
		}
	}
	if len(choices) == 0 {
		return append([]string(nil), defaultChoices...), false
	}
	return choices, true
}

func itemChoices(items []domain.Item) []string {
	choices := make([]string, 0, len(items))
	for i, item := range items {
		label := item.Description
		if label == "" {
			label = item.ID
		}
		choices = append(choices, strconv.Itoa(i+1)+" ("+label+")")
	}
	return choices
}
