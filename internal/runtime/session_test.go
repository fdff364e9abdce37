package runtime_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/bpmnchat/internal/runtime"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/hooks"
	"github.com/aretw0/bpmnchat/pkg/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_LinearProcess(t *testing.T) {
	g := mustParse(t, linearBody)
	require.Equal(t, 3, g.Len())

	var turnsAtEnd int
	var h *harness
	engine := runtime.NewEngine(g, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnSessionEnd: func(ctx context.Context, e *domain.EndEvent) {
			turnsAtEnd = len(h.transcript.Bot())
		},
	}))
	h = newHarness(engine, "s1")

	require.NoError(t, h.session.Start(context.Background()))

	assert.Equal(t, 2, turnsAtEnd, "greeting and task name precede the end")
	assert.Equal(t, []string{
		"¡Hola!",
		"Saludar al cliente",
		`El proceso ha concluido: "Fin". ¡Gracias por usar el chatbot!`,
	}, h.transcript.Bot())

	state := h.session.State()
	assert.Equal(t, domain.PhaseEnded, state.Phase)
	assert.Equal(t, domain.EndCompleted, state.EndReason)
	assert.False(t, state.HasCurrent())
	assert.Equal(t, []string{"start", "greet", "end"}, state.History)
	assert.Empty(t, h.renderer.current, "end clears the highlight")
	assert.Equal(t, []string{"start", "greet", "end"}, h.renderer.visited)
}

func TestSession_ExclusiveGatewayAliases(t *testing.T) {
	g := mustParse(t, decisionBody)
	engine := runtime.NewEngine(g)

	tests := []struct {
		input string
		want  string
	}{
		{"SI", "yes"},
		{"Sí", "yes"},
		{"si", "yes"},
		{"no", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h := newHarness(engine, "s-"+tt.input)
			ctx := context.Background()
			require.NoError(t, h.session.Start(ctx))

			state := h.session.State()
			require.Equal(t, domain.PhaseAwaitingInput, state.Phase)
			assert.Equal(t, []string{"si", "no"}, state.ExpectedChoices)
			assert.Contains(t, h.transcript.Bot(), `Estamos en una decisión en "¿Desea continuar?". Por favor, elija: si o no.`)

			require.NoError(t, h.session.SubmitInput(ctx, tt.input))
			state = h.session.State()
			assert.Equal(t, domain.PhaseEnded, state.Phase)
			assert.Equal(t, tt.want, state.History[len(state.History)-1])
		})
	}
}

func TestSession_UnnamedExclusiveFallsBackToSiNo(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="start"/>
    <bpmn:exclusiveGateway id="gw" name="Decisión"/>
    <bpmn:endEvent id="a"/>
    <bpmn:endEvent id="b"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="gw"/>
    <bpmn:sequenceFlow id="f1" sourceRef="gw" targetRef="a"/>
    <bpmn:sequenceFlow id="f2" sourceRef="gw" targetRef="b"/>`)
	engine := runtime.NewEngine(g)

	tests := []struct {
		input string
		want  string
	}{
		{"sí", "a"},
		{"Si", "a"},
		{"no", "b"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h := newHarness(engine, "s-"+tt.input)
			ctx := context.Background()
			require.NoError(t, h.session.Start(ctx))

			state := h.session.State()
			assert.Equal(t, []string{"sí", "no"}, state.ExpectedChoices)
			assert.Contains(t, h.transcript.Bot(), `Estamos en una decisión en "Decisión". Por favor, escriba 'sí' o 'no' para continuar.`)

			require.NoError(t, h.session.SubmitInput(ctx, tt.input))
			state = h.session.State()
			assert.Equal(t, domain.PhaseEnded, state.Phase)
			assert.Equal(t, []string{"start", "gw", tt.want}, state.History)
		})
	}
}

func TestSession_UnnamedSingleFlowRejectsNo(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="start"/>
    <bpmn:exclusiveGateway id="gw" name="Decisión"/>
    <bpmn:endEvent id="a"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="gw"/>
    <bpmn:sequenceFlow id="f1" sourceRef="gw" targetRef="a"/>`)
	h := newHarness(runtime.NewEngine(g), "s")
	ctx := context.Background()
	require.NoError(t, h.session.Start(ctx))

	err := h.session.SubmitInput(ctx, "no")
	assert.ErrorIs(t, err, domain.ErrNoMatch)
	assert.Equal(t, domain.PhaseAwaitingInput, h.session.State().Phase)

	require.NoError(t, h.session.SubmitInput(ctx, "sí"))
	assert.Equal(t, []string{"start", "gw", "a"}, h.session.State().History)
}

func TestSession_EventGatewayTargetName(t *testing.T) {
	g := mustParse(t, eventBody)
	h := newHarness(runtime.NewEngine(g), "s")
	ctx := context.Background()
	require.NoError(t, h.session.Start(ctx))

	state := h.session.State()
	assert.Equal(t, []string{"Seguimiento", "Envío"}, state.ExpectedChoices)

	require.NoError(t, h.session.SubmitInput(ctx, "quiero hacer seguimiento"))
	assert.Equal(t, []string{"start", "gw", "track", "end"}, h.session.State().History)
	assert.Contains(t, h.transcript.Bot(), "Seguimiento")
}

func TestSession_EventGatewayWithoutFlows(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="start"/>
    <bpmn:eventBasedGateway id="gw" name="Espera"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="gw"/>`)
	h := newHarness(runtime.NewEngine(g), "s")
	ctx := context.Background()
	require.NoError(t, h.session.Start(ctx))

	assert.Equal(t, []string{"continuar"}, h.session.State().ExpectedChoices)

	err := h.session.SubmitInput(ctx, "continuar")
	assert.ErrorIs(t, err, domain.ErrNoMatch, "there is no flow to take")
	assert.Equal(t, domain.PhaseAwaitingInput, h.session.State().Phase)
}

func bookingEngine(t *testing.T, items []domain.Item, opts ...runtime.EngineOption) *runtime.Engine {
	t.Helper()
	reg := hooks.NewRegistry()
	reg.Register("Busqueda de disponibilidad", func(ctx context.Context, call hooks.Call) (hooks.Result, error) {
		call.Context[domain.KeyItems] = items
		return hooks.Result{Context: call.Context, Messages: []string{"Estamos buscando las habitaciones disponibles..."}}, nil
	})
	return runtime.NewEngine(mustParse(t, bookingBody), append(opts, runtime.WithHooks(reg))...)
}

func TestSession_CatchEventSelection(t *testing.T) {
	items := []domain.Item{
		{ID: "1", Description: "Habitación individual con vista al jardín"},
		{ID: "2", Description: "Habitación doble con balcón"},
		{ID: "4", Description: "Habitación familiar"},
		{ID: "5", Description: "Suite"},
	}
	h := newHarness(bookingEngine(t, items), "s")
	ctx := context.Background()
	require.NoError(t, h.session.Start(ctx))

	before := h.session.State()
	require.Equal(t, domain.PhaseAwaitingInput, before.Phase)
	require.Equal(t, "pick", before.CurrentNodeID)
	require.Len(t, before.ExpectedChoices, 4)

	err := h.session.SubmitInput(ctx, "9")
	var noMatch *domain.NoMatchError
	require.ErrorAs(t, err, &noMatch)
	assert.Equal(t, before.ExpectedChoices, noMatch.Choices)

	after := h.session.State()
	assert.Equal(t, domain.PhaseAwaitingInput, after.Phase)
	assert.Equal(t, before.ExpectedChoices, after.ExpectedChoices, "expected choices are unchanged")
	assert.Equal(t, before.History, after.History)
	assert.Contains(t, h.transcript.Bot()[len(h.transcript.Bot())-1], "No entendí su elección")

	require.NoError(t, h.session.SubmitInput(ctx, "2"))
	state := h.session.State()
	assert.Equal(t, "ok", state.CurrentNodeID, "advanced via the sole outgoing flow")
	selected, err := domain.DecodeItem(state.Context[domain.KeySelected])
	require.NoError(t, err)
	assert.Equal(t, items[1], selected)
}

func TestSession_CatchEventWithoutItems(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="start"/>
    <bpmn:intermediateCatchEvent id="pick"/>
    <bpmn:endEvent id="end"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="pick"/>
    <bpmn:sequenceFlow id="f1" sourceRef="pick" targetRef="end"/>`)
	h := newHarness(runtime.NewEngine(g), "s")

	err := h.session.Start(context.Background())
	var missing *domain.ContextMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, domain.KeyItems, missing.Key)

	state := h.session.State()
	assert.Equal(t, domain.PhaseEnded, state.Phase)
	assert.Equal(t, domain.EndFailed, state.EndReason)
	assert.Empty(t, h.renderer.current)
}

func TestSession_HookFailureEndsSession(t *testing.T) {
	boom := errors.New("inventory down")
	reg := hooks.NewRegistry()
	reg.Register("Saludar al cliente", func(ctx context.Context, call hooks.Call) (hooks.Result, error) {
		return hooks.Result{}, boom
	})
	h := newHarness(runtime.NewEngine(mustParse(t, linearBody), runtime.WithHooks(reg)), "s")

	err := h.session.Start(context.Background())
	var hookErr *domain.HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "greet", hookErr.NodeID)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, domain.ErrHook)

	bot := h.transcript.Bot()
	assert.Equal(t, "Ocurrió un error inesperado. Por favor, intente de nuevo.", bot[len(bot)-1])
	assert.Equal(t, domain.PhaseEnded, h.session.State().Phase)
}

func TestSession_FailureLogsUseErrKey(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	reg := hooks.NewRegistry()
	reg.Register("Saludar al cliente", func(ctx context.Context, call hooks.Call) (hooks.Result, error) {
		return hooks.Result{}, errors.New("inventory down")
	})
	engine := runtime.NewEngine(mustParse(t, linearBody), runtime.WithHooks(reg), runtime.WithLogger(logger))
	h := newHarness(engine, "s")

	require.Error(t, h.session.Start(context.Background()))
	assert.Contains(t, buf.String(), `"msg":"hook failed"`)
	assert.Contains(t, buf.String(), `"err":"inventory down"`)
	assert.NotContains(t, buf.String(), `"error":`)
}

func TestSession_HookContextAndMessages(t *testing.T) {
	var seen hooks.Call
	reg := hooks.NewRegistry()
	reg.Register("greeter", func(ctx context.Context, call hooks.Call) (hooks.Result, error) {
		seen = call
		call.Context["greeted"] = true
		return hooks.Result{Context: call.Context, Messages: []string{"Bienvenido"}}, nil
	})
	reg.Bind("greet", "greeter")

	engine := runtime.NewEngine(mustParse(t, linearBody), runtime.WithHooks(reg))
	h := newHarness(engine, "s1")
	h.session = engine.Resume(&domain.Session{ID: "s1", Phase: domain.PhaseIdle, Context: domain.Context{"lang": "es"}}, h.transcript, h.renderer)
	require.NoError(t, h.session.Start(context.Background()))

	assert.Equal(t, "greet", seen.NodeID)
	assert.Equal(t, "Saludar al cliente", seen.NodeName)
	assert.Equal(t, "s1:greet:1", seen.IdempotencyKey)
	assert.Equal(t, "es", seen.Context["lang"])
	assert.Equal(t, []string{"¡Hola!", "Saludar al cliente", "Bienvenido"}, h.transcript.Bot()[:3])
}

func TestSession_UnhandledFlow(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="start"/>
    <bpmn:task id="dead" name="Sin salida"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="dead"/>`)
	h := newHarness(runtime.NewEngine(g), "s")

	err := h.session.Start(context.Background())
	var unhandled *domain.UnhandledFlowError
	require.ErrorAs(t, err, &unhandled)
	assert.Equal(t, "dead", unhandled.NodeID)

	bot := h.transcript.Bot()
	assert.Contains(t, bot[len(bot)-1], "parte no manejada del proceso")
	assert.Equal(t, domain.PhaseEnded, h.session.State().Phase)
}

func TestSession_ResumeWithMissingNode(t *testing.T) {
	engine := runtime.NewEngine(mustParse(t, decisionBody))
	state := &domain.Session{ID: "s", CurrentNodeID: "removed", Phase: domain.PhaseActive}
	s := engine.Resume(state, nil, nil)

	err := s.Step(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnhandledFlow)
	assert.Equal(t, domain.PhaseEnded, s.State().Phase)
}

func TestSession_NoStartEvent(t *testing.T) {
	g := mustParse(t, `<bpmn:task id="t"/>`)
	h := newHarness(runtime.NewEngine(g), "s")

	err := h.session.Start(context.Background())
	var noStart *domain.NoStartEventError
	require.ErrorAs(t, err, &noStart)
	assert.Equal(t, "p", noStart.ProcessID)
	assert.Equal(t, domain.PhaseIdle, h.session.State().Phase)
	assert.Empty(t, h.transcript.Turns)
}

func TestSession_SeveralStartEventsUsesFirst(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="b"/>
    <bpmn:startEvent id="a"/>
    <bpmn:endEvent id="end"/>
    <bpmn:sequenceFlow id="f0" sourceRef="b" targetRef="end"/>`)
	h := newHarness(runtime.NewEngine(g), "s")
	require.NoError(t, h.session.Start(context.Background()))
	assert.Equal(t, "b", h.session.State().History[0])
}

func TestSession_StartTwice(t *testing.T) {
	h := newHarness(runtime.NewEngine(mustParse(t, decisionBody)), "s")
	require.NoError(t, h.session.Start(context.Background()))
	assert.ErrorIs(t, h.session.Start(context.Background()), domain.ErrAlreadyStarted)
}

func TestSession_EndIsIdempotent(t *testing.T) {
	h := newHarness(runtime.NewEngine(mustParse(t, decisionBody)), "s")
	ctx := context.Background()
	require.NoError(t, h.session.Start(ctx))
	require.Equal(t, "gw", h.renderer.current)

	require.NoError(t, h.session.End(ctx))
	turns := len(h.transcript.Turns)
	assert.Equal(t, "Sesión de chat finalizada.", h.transcript.Turns[turns-1].Text)

	assert.NotPanics(t, func() {
		require.NoError(t, h.session.End(ctx))
	})
	assert.Len(t, h.transcript.Turns, turns, "second End emits nothing")
	assert.Equal(t, 1, h.renderer.cleared)

	state := h.session.State()
	assert.Equal(t, domain.PhaseEnded, state.Phase)
	assert.Equal(t, domain.EndCancelled, state.EndReason)
	assert.False(t, state.HasCurrent())
	assert.Empty(t, state.ExpectedChoices)
	assert.Empty(t, state.Context)
	assert.Empty(t, h.renderer.current)

	assert.ErrorIs(t, h.session.SubmitInput(ctx, "si"), domain.ErrNotAwaitingInput)
}

func TestSession_EndBeforeStart(t *testing.T) {
	h := newHarness(runtime.NewEngine(mustParse(t, decisionBody)), "s")
	require.NoError(t, h.session.End(context.Background()))
	assert.Equal(t, domain.PhaseEnded, h.session.State().Phase)
	assert.Empty(t, h.transcript.Turns)
}

func TestSession_SubmitValidation(t *testing.T) {
	h := newHarness(runtime.NewEngine(mustParse(t, decisionBody)), "s")
	ctx := context.Background()
	assert.ErrorIs(t, h.session.SubmitInput(ctx, "si"), domain.ErrNotAwaitingInput, "idle session")

	require.NoError(t, h.session.Start(ctx))
	turns := len(h.transcript.Turns)
	require.NoError(t, h.session.SubmitInput(ctx, "   "))
	assert.Len(t, h.transcript.Turns, turns, "blank replies are ignored")
}

func TestSession_ParallelAndThrow(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="start"/>
    <bpmn:parallelGateway id="fork" name="Dividir"/>
    <bpmn:intermediateThrowEvent id="notify" name="Aviso enviado"/>
    <bpmn:task id="other" name="Preparar paquete"/>
    <bpmn:endEvent id="end" name="Fin"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="fork"/>
    <bpmn:sequenceFlow id="f1" sourceRef="fork" targetRef="notify"/>
    <bpmn:sequenceFlow id="f2" sourceRef="fork" targetRef="other"/>
    <bpmn:sequenceFlow id="f3" sourceRef="notify" targetRef="end"/>`)
	h := newHarness(runtime.NewEngine(g), "s")
	require.NoError(t, h.session.Start(context.Background()))

	bot := h.transcript.Bot()
	require.Len(t, bot, 4)
	assert.Contains(t, bot[1], "Aviso enviado, Preparar paquete")
	assert.Contains(t, bot[1], "Continuaré conversando sobre la primera actividad")
	assert.Equal(t, `Ha ocurrido un evento: "Aviso enviado".`, bot[2])
	assert.NotContains(t, h.session.State().History, "other", "only the first branch runs")
}

func TestSession_NegativeLoopBack(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="start"/>
    <bpmn:task id="request" name="Solicitud Documentación del usuario"/>
    <bpmn:exclusiveGateway id="verify" name="Verificación de la documentación (¿Documentación completa?)"/>
    <bpmn:endEvent id="end" name="Fin"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="request"/>
    <bpmn:sequenceFlow id="f1" sourceRef="request" targetRef="verify"/>
    <bpmn:sequenceFlow id="f2" sourceRef="verify" targetRef="end" name="completa"/>`)
	engine := runtime.NewEngine(g, runtime.WithRoutes(routing.Default()))
	h := newHarness(engine, "s")
	ctx := context.Background()
	require.NoError(t, h.session.Start(ctx))

	require.NoError(t, h.session.SubmitInput(ctx, "no"))
	state := h.session.State()
	assert.Equal(t, "verify", state.CurrentNodeID, "loop-back re-runs the request task and returns to the gateway")
	assert.Equal(t, []string{"start", "request", "verify", "request", "verify"}, state.History)
	assert.Contains(t, h.transcript.Bot(), "Documentación incompleta. Por favor, vuelva a enviar los documentos requeridos.")

	require.NoError(t, h.session.SubmitInput(ctx, "está completa"))
	assert.Equal(t, domain.PhaseEnded, h.session.State().Phase)
}

func TestSession_Capture(t *testing.T) {
	g := mustParse(t, `
    <bpmn:startEvent id="start"/>
    <bpmn:task id="ask" name="Solicitud número de seguimiento"/>
    <bpmn:exclusiveGateway id="gw" name="¿Algo más?"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="ask"/>
    <bpmn:sequenceFlow id="f1" sourceRef="ask" targetRef="gw"/>`)
	h := newHarness(runtime.NewEngine(g, runtime.WithRoutes(routing.Default())), "s")
	ctx := context.Background()
	require.NoError(t, h.session.Start(ctx))

	state := h.session.State()
	require.Equal(t, domain.PhaseAwaitingInput, state.Phase)
	require.Equal(t, "ask", state.CurrentNodeID)

	require.NoError(t, h.session.SubmitInput(ctx, "AB-123"))
	state = h.session.State()
	assert.Equal(t, "AB-123", state.Context["tracking_number"])
	assert.Equal(t, "gw", state.CurrentNodeID)
	assert.Contains(t, h.transcript.Bot(), `Recibido: "AB-123". Procesando...`)
}

func TestSession_LifecycleHooks(t *testing.T) {
	var events []string
	engine := runtime.NewEngine(mustParse(t, decisionBody), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnNodeEnter:  func(ctx context.Context, e *domain.NodeEvent) { events = append(events, "enter:"+e.NodeID) },
		OnNodeLeave:  func(ctx context.Context, e *domain.NodeEvent) { events = append(events, "leave:"+e.NodeID) },
		OnNoMatch:    func(ctx context.Context, e *domain.InputEvent) { events = append(events, "nomatch:"+e.Input) },
		OnSessionEnd: func(ctx context.Context, e *domain.EndEvent) { events = append(events, "end:"+string(e.Reason)) },
	}))
	h := newHarness(engine, "s")
	ctx := context.Background()
	require.NoError(t, h.session.Start(ctx))
	_ = h.session.SubmitInput(ctx, "tal vez")
	require.NoError(t, h.session.SubmitInput(ctx, "si"))

	assert.Equal(t, []string{
		"enter:start", "leave:start",
		"enter:gw", "nomatch:tal vez", "leave:gw",
		"enter:yes", "end:completed",
	}, events)
}

func TestSession_PacingHonoursCancellation(t *testing.T) {
	engine := runtime.NewEngine(mustParse(t, linearBody), runtime.WithPacing(time.Hour))
	h := newHarness(engine, "s")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.session.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	state := h.session.State()
	assert.Equal(t, domain.PhaseActive, state.Phase, "an interrupted run can be resumed with Step")
	assert.Equal(t, "greet", state.CurrentNodeID)

	resumed := runtime.NewEngine(engine.Graph()).Resume(state, h.transcript, h.renderer)
	require.NoError(t, resumed.Step(context.Background()))
	assert.Equal(t, domain.PhaseEnded, resumed.State().Phase)
}

func TestSession_IsolatedContexts(t *testing.T) {
	items := []domain.Item{{ID: "1"}, {ID: "2"}}
	engine := bookingEngine(t, items)
	a := newHarness(engine, "a")
	b := newHarness(engine, "b")
	ctx := context.Background()
	require.NoError(t, a.session.Start(ctx))
	require.NoError(t, b.session.Start(ctx))

	require.NoError(t, a.session.SubmitInput(ctx, "1"))
	assert.Contains(t, a.session.State().Context, domain.KeySelected)
	assert.NotContains(t, b.session.State().Context, domain.KeySelected)
}
