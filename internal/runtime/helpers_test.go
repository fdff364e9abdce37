package runtime_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/bpmnchat/internal/runtime"
	"github.com/aretw0/bpmnchat/pkg/bpmn"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/stretchr/testify/require"
)

// process wraps body in a BPMN document with one executable process.
func process(body string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <bpmn:process id="p" isExecutable="true">%s</bpmn:process>
</bpmn:definitions>`, body)
}

func mustParse(t *testing.T, body string) *domain.Graph {
	t.Helper()
	g, err := bpmn.Parse(strings.NewReader(process(body)))
	require.NoError(t, err)
	return g
}

// recRenderer records highlight calls.
type recRenderer struct {
	current string
	visited []string
	cleared int
}

func (r *recRenderer) Highlight(_ context.Context, nodeID string) error {
	r.current = nodeID
	r.visited = append(r.visited, nodeID)
	return nil
}

func (r *recRenderer) ClearHighlight(context.Context) error {
	r.current = ""
	r.cleared++
	return nil
}

type harness struct {
	session    *runtime.Session
	transcript *ports.Transcript
	renderer   *recRenderer
}

func newHarness(engine *runtime.Engine, id string) *harness {
	h := &harness{transcript: &ports.Transcript{}, renderer: &recRenderer{}}
	h.session = engine.NewSession(id, h.transcript, h.renderer)
	return h
}

const linearBody = `
    <bpmn:startEvent id="start" name="Inicio"/>
    <bpmn:task id="greet" name="Saludar al cliente"/>
    <bpmn:endEvent id="end" name="Fin"/>
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="greet"/>
    <bpmn:sequenceFlow id="f2" sourceRef="greet" targetRef="end"/>`

const decisionBody = `
    <bpmn:startEvent id="start"/>
    <bpmn:exclusiveGateway id="gw" name="¿Desea continuar?"/>
    <bpmn:endEvent id="yes" name="Aceptado"/>
    <bpmn:endEvent id="nope" name="Rechazado"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="gw"/>
    <bpmn:sequenceFlow id="f_si" sourceRef="gw" targetRef="yes" name="si"/>
    <bpmn:sequenceFlow id="f_no" sourceRef="gw" targetRef="nope" name="no"/>`

const eventBody = `
    <bpmn:startEvent id="start"/>
    <bpmn:eventBasedGateway id="gw" name="Qué quiere realizar el usuario?">
      <bpmn:messageEventDefinition/>
    </bpmn:eventBasedGateway>
    <bpmn:task id="track" name="Seguimiento"/>
    <bpmn:task id="ship" name="Envío"/>
    <bpmn:endEvent id="end" name="Fin"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="gw"/>
    <bpmn:sequenceFlow id="f1" sourceRef="gw" targetRef="track"/>
    <bpmn:sequenceFlow id="f2" sourceRef="gw" targetRef="ship"/>
    <bpmn:sequenceFlow id="f3" sourceRef="track" targetRef="end"/>
    <bpmn:sequenceFlow id="f4" sourceRef="ship" targetRef="end"/>`

// bookingBody mirrors the room reservation dialogue: a hook fills the item list,
// the catch event picks one, and a confirmation gateway keeps the session open.
const bookingBody = `
    <bpmn:startEvent id="start"/>
    <bpmn:task id="search" name="Busqueda de disponibilidad"/>
    <bpmn:intermediateCatchEvent id="pick" name="Elegir habitación"/>
    <bpmn:task id="confirm" name="Confirmar reserva"/>
    <bpmn:exclusiveGateway id="ok" name="¿Confirma?"/>
    <bpmn:endEvent id="done" name="Reserva creada"/>
    <bpmn:endEvent id="cancel" name="Reserva cancelada"/>
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="search"/>
    <bpmn:sequenceFlow id="f1" sourceRef="search" targetRef="pick"/>
    <bpmn:sequenceFlow id="f2" sourceRef="pick" targetRef="confirm"/>
    <bpmn:sequenceFlow id="f3" sourceRef="confirm" targetRef="ok"/>
    <bpmn:sequenceFlow id="f4" sourceRef="ok" targetRef="done" name="si"/>
    <bpmn:sequenceFlow id="f5" sourceRef="ok" targetRef="cancel" name="no"/>`
