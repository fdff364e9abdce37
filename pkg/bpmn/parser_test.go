package bpmn_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/bpmnchat/pkg/bpmn"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linear = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="defs">
  <bpmn:process id="draft" isExecutable="false">
    <bpmn:startEvent id="draft_start"/>
  </bpmn:process>
  <bpmn:process id="main" name="Principal" isExecutable="true">
    <bpmn:startEvent id="start" name="Inicio"/>
    <bpmn:task id="task" name="Saludar al cliente"/>
    <bpmn:endEvent id="end" name="Fin"/>
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="task"/>
    <bpmn:sequenceFlow id="f2" sourceRef="task" targetRef="end"/>
  </bpmn:process>
</bpmn:definitions>`

func TestParse_SelectsExecutableProcess(t *testing.T) {
	g, err := bpmn.Parse(strings.NewReader(linear))
	require.NoError(t, err)

	assert.Equal(t, "main", g.ProcessID)
	assert.Equal(t, "Principal", g.ProcessName)
	assert.Equal(t, 3, g.Len())

	_, ok := g.Node("draft_start")
	assert.False(t, ok, "nodes from other processes must not leak in")

	task, ok := g.Node("task")
	require.True(t, ok)
	want := &domain.Node{
		ID:       "task",
		Name:     "Saludar al cliente",
		Type:     domain.NodeTask,
		Outgoing: []domain.Flow{{ID: "f2", Source: "task", Target: "end"}},
		Incoming: []domain.Flow{{ID: "f1", Source: "start", Target: "task"}},
	}
	if diff := cmp.Diff(want, task); diff != "" {
		t.Errorf("task node mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_FallsBackToFirstProcess(t *testing.T) {
	doc := `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <process id="first"><startEvent id="a"/></process>
  <process id="second"><startEvent id="b"/></process>
</definitions>`

	g, err := bpmn.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "first", g.ProcessID)
	_, ok := g.Node("a")
	assert.True(t, ok)
}

func TestParse_FlowOrderAndGateways(t *testing.T) {
	doc := `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <process id="p" isExecutable="true">
    <eventBasedGateway id="gw" name="¿Qué desea?">
      <messageEventDefinition id="m1"/>
      <timerEventDefinition id="t1"/>
    </eventBasedGateway>
    <task id="a" name="Seguimiento"/>
    <task id="b" name="Envío"/>
    <sequenceFlow id="f2" sourceRef="gw" targetRef="b" name="Enviar"/>
    <sequenceFlow id="f1" sourceRef="gw" targetRef="a"/>
  </process>
</definitions>`

	g, err := bpmn.Parse(strings.NewReader(doc))
	require.NoError(t, err)

	gw, _ := g.Node("gw")
	assert.Equal(t, []string{"message", "timer"}, gw.WaitingEvents)
	require.Len(t, gw.Outgoing, 2)
	assert.Equal(t, "f2", gw.Outgoing[0].ID, "document order decides the first outgoing flow")
	assert.Equal(t, "Enviar", gw.Outgoing[0].Name)
	assert.Equal(t, "f1", gw.Outgoing[1].ID)
}

func TestParse_SubProcessIsOpaque(t *testing.T) {
	doc := `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <process id="p" isExecutable="true">
    <startEvent id="start"/>
    <subProcess id="sub" name="Validación de identidad">
      <startEvent id="inner_start"/>
    </subProcess>
    <sequenceFlow id="f1" sourceRef="start" targetRef="sub"/>
  </process>
</definitions>`

	g, err := bpmn.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Len(t, g.ByType(domain.NodeStartEvent), 1)
	sub, ok := g.Node("sub")
	require.True(t, ok)
	assert.Equal(t, domain.NodeSubProcess, sub.Type)
}

func TestParse_DanglingFlow(t *testing.T) {
	doc := `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <process id="p">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="ghost"/>
    <sequenceFlow id="f2" sourceRef="ghost" targetRef="start"/>
  </process>
</definitions>`

	t.Run("Lenient", func(t *testing.T) {
		g, err := bpmn.Parse(strings.NewReader(doc))
		require.NoError(t, err)
		start, _ := g.Node("start")
		assert.Len(t, start.Outgoing, 1, "the resolvable endpoint keeps the flow")
		assert.Len(t, start.Incoming, 1)
	})

	t.Run("Strict", func(t *testing.T) {
		_, err := bpmn.Parse(strings.NewReader(doc), bpmn.WithStrictFlows())
		assert.ErrorIs(t, err, bpmn.ErrParse)
	})
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"Empty", "", bpmn.ErrParse},
		{"Malformed", "<definitions><process id='p'>", bpmn.ErrParse},
		{"No Process", `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL"/>`, bpmn.ErrNoProcess},
		{"Duplicate IDs", `<definitions><process id="p"><task id="x"/><task id="x"/></process></definitions>`, bpmn.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := bpmn.Parse(strings.NewReader(tt.input))
			assert.Nil(t, g, "no graph may be returned on failure")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("Typed", func(t *testing.T) {
		_, err := bpmn.Parse(strings.NewReader(`<definitions/>`))
		var target *bpmn.NoExecutableProcessError
		assert.True(t, errors.As(err, &target))
	})
}

func TestParseFile_Missing(t *testing.T) {
	_, err := bpmn.ParseFile("does-not-exist.bpmn")
	assert.Error(t, err)
}
