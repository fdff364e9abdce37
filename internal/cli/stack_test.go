package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/bpmnchat/internal/config"
	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/aretw0/bpmnchat/pkg/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hotelDiagram  = "../../examples/hotel/hotel.bpmn"
	hotelDialogue = "../../examples/hotel/dialogue.yaml"
)

func testConfig() *config.Config {
	return &config.Config{
		Process:     hotelDiagram,
		LogLevel:    "error",
		Port:        8080,
		Store:       config.StoreMemory,
		Inventory:   config.InventoryMemory,
		RedisPrefix: "bpmnchat:",
		SessionTTL:  time.Hour,
	}
}

func newTestStack(t *testing.T, cfg *config.Config) *Stack {
	t.Helper()
	st, err := NewStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestNewStack_Memory(t *testing.T) {
	cfg := testConfig()
	cfg.Dialogue = hotelDialogue
	st := newTestStack(t, cfg)

	assert.Equal(t, "Reserva de habitaciones", st.Engine.Name)
	assert.Nil(t, st.Registry)

	items, err := st.Inventory.ListAvailable(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 3)

	state, err := st.Manager.Start(context.Background(), "s1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "pick", state.CurrentNodeID)
}

func TestNewStack_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"No Process", func(c *config.Config) { c.Process = "" }, "no process diagram"},
		{"Missing Diagram", func(c *config.Config) { c.Process = "missing.bpmn" }, "failed to load process"},
		{"Missing Dialogue", func(c *config.Config) { c.Dialogue = "missing.yaml" }, "failed to open dialogue file"},
		{"Invalid Config", func(c *config.Config) { c.Store = "etcd" }, "unknown store"},
		{"Bad Encryption Key", func(c *config.Config) { c.EncryptionKey = "c2hvcnQ=" }, "BPMNCHAT_ENCRYPTION_KEY"},
		{"Bad PII Pattern", func(c *config.Config) { c.PIIKeys = []string{"("} }, "invalid pii pattern"},
		{"Redis Down", func(c *config.Config) { c.Store = config.StoreRedis; c.RedisAddr = "127.0.0.1:1" }, "failed to connect to redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := NewStack(context.Background(), cfg, logging.NewNop())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewStack_StrictFlows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dangling.bpmn")
	diagram := `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <process id="p"><startEvent id="s"/><sequenceFlow id="f" sourceRef="s" targetRef="ghost"/></process>
</definitions>`
	require.NoError(t, os.WriteFile(path, []byte(diagram), 0o644))

	cfg := testConfig()
	cfg.Process = path
	newTestStack(t, cfg)

	cfg.StrictFlows = true
	_, err := NewStack(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "references unknown node")
}

func TestNewStack_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Store = config.StoreRedis
	cfg.Inventory = config.InventoryRedis
	cfg.RedisAddr = mr.Addr()
	st := newTestStack(t, cfg)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, st.Inventory, reservation.DemoItems()))
	items, err := st.Inventory.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = st.Manager.Start(ctx, "s1", nil, nil)
	require.NoError(t, err)
	_, err = st.Manager.Submit(ctx, "s1", "1", nil, nil)
	require.NoError(t, err)

	ids, err := st.Manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
	assert.True(t, mr.Exists("bpmnchat:session:s1"))
}

func TestNewStack_FileStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store = config.StoreFile
	cfg.SessionDir = t.TempDir()
	ctx := context.Background()

	st := newTestStack(t, cfg)
	_, err := st.Manager.Start(ctx, "f1", nil, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.SessionDir, "f1.json"))

	// A second stack on the same directory sees the conversation.
	again := newTestStack(t, cfg)
	state, err := again.Manager.Load(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "pick", state.CurrentNodeID)
}

func TestNewStack_EncryptedRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Store = config.StoreRedis
	cfg.RedisAddr = mr.Addr()
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	st := newTestStack(t, cfg)
	ctx := context.Background()

	_, err := st.Manager.Start(ctx, "s1", nil, nil)
	require.NoError(t, err)

	raw, err := mr.Get("bpmnchat:session:s1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "individual", "offered rooms are sealed")
	assert.Contains(t, raw, "__encrypted__")

	state, err := st.Manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "pick", state.CurrentNodeID)
}

func TestNewStack_Metrics(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics = true
	st := newTestStack(t, cfg)
	require.NotNil(t, st.Registry)

	_, err := st.Manager.Start(context.Background(), "s1", nil, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHTTPHandler(st, 0, "test"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewInventory_HTTP(t *testing.T) {
	backendStack := newTestStack(t, testConfig())
	srv := httptest.NewServer(NewHTTPHandler(backendStack, 0, "test"))
	defer srv.Close()

	cfg := testConfig()
	cfg.Inventory = config.InventoryHTTP
	cfg.InventoryURL = srv.URL
	st := newTestStack(t, cfg)

	items, err := st.Inventory.ListAvailable(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 3)

	ack, err := st.Inventory.Reserve(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, ports.StatusReserved, ack.Status)
}

func TestSeed_Unsupported(t *testing.T) {
	st := newTestStack(t, testConfig())
	err := Seed(context.Background(), st.Inventory, []domain.Item{{ID: "1"}})
	assert.ErrorContains(t, err, "cannot be seeded")
}

func TestServe_Shutdown(t *testing.T) {
	st := newTestStack(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", NewHTTPHandler(st, 0, "test"), st) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * ShutdownTimeout):
		t.Fatal("server did not stop")
	}
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, HandleExecutionError(nil))
	assert.NoError(t, HandleExecutionError(context.Canceled))
	assert.NoError(t, HandleExecutionError(fmt.Errorf("input error: %w", io.EOF)))
	assert.ErrorIs(t, HandleExecutionError(assert.AnError), assert.AnError)
	assert.NoError(t, HandleExecutionError(interruption{sig: os.Interrupt}))
}

func TestSignalContext(t *testing.T) {
	sc := NewSignalContext(context.Background())
	assert.Nil(t, sc.Signal())

	sc.Cancel()
	<-sc.Done()
	assert.Nil(t, sc.Signal(), "a manual cancel records no signal")
	assert.ErrorIs(t, sc.Err(), context.Canceled)
}

func TestInterruption(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(interruption{sig: syscall.SIGTERM})

	sc := &SignalContext{Context: ctx, Cancel: func() {}}
	assert.Equal(t, syscall.SIGTERM, sc.Signal())
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
	assert.EqualError(t, context.Cause(ctx), "interrupted by terminated")
}
