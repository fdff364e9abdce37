// Package mcp exposes chat sessions as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/bpmnchat/internal/dto"
	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/internal/presentation/graph"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
	"github.com/aretw0/bpmnchat/pkg/runner"
	"github.com/aretw0/bpmnchat/pkg/session"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	graphURI     = "bpmnchat://graph"
	graphJSONURI = "bpmnchat://graph.json"
)

// Server exposes a session manager as an MCP server.
type Server struct {
	manager      *session.Manager
	mcpServer    *server.MCPServer
	logger       *slog.Logger
	maxInputSize int
}

// Option configures the Server.
type Option func(*options)

type options struct {
	version      string
	logger       *slog.Logger
	maxInputSize int
}

// WithVersion sets the server version announced to clients.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxInputSize bounds the size of a reply. Defaults to runner.MaxInputSize().
func WithMaxInputSize(n int) Option {
	return func(o *options) {
		o.maxInputSize = n
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(manager *session.Manager, opts ...Option) *Server {
	o := options{version: "dev", logger: logging.NewNop(), maxInputSize: runner.MaxInputSize()}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{
		manager: manager,
		mcpServer: server.NewMCPServer("bpmnchat", strings.TrimSpace(o.version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithInstructions("Drive a BPMN-defined chatbot: start_session, then send_message with the user's replies until the session phase is \"ended\"."),
		),
		logger:       o.logger,
		maxInputSize: o.maxInputSize,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server for custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

type startArgs struct {
	SessionID string `json:"session_id"`
}

type messageArgs struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a new conversation. Returns the bot's opening turns and the replies it expects."),
		mcp.WithString("session_id", mcp.Description("Session identifier (optional, generated when omitted)")),
		mcp.WithOutputSchema[dto.TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send the user's reply to an active conversation."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("text", mcp.Required(), mcp.Description("User reply")),
		mcp.WithOutputSchema[dto.TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleMessage))

	s.mcpServer.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("End a conversation. Ending twice is harmless."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[dto.TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleEnd))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Inspect a conversation without changing it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[dto.SessionView](),
	), mcp.NewStructuredToolHandler(s.handleGetSession))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the process diagram as a Mermaid flowchart, highlighted for a session if given."),
		mcp.WithString("session_id", mcp.Description("Session whose position to highlight (optional)")),
	), s.handleGetGraph)
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args startArgs) (dto.TurnResponse, error) {
	id := strings.TrimSpace(args.SessionID)
	if id == "" {
		id = uuid.NewString()
	}
	transcript := &ports.Transcript{}
	state, err := s.manager.Start(ctx, id, transcript, nil)
	return s.turn(state, transcript, err)
}

func (s *Server) handleMessage(ctx context.Context, _ mcp.CallToolRequest, args messageArgs) (dto.TurnResponse, error) {
	text, err := runner.Sanitize(args.Text, s.maxInputSize)
	if err != nil {
		s.logger.Warn("MCP send_message: input rejected", "err", err, "size", len(args.Text))
		return dto.TurnResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	transcript := &ports.Transcript{}
	state, err := s.manager.Submit(ctx, args.SessionID, text, transcript, nil)
	return s.turn(state, transcript, err)
}

func (s *Server) handleEnd(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (dto.TurnResponse, error) {
	transcript := &ports.Transcript{}
	state, err := s.manager.End(ctx, args.SessionID, transcript, nil)
	return s.turn(state, transcript, err)
}

func (s *Server) handleGetSession(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (dto.SessionView, error) {
	state, err := s.manager.Load(ctx, args.SessionID)
	if err != nil {
		return dto.SessionView{}, err
	}
	return dto.NewSessionView(s.manager.Engine().Graph(), state), nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var overlay *graph.GraphOverlay
	if id := request.GetString("session_id", ""); id != "" {
		state, err := s.manager.Load(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load session failed: %v", err)), nil
		}
		overlay = graph.OverlayFromSession(state)
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(s.manager.Engine().Graph(), overlay)), nil
}

// turn builds the tool result. Dialogue outcomes are reported in the Error
// field; anything else fails the tool call.
func (s *Server) turn(state *domain.Session, transcript *ports.Transcript, err error) (dto.TurnResponse, error) {
	if err != nil && (state == nil || !dto.Conversational(err)) {
		return dto.TurnResponse{}, err
	}
	resp := dto.TurnResponse{
		Session: dto.NewSessionView(s.manager.Engine().Graph(), state),
		Turns:   transcript.Turns,
		Error:   dto.ErrorCode(err),
	}
	if err != nil {
		resp.Message = err.Error()
	}
	return resp, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Process diagram (Mermaid)",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphURI,
				MIMEType: "text/plain",
				Text:     graph.GenerateMermaid(s.manager.Engine().Graph(), nil),
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource(graphJSONURI, "Process graph nodes",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(dto.NewGraphView(s.manager.Engine().Graph()))
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphJSONURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
