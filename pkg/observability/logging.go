package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one structured record per event.
// Transitions log at Debug, failures at Warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "session_id", e.SessionID, "node_id", e.NodeID, "type", e.NodeType)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "session_id", e.SessionID, "node_id", e.NodeID)
		},
		OnHookCall: func(ctx context.Context, e *domain.HookEvent) {
			logger.DebugContext(ctx, "hook_call", "session_id", e.SessionID, "hook", e.HookName)
		},
		OnHookReturn: func(ctx context.Context, e *domain.HookEvent) {
			level := slog.LevelDebug
			if e.IsError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "hook_return",
				"session_id", e.SessionID,
				"hook", e.HookName,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
		OnNoMatch: func(ctx context.Context, e *domain.InputEvent) {
			logger.InfoContext(ctx, "no_match", "session_id", e.SessionID, "node_id", e.NodeID, "input", e.Input)
		},
		OnSessionEnd: func(ctx context.Context, e *domain.EndEvent) {
			logger.InfoContext(ctx, "session_end", "session_id", e.SessionID, "reason", e.Reason)
		},
	}
}
