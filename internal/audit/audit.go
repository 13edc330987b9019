package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ericksa/lexiguard/internal/store"
)

// Actions recorded by LexiGuard.
const (
	ActionAnalyzeContract   = "analyze_contract"
	ActionDuplicateDetected = "duplicate_detected"
	ActionError             = "error"
	ActionToolCall          = "tool_call"
)

// SystemUser attributes events no caller triggered directly.
const SystemUser = "system"

// Auditor appends events to the audit_logs collection. Write failures are
// logged and never returned to the caller.
type Auditor struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewAuditor(s store.Store, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{store: s, logger: logger, now: time.Now}
}

func (a *Auditor) Log(ctx context.Context, user, action, details string) {
	if a == nil || a.store == nil {
		return
	}
	ev := &store.AuditEvent{
		User:      user,
		Action:    action,
		Details:   details,
		Timestamp: a.now().UTC(),
	}
	if err := a.store.AddAudit(ctx, ev); err != nil {
		a.logger.Error("failed to write audit log",
			zap.String("action", action),
			zap.String("user", user),
			zap.Error(err),
		)
	}
}

// GetLogs returns up to limit events, newest first.
func (a *Auditor) GetLogs(ctx context.Context, limit int) ([]*store.AuditEvent, error) {
	if a == nil || a.store == nil {
		return []*store.AuditEvent{}, nil
	}
	return a.store.ListAudit(ctx, limit)
}
