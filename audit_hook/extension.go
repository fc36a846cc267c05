// Package audithook bridges ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/plugin"
	"github.com/xraph/multitoken/receiver"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnTokenMinted      = (*Extension)(nil)
	_ plugin.OnTransfer         = (*Extension)(nil)
	_ plugin.OnApprovalChanged  = (*Extension)(nil)
	_ plugin.OnNotifyDispatched = (*Extension)(nil)
	_ plugin.OnTransferResolved = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Token hooks
// ──────────────────────────────────────────────────

// OnTokenMinted implements plugin.OnTokenMinted.
func (e *Extension) OnTokenMinted(ctx context.Context, ev *event.Mint) error {
	return e.record(ctx, ActionTokenMinted, SeverityInfo, OutcomeSuccess,
		ResourceToken, string(ev.TokenID), CategoryIssuance, nil,
		"token_type", ev.Type.String(),
		"owner_id", string(ev.Owner),
		"amount", ev.Amount.String(),
	)
}

// OnTransfer implements plugin.OnTransfer.
func (e *Extension) OnTransfer(ctx context.Context, ev *event.Transfer) error {
	action, severity := ActionTransferApplied, SeverityInfo
	if ev.Kind == event.KindRevert {
		action, severity = ActionTransferReverted, SeverityWarning
	}
	kv := []any{
		"token_type", ev.TokenType.String(),
		"old_owner_id", string(ev.From),
		"new_owner_id", string(ev.To),
		"amount", ev.Amount.String(),
	}
	if ev.Memo != "" {
		kv = append(kv, "memo", ev.Memo)
	}
	if !ev.PendingID.IsNil() {
		kv = append(kv, "pending_id", ev.PendingID.String())
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceToken, string(ev.TokenID), CategoryTransfer, nil,
		kv...,
	)
}

// OnApprovalChanged implements plugin.OnApprovalChanged.
func (e *Extension) OnApprovalChanged(ctx context.Context, ev *event.Approval) error {
	action := ActionApprovalGranted
	if ev.Revoked {
		action = ActionApprovalRevoked
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceApproval, string(ev.TokenID), CategoryAccess, nil,
		"owner_id", string(ev.Owner),
		"account_id", string(ev.Account),
		"approval_id", ev.Seq.String(),
	)
}

// ──────────────────────────────────────────────────
// Transfer-and-notify hooks
// ──────────────────────────────────────────────────

// OnNotifyDispatched implements plugin.OnNotifyDispatched.
func (e *Extension) OnNotifyDispatched(ctx context.Context, n *receiver.Notification) error {
	return e.record(ctx, ActionNotifyDispatched, SeverityInfo, OutcomeSuccess,
		ResourcePending, n.TransferID.String(), CategoryTransfer, nil,
		"sender_id", string(n.Sender),
		"receiver_id", string(n.Receiver),
		"tokens", len(n.TokenIDs),
	)
}

// OnTransferResolved implements plugin.OnTransferResolved.
func (e *Extension) OnTransferResolved(ctx context.Context, res *event.Resolution) error {
	severity, outcome := SeverityInfo, OutcomeSuccess
	if res.Outcome == event.OutcomeReverted {
		outcome = OutcomePartial
	}
	var err error
	if res.Failure != "" {
		severity = SeverityWarning
		err = errors.New(res.Failure)
	}
	ids := make([]string, len(res.TokenIDs))
	for i, t := range res.TokenIDs {
		ids[i] = string(t)
	}
	return e.record(ctx, ActionTransferResolved, severity, outcome,
		ResourcePending, res.PendingID.String(), CategoryTransfer, err,
		"sender_id", string(res.Sender),
		"receiver_id", string(res.Receiver),
		"token_ids", strings.Join(ids, ","),
		"outcome", string(res.Outcome),
		"latency_ms", res.Latency.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
