package audithook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/multitoken/audit_hook"
	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/id"
)

type sink struct{ events []*audithook.AuditEvent }

func (s *sink) Record(_ context.Context, ev *audithook.AuditEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func TestTransferAndRevert(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)
	ctx := context.Background()

	require.NoError(t, ext.OnTransfer(ctx, &event.Transfer{Kind: event.KindTransfer, TokenID: "1", From: "a", To: "b", Amount: 1}))
	require.NoError(t, ext.OnTransfer(ctx, &event.Transfer{Kind: event.KindRevert, TokenID: "1", From: "b", To: "a", Amount: 1, PendingID: id.NewTransferID()}))

	require.Len(t, s.events, 2)
	assert.Equal(t, audithook.ActionTransferApplied, s.events[0].Action)
	assert.Equal(t, "1", s.events[0].ResourceID)
	assert.Equal(t, audithook.ActionTransferReverted, s.events[1].Action)
	assert.Equal(t, audithook.SeverityWarning, s.events[1].Severity)
	assert.Contains(t, s.events[1].Metadata, "pending_id")
}

func TestResolutionFailure(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)

	require.NoError(t, ext.OnTransferResolved(context.Background(), &event.Resolution{
		PendingID: id.NewTransferID(),
		Outcome:   event.OutcomeReverted,
		Failure:   "receiver timed out",
	}))
	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.OutcomePartial, s.events[0].Outcome)
	assert.Equal(t, "receiver timed out", s.events[0].Reason)
}

func TestDisabledActions(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s, audithook.WithDisabledActions(audithook.ActionApprovalGranted))
	ctx := context.Background()

	require.NoError(t, ext.OnApprovalChanged(ctx, &event.Approval{TokenID: "1", Account: "b", Seq: 1}))
	require.NoError(t, ext.OnApprovalChanged(ctx, &event.Approval{TokenID: "1", Account: "b", Revoked: true}))

	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.ActionApprovalRevoked, s.events[0].Action)
}

func TestEnabledActions(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s, audithook.WithEnabledActions(audithook.ActionTokenMinted))
	ctx := context.Background()

	require.NoError(t, ext.OnTransfer(ctx, &event.Transfer{TokenID: "1"}))
	require.NoError(t, ext.OnTokenMinted(ctx, &event.Mint{TokenID: "1"}))
	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.ActionTokenMinted, s.events[0].Action)
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	assert.NoError(t, ext.OnTokenMinted(context.Background(), &event.Mint{TokenID: "1"}))
}
