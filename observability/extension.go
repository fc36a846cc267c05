// Package observability provides a metrics extension for the ledger that
// records event counts via a MetricFactory such as forge's app.Metrics().
package observability

import (
	"context"

	"github.com/xraph/multitoken/event"
	"github.com/xraph/multitoken/plugin"
	"github.com/xraph/multitoken/receiver"
	"github.com/xraph/multitoken/token"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnTokenMinted      = (*MetricsExtension)(nil)
	_ plugin.OnTransfer         = (*MetricsExtension)(nil)
	_ plugin.OnApprovalChanged  = (*MetricsExtension)(nil)
	_ plugin.OnNotifyDispatched = (*MetricsExtension)(nil)
	_ plugin.OnTransferResolved = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger metrics.
// Register it as a ledger plugin to track token activity.
type MetricsExtension struct {
	factory MetricFactory

	// Token metrics
	FTMinted  Counter
	NFTMinted Counter

	// Transfer metrics
	FTTransfers    Counter
	NFTTransfers   Counter
	Reverts        Counter
	TransferAmount Histogram
	RevertedAmount Histogram

	// Approval metrics
	ApprovalsGranted Counter
	ApprovalsRevoked Counter

	// Transfer-and-notify metrics
	NotifyDispatched Counter
	NotifyResolved   Counter
	NotifyReverted   Counter
	NotifyFailed     Counter
	NotifyLatency    Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		FTMinted:  factory.Counter("multitoken.token.ft.minted"),
		NFTMinted: factory.Counter("multitoken.token.nft.minted"),

		FTTransfers:    factory.Counter("multitoken.transfer.ft"),
		NFTTransfers:   factory.Counter("multitoken.transfer.nft"),
		Reverts:        factory.Counter("multitoken.transfer.reverted"),
		TransferAmount: factory.Histogram("multitoken.transfer.amount"),
		RevertedAmount: factory.Histogram("multitoken.transfer.reverted_amount"),

		ApprovalsGranted: factory.Counter("multitoken.approval.granted"),
		ApprovalsRevoked: factory.Counter("multitoken.approval.revoked"),

		NotifyDispatched: factory.Counter("multitoken.notify.dispatched"),
		NotifyResolved:   factory.Counter("multitoken.notify.resolved"),
		NotifyReverted:   factory.Counter("multitoken.notify.reverted"),
		NotifyFailed:     factory.Counter("multitoken.notify.failed"),
		NotifyLatency:    factory.Histogram("multitoken.notify.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnTokenMinted implements plugin.OnTokenMinted.
func (m *MetricsExtension) OnTokenMinted(_ context.Context, ev *event.Mint) error {
	if ev.Type == token.NonFungible {
		m.NFTMinted.Inc()
	} else {
		m.FTMinted.Inc()
	}
	return nil
}

// OnTransfer implements plugin.OnTransfer.
func (m *MetricsExtension) OnTransfer(_ context.Context, ev *event.Transfer) error {
	if ev.Kind == event.KindRevert {
		m.Reverts.Inc()
		m.RevertedAmount.Observe(float64(ev.Amount))
		return nil
	}
	if ev.TokenType == token.NonFungible {
		m.NFTTransfers.Inc()
	} else {
		m.FTTransfers.Inc()
	}
	m.TransferAmount.Observe(float64(ev.Amount))
	return nil
}

// OnApprovalChanged implements plugin.OnApprovalChanged.
func (m *MetricsExtension) OnApprovalChanged(_ context.Context, ev *event.Approval) error {
	if ev.Revoked {
		m.ApprovalsRevoked.Inc()
	} else {
		m.ApprovalsGranted.Inc()
	}
	return nil
}

// OnNotifyDispatched implements plugin.OnNotifyDispatched.
func (m *MetricsExtension) OnNotifyDispatched(_ context.Context, _ *receiver.Notification) error {
	m.NotifyDispatched.Inc()
	return nil
}

// OnTransferResolved implements plugin.OnTransferResolved.
func (m *MetricsExtension) OnTransferResolved(_ context.Context, res *event.Resolution) error {
	if res.Outcome == event.OutcomeReverted {
		m.NotifyReverted.Inc()
	} else {
		m.NotifyResolved.Inc()
	}
	if res.Failure != "" {
		m.NotifyFailed.Inc()
	}
	m.NotifyLatency.Observe(float64(res.Latency.Milliseconds()))
	return nil
}
