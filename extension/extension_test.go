package extension

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/multitoken"
	"github.com/xraph/multitoken/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	e := New()
	cfg := e.mergeWithDefaults(Config{NotifyTimeout: time.Second})

	assert.Equal(t, "/multitoken", cfg.BasePath)
	assert.Equal(t, time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 10*time.Minute, cfg.PendingRetention)
	assert.Equal(t, "0", cfg.StoragePricePerByte)
}

func TestMergeConfigurations(t *testing.T) {
	e := New()
	yaml := Config{Owner: "treasury", NotifyTimeout: 5 * time.Second}
	programmatic := Config{
		Owner:           "ignored",
		BasePath:        "/tokens",
		EnableApprovals: true,
		DisableRoutes:   true,
		NotifyTimeout:   time.Minute,
	}

	cfg := e.mergeConfigurations(yaml, programmatic)
	assert.Equal(t, "treasury", cfg.Owner)
	assert.Equal(t, "/tokens", cfg.BasePath)
	assert.True(t, cfg.EnableApprovals)
	assert.True(t, cfg.DisableRoutes)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 10*time.Minute, cfg.PendingRetention)
}

func TestHandlerMountsUnderBasePath(t *testing.T) {
	e := New(
		WithStore(memory.New()),
		WithOwner("treasury"),
		WithApprovals(),
		WithStoragePricePerByte("0.5"),
	)
	e.config = e.mergeWithDefaults(e.config)
	e.engine = multitoken.New(e.store, e.buildLedgerOpts()...)
	require.NoError(t, e.engine.Start(context.Background()))
	t.Cleanup(func() { _ = e.engine.Stop() })

	assert.True(t, e.engine.ApprovalsEnabled())
	assert.Equal(t, multitoken.AccountID("treasury"), e.engine.Owner())

	h, err := e.buildHandler()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/multitoken/v1/storage", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ft_creation_bytes")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/storage", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuildHandlerRejectsBadPrice(t *testing.T) {
	e := New(WithStoragePricePerByte("cheap"))
	e.config = e.mergeWithDefaults(e.config)
	e.engine = multitoken.New(memory.New())

	_, err := e.buildHandler()
	assert.ErrorContains(t, err, "storage_price_per_byte")
}
