package receiver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/multitoken/receiver"
	"github.com/xraph/multitoken/token"
)

func TestVerdictCheck(t *testing.T) {
	assert.NoError(t, receiver.Accept().Check(3))
	assert.NoError(t, receiver.Refund(1, 2, 3).Check(3))
	assert.NoError(t, (*receiver.Verdict)(nil).Check(2))
	assert.ErrorIs(t, receiver.Refund(1).Check(3), receiver.ErrMalformedVerdict)
}

func TestVerdictRefundAt(t *testing.T) {
	v := receiver.Refund(5, 0)
	assert.Equal(t, token.Amount(5), v.RefundAt(0))
	assert.Equal(t, token.Amount(0), v.RefundAt(1))
	assert.Equal(t, token.Amount(0), receiver.Accept().RefundAt(0))
}

func TestReject(t *testing.T) {
	n := &receiver.Notification{TokenIDs: []token.ID{"1", "2"}, Amounts: []token.Amount{1, 40}}
	assert.Equal(t, []token.Amount{1, 40}, receiver.Reject(n).Refunds)
}

func TestDirectory(t *testing.T) {
	d := receiver.NewDirectory()
	_, ok := d.Lookup("bob")
	assert.False(t, ok)

	d.Register("bob", receiver.Func(func(context.Context, *receiver.Notification) (*receiver.Verdict, error) {
		return receiver.Accept(), nil
	}))
	r, ok := d.Lookup("bob")
	require.True(t, ok)
	v, err := r.OnTransfer(context.Background(), &receiver.Notification{})
	require.NoError(t, err)
	assert.Empty(t, v.Refunds)

	d.Unregister("bob")
	_, ok = d.Lookup("bob")
	assert.False(t, ok)
}

func TestWebhook(t *testing.T) {
	var got receiver.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Hook-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"refunds":["1","25"]}`))
	}))
	defer srv.Close()

	hook := receiver.NewWebhook(srv.URL)
	hook.Header = http.Header{"X-Hook-Token": []string{"secret"}}

	v, err := hook.OnTransfer(context.Background(), &receiver.Notification{
		Sender:   "alice",
		Receiver: "bob",
		TokenIDs: []token.ID{"1", "2"},
		Amounts:  []token.Amount{1, 40},
		Message:  "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, []token.Amount{1, 25}, v.Refunds)
	assert.Equal(t, "hi", got.Message)
	assert.Equal(t, []token.Amount{1, 40}, got.Amounts)
}

func TestWebhookEmptyBodyAccepts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	v, err := receiver.NewWebhook(srv.URL).OnTransfer(context.Background(), &receiver.Notification{})
	require.NoError(t, err)
	assert.Empty(t, v.Refunds)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := receiver.NewWebhook(srv.URL).OnTransfer(context.Background(), &receiver.Notification{})
	assert.Error(t, err)
}
