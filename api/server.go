// Package api exposes a multitoken ledger over HTTP.
//
// Amounts travel as decimal strings. The calling account is taken from the
// X-Account-Id header; every state-changing route requires it.
package api

import (
	"net/http"
	"time"
)

// CallerHeader carries the account making a request.
const CallerHeader = "X-Account-Id"

// NewServer creates an HTTP server serving h on addr.
func NewServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Routes returns a mux with every ledger route registered under /v1.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/storage", h.GetStorage)

	mux.HandleFunc("POST /v1/tokens", h.requireCaller(h.Mint))
	mux.HandleFunc("GET /v1/tokens/{id}", h.GetToken)
	mux.HandleFunc("GET /v1/tokens/{id}/supply", h.GetSupply)
	mux.HandleFunc("GET /v1/tokens/{id}/holders", h.ListHolders)
	mux.HandleFunc("GET /v1/supply", h.GetSupplyBatch)
	mux.HandleFunc("GET /v1/accounts/{account}/balances", h.GetBalances)

	mux.HandleFunc("POST /v1/tokens/{id}/approvals", h.requireCaller(h.Approve))
	mux.HandleFunc("DELETE /v1/tokens/{id}/approvals", h.requireCaller(h.RevokeAll))
	mux.HandleFunc("GET /v1/tokens/{id}/approvals/{account}", h.GetApproval)
	mux.HandleFunc("DELETE /v1/tokens/{id}/approvals/{account}", h.requireCaller(h.Revoke))

	mux.HandleFunc("POST /v1/transfers", h.requireCaller(h.Transfer))
	mux.HandleFunc("POST /v1/transfers/batch", h.requireCaller(h.BatchTransfer))
	mux.HandleFunc("POST /v1/transfers/call", h.requireCaller(h.TransferCall))
	mux.HandleFunc("POST /v1/transfers/batch/call", h.requireCaller(h.BatchTransferCall))
	mux.HandleFunc("POST /v1/transfers/resolve", h.requireCaller(h.ResolveTransfer))
	mux.HandleFunc("GET /v1/transfers/{id}", h.GetPending)

	return mux
}
