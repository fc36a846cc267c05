package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/xraph/multitoken"
	"github.com/xraph/multitoken/receiver"
	"github.com/xraph/multitoken/token"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Handler provides HTTP endpoints for a ledger.
type Handler struct {
	ledger       *multitoken.Ledger
	pricePerByte decimal.Decimal
	logger       *slog.Logger
}

// NewHandler creates a new API handler. pricePerByte prices the storage
// costs reported by GET /v1/storage.
func NewHandler(l *multitoken.Ledger, pricePerByte decimal.Decimal, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ledger: l, pricePerByte: pricePerByte, logger: logger}
}

func caller(r *http.Request) token.AccountID {
	return token.AccountID(r.Header.Get(CallerHeader))
}

func (h *Handler) requireCaller(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := caller(r).Validate(); err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid "+CallerHeader+" header")
			return
		}
		next(w, r)
	}
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

type storageResponse struct {
	Costs    token.StorageCosts  `json:"costs"`
	Deposits multitoken.Deposits `json:"deposits"`
}

// GetStorage handles GET /v1/storage.
func (h *Handler) GetStorage(w http.ResponseWriter, _ *http.Request) {
	costs := h.ledger.StorageCosts()
	writeJSON(w, http.StatusOK, storageResponse{
		Costs:    costs,
		Deposits: multitoken.StorageDeposit(costs, h.pricePerByte),
	})
}

// GetToken handles GET /v1/tokens/{id}.
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	view, err := h.ledger.Token(r.Context(), token.ID(r.PathValue("id")))
	if err != nil {
		h.fail(w, "failed to get token", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type supplyResponse struct {
	TokenID token.ID     `json:"token_id"`
	Supply  token.Amount `json:"supply"`
}

// GetSupply handles GET /v1/tokens/{id}/supply.
func (h *Handler) GetSupply(w http.ResponseWriter, r *http.Request) {
	tokenID := token.ID(r.PathValue("id"))
	supply, err := h.ledger.TotalSupply(r.Context(), tokenID)
	if err != nil {
		h.fail(w, "failed to get supply", err)
		return
	}
	writeJSON(w, http.StatusOK, supplyResponse{TokenID: tokenID, Supply: supply})
}

// GetSupplyBatch handles GET /v1/supply?token_id=a&token_id=b.
func (h *Handler) GetSupplyBatch(w http.ResponseWriter, r *http.Request) {
	tokenIDs := queryTokenIDs(r)
	if len(tokenIDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one token_id is required")
		return
	}
	supplies, err := h.ledger.TotalSupplyBatch(r.Context(), tokenIDs)
	if err != nil {
		h.fail(w, "failed to get supplies", err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(tokenIDs, func(id token.ID, i int) supplyResponse {
		return supplyResponse{TokenID: id, Supply: supplies[i]}
	}))
}

// ListHolders handles GET /v1/tokens/{id}/holders.
func (h *Handler) ListHolders(w http.ResponseWriter, r *http.Request) {
	holders, err := h.ledger.Holders(r.Context(), token.ID(r.PathValue("id")))
	if err != nil {
		h.fail(w, "failed to list holders", err)
		return
	}
	writeJSON(w, http.StatusOK, holders)
}

type balanceResponse struct {
	TokenID token.ID     `json:"token_id"`
	Balance token.Amount `json:"balance"`
}

// GetBalances handles GET /v1/accounts/{account}/balances?token_id=a&token_id=b.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	tokenIDs := queryTokenIDs(r)
	if len(tokenIDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one token_id is required")
		return
	}
	balances, err := h.ledger.BalanceOfBatch(r.Context(), token.AccountID(r.PathValue("account")), tokenIDs)
	if err != nil {
		h.fail(w, "failed to get balances", err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(tokenIDs, func(id token.ID, i int) balanceResponse {
		return balanceResponse{TokenID: id, Balance: balances[i]}
	}))
}

// ──────────────────────────────────────────────────
// Mint and approvals
// ──────────────────────────────────────────────────

// Mint handles POST /v1/tokens.
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var req multitoken.MintRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.ledger.Mint(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, "failed to mint token", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

type approveRequest struct {
	Account token.AccountID `json:"account_id"`
}

type approvalResponse struct {
	TokenID     token.ID          `json:"token_id"`
	Account     token.AccountID   `json:"account_id"`
	ApprovalSeq token.ApprovalSeq `json:"approval_id,omitempty"`
	Approved    bool              `json:"approved"`
}

// Approve handles POST /v1/tokens/{id}/approvals.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decode(w, r, &req) {
		return
	}
	tokenID := token.ID(r.PathValue("id"))
	seq, err := h.ledger.Approve(r.Context(), caller(r), tokenID, req.Account)
	if err != nil {
		h.fail(w, "failed to approve account", err)
		return
	}
	writeJSON(w, http.StatusCreated, approvalResponse{TokenID: tokenID, Account: req.Account, ApprovalSeq: seq, Approved: true})
}

// GetApproval handles GET /v1/tokens/{id}/approvals/{account}?approval_id=N.
func (h *Handler) GetApproval(w http.ResponseWriter, r *http.Request) {
	tokenID := token.ID(r.PathValue("id"))
	account := token.AccountID(r.PathValue("account"))

	var seq *token.ApprovalSeq
	if s := r.URL.Query().Get("approval_id"); s != "" {
		var v token.ApprovalSeq
		if err := v.UnmarshalText([]byte(s)); err != nil {
			writeError(w, http.StatusBadRequest, "invalid approval_id")
			return
		}
		seq = &v
	}

	ok, err := h.ledger.IsApproved(r.Context(), tokenID, account, seq)
	if err != nil {
		h.fail(w, "failed to check approval", err)
		return
	}
	writeJSON(w, http.StatusOK, approvalResponse{TokenID: tokenID, Account: account, Approved: ok})
}

// Revoke handles DELETE /v1/tokens/{id}/approvals/{account}.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.Revoke(r.Context(), caller(r), token.ID(r.PathValue("id")), token.AccountID(r.PathValue("account")))
	if err != nil {
		h.fail(w, "failed to revoke approval", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeAll handles DELETE /v1/tokens/{id}/approvals.
func (h *Handler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.RevokeAll(r.Context(), caller(r), token.ID(r.PathValue("id"))); err != nil {
		h.fail(w, "failed to revoke approvals", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ──────────────────────────────────────────────────
// Transfers
// ──────────────────────────────────────────────────

// Transfer handles POST /v1/transfers. The caller is the sender.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req multitoken.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	req.Sender = caller(r)
	receipt, err := h.ledger.Transfer(r.Context(), req)
	if err != nil {
		h.fail(w, "failed to transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// BatchTransfer handles POST /v1/transfers/batch. The caller is the sender.
func (h *Handler) BatchTransfer(w http.ResponseWriter, r *http.Request) {
	var req multitoken.BatchTransferRequest
	if !decode(w, r, &req) {
		return
	}
	req.Sender = caller(r)
	receipts, err := h.ledger.BatchTransfer(r.Context(), req)
	if err != nil {
		h.fail(w, "failed to transfer batch", err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// TransferCall handles POST /v1/transfers/call. The response is sent once the
// tokens have moved; the receiver's verdict is reported by GET
// /v1/transfers/{id}.
func (h *Handler) TransferCall(w http.ResponseWriter, r *http.Request) {
	var req multitoken.TransferCallRequest
	if !decode(w, r, &req) {
		return
	}
	req.Sender = caller(r)
	p, err := h.ledger.TransferCall(r.Context(), req)
	if err != nil {
		h.fail(w, "failed to start transfer call", err)
		return
	}
	writeJSON(w, http.StatusAccepted, newPendingResponse(p))
}

// BatchTransferCall handles POST /v1/transfers/batch/call.
func (h *Handler) BatchTransferCall(w http.ResponseWriter, r *http.Request) {
	var req multitoken.BatchTransferCallRequest
	if !decode(w, r, &req) {
		return
	}
	req.Sender = caller(r)
	p, err := h.ledger.BatchTransferCall(r.Context(), req)
	if err != nil {
		h.fail(w, "failed to start batch transfer call", err)
		return
	}
	writeJSON(w, http.StatusAccepted, newPendingResponse(p))
}

type pendingResponse struct {
	ID       multitoken.TransferID    `json:"id"`
	State    multitoken.TransferState `json:"state"`
	Sender   token.AccountID          `json:"sender_id"`
	Receiver token.AccountID          `json:"receiver_id"`
	Items    []multitoken.Receipt     `json:"items"`
	Message  string                   `json:"msg,omitempty"`
	Result   *multitoken.Resolution   `json:"result,omitempty"`
}

func newPendingResponse(p *multitoken.Pending) pendingResponse {
	return pendingResponse{
		ID:       p.ID,
		State:    p.State(),
		Sender:   p.Sender,
		Receiver: p.Receiver,
		Items:    p.Items,
		Message:  p.Message,
		Result:   p.Result(),
	}
}

// GetPending handles GET /v1/transfers/{id}.
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	transferID, err := multitoken.ParseTransferID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}
	p, err := h.ledger.Pending(transferID)
	if err != nil {
		h.fail(w, "failed to get transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, newPendingResponse(p))
}

type resolveRequest struct {
	multitoken.ResolveRequest
	// Failure marks the notification as failed, returning every token.
	Failure string         `json:"failure,omitempty"`
	Refunds []token.Amount `json:"refunds,omitempty"`
}

// ResolveTransfer handles POST /v1/transfers/resolve. Only the ledger owner
// may settle a transfer whose notification was carried by the host.
func (h *Handler) ResolveTransfer(w http.ResponseWriter, r *http.Request) {
	if caller(r) != h.ledger.Owner() {
		writeError(w, http.StatusForbidden, "only the ledger owner may resolve transfers")
		return
	}
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Failure != "" {
		req.Outcome = multitoken.Outcome{Err: errors.New(req.Failure)}
	} else {
		req.Outcome = multitoken.Outcome{Verdict: &receiver.Verdict{Refunds: req.Refunds}}
	}

	res, err := h.ledger.ResolveTransfer(r.Context(), req.ResolveRequest)
	if err != nil {
		h.fail(w, "failed to resolve transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func queryTokenIDs(r *http.Request) []token.ID {
	return lo.Map(r.URL.Query()["token_id"], func(s string, _ int) token.ID { return token.ID(s) })
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// fail maps a ledger error to a status code.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case multitoken.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case multitoken.IsAuthorization(err):
		writeError(w, http.StatusForbidden, err.Error())
	case multitoken.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case multitoken.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, multitoken.ErrNotStarted), errors.Is(err, multitoken.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
