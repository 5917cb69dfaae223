package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/ledger"
	"bank-ledger/internal/processor"
	"bank-ledger/internal/store"
)

type Handlers struct {
	lg *ledger.Ledger
}

func NewHandlers(lg *ledger.Ledger) *Handlers { return &Handlers{lg: lg} }

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if !h.lg.Healthy() {
		writeErr(w, http.StatusServiceUnavailable, "processor unhealthy")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func httpStatusForErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	// Ledger-level semantic errors
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, processor.ErrQueueFull),
		errors.Is(err, processor.ErrStopped):
		return http.StatusServiceUnavailable

	// Context / timeouts
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

func publicErrMessage(code int, err error) string {
	// Don't leak internals on 5xx.
	if code >= 500 {
		return "internal error"
	}
	return err.Error()
}

func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id, err := h.lg.CreateAccount(ctx, req.Name, req.InitialBalance)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusCreated, domain.CreateAccountResponse{AccountID: id})
}

func (h *Handlers) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.SubmitTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	kind, ok := domain.ParseKind(req.Kind)
	if !ok {
		writeErr(w, http.StatusBadRequest, "unknown transaction kind")
		return
	}

	destination := uuid.Nil
	if req.DestinationAccountID != nil {
		destination = *req.DestinationAccountID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	txID, err := h.lg.Submit(ctx, kind, req.SourceAccountID, req.Amount, destination)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	// Fire and forget: the record settles asynchronously.
	writeJSON(w, http.StatusAccepted, domain.SubmitTransactionResponse{TransactionID: txID})
}

// GET /v1/accounts/{uuid}
func (h *Handlers) GetAccountByPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, ok := pathID(w, r.URL.Path, "/v1/accounts/")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	a, err := h.lg.Account(ctx, id)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusOK, domain.AccountResponse{
		AccountID: a.ID,
		Name:      a.Name,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt.Format(time.RFC3339Nano),
	})
}

// GET /v1/transactions/{uuid}
func (h *Handlers) GetTransactionByPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, ok := pathID(w, r.URL.Path, "/v1/transactions/")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	tx, err := h.lg.Transaction(ctx, id)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	resp := domain.TransactionResponse{
		TransactionID:   tx.ID,
		Kind:            tx.Kind,
		SourceAccountID: tx.SourceID,
		Amount:          tx.Amount,
		Status:          tx.Status,
		FailureReason:   tx.FailureReason,
	}
	if tx.Kind == domain.KindTransfer {
		destination := tx.DestinationID
		resp.DestinationAccountID = &destination
	}
	writeJSON(w, http.StatusOK, resp)
}

func pathID(w http.ResponseWriter, path, prefix string) (uuid.UUID, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		writeErr(w, http.StatusNotFound, "not found")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
