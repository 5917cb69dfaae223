package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/ledger"
	"bank-ledger/internal/processor"
	"bank-ledger/internal/store"
)

func TestHTTPStatusForErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", store.ErrValidation, http.StatusBadRequest},
		{"notfound", store.ErrNotFound, http.StatusNotFound},
		{"queue full", processor.ErrQueueFull, http.StatusServiceUnavailable},
		{"stopped", processor.ErrStopped, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusRequestTimeout},
		{"other", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := httpStatusForErr(tc.err)
			if got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	lg := ledger.New(ledger.Options{})
	t.Cleanup(lg.Close)
	return Router(NewHandlers(lg))
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec.Code
}

func TestAccountAndTransactionFlow(t *testing.T) {
	h := testRouter(t)

	var created domain.CreateAccountResponse
	code := doJSON(t, h, http.MethodPost, "/v1/accounts",
		domain.CreateAccountRequest{Name: "alice", InitialBalance: 100}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create account status got %d want 201", code)
	}
	if created.AccountID == uuid.Nil {
		t.Fatalf("no account id returned")
	}

	var dst domain.CreateAccountResponse
	if code := doJSON(t, h, http.MethodPost, "/v1/accounts",
		domain.CreateAccountRequest{Name: "bob"}, &dst); code != http.StatusCreated {
		t.Fatalf("create second account status got %d want 201", code)
	}

	var sub domain.SubmitTransactionResponse
	code = doJSON(t, h, http.MethodPost, "/v1/transactions", domain.SubmitTransactionRequest{
		Kind:                 "transfer",
		SourceAccountID:      created.AccountID,
		DestinationAccountID: &dst.AccountID,
		Amount:               40,
	}, &sub)
	if code != http.StatusAccepted {
		t.Fatalf("submit status got %d want 202", code)
	}

	// Settlement is asynchronous; poll the lookup endpoint.
	deadline := time.Now().Add(5 * time.Second)
	var tx domain.TransactionResponse
	for {
		code = doJSON(t, h, http.MethodGet, "/v1/transactions/"+sub.TransactionID.String(), nil, &tx)
		if code != http.StatusOK {
			t.Fatalf("get transaction status got %d want 200", code)
		}
		if tx.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transaction never settled: %+v", tx)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if tx.Status != domain.StatusCompleted {
		t.Fatalf("status got %s want COMPLETED (reason %q)", tx.Status, tx.FailureReason)
	}

	var acc domain.AccountResponse
	if code := doJSON(t, h, http.MethodGet, "/v1/accounts/"+created.AccountID.String(), nil, &acc); code != http.StatusOK {
		t.Fatalf("get account status got %d want 200", code)
	}
	if acc.Balance != 60 {
		t.Fatalf("balance got %d want 60", acc.Balance)
	}
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	h := testRouter(t)

	var created domain.CreateAccountResponse
	if code := doJSON(t, h, http.MethodPost, "/v1/accounts",
		domain.CreateAccountRequest{Name: "carol", InitialBalance: 10}, &created); code != http.StatusCreated {
		t.Fatalf("create account status got %d", code)
	}

	cases := []struct {
		name string
		req  domain.SubmitTransactionRequest
		want int
	}{
		{"unknown kind", domain.SubmitTransactionRequest{Kind: "void", SourceAccountID: created.AccountID, Amount: 5}, http.StatusBadRequest},
		{"zero amount", domain.SubmitTransactionRequest{Kind: "deposit", SourceAccountID: created.AccountID, Amount: 0}, http.StatusBadRequest},
		{"unknown source", domain.SubmitTransactionRequest{Kind: "deposit", SourceAccountID: uuid.New(), Amount: 5}, http.StatusNotFound},
		{"transfer to self", domain.SubmitTransactionRequest{Kind: "transfer", SourceAccountID: created.AccountID, DestinationAccountID: &created.AccountID, Amount: 5}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code := doJSON(t, h, http.MethodPost, "/v1/transactions", tc.req, nil)
			if code != tc.want {
				t.Fatalf("got %d want %d", code, tc.want)
			}
		})
	}
}

func TestLookupOmitsDestinationForSingleAccountKinds(t *testing.T) {
	h := testRouter(t)

	var created domain.CreateAccountResponse
	if code := doJSON(t, h, http.MethodPost, "/v1/accounts",
		domain.CreateAccountRequest{Name: "dave", InitialBalance: 0}, &created); code != http.StatusCreated {
		t.Fatalf("create account status got %d", code)
	}

	var sub domain.SubmitTransactionResponse
	if code := doJSON(t, h, http.MethodPost, "/v1/transactions", domain.SubmitTransactionRequest{
		Kind:            "deposit",
		SourceAccountID: created.AccountID,
		Amount:          7,
	}, &sub); code != http.StatusAccepted {
		t.Fatalf("submit status got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/"+sub.TransactionID.String(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get transaction status got %d want 200", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("destination_account_id")) {
		t.Fatalf("deposit lookup leaked a destination: %s", rec.Body.String())
	}
}

func TestGetAccountBadPath(t *testing.T) {
	h := testRouter(t)

	if code := doJSON(t, h, http.MethodGet, "/v1/accounts/not-a-uuid", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("invalid id got %d want 400", code)
	}
	if code := doJSON(t, h, http.MethodGet, "/v1/accounts/"+uuid.NewString(), nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown account got %d want 404", code)
	}
}

func TestHealthz(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d want 200", rec.Code)
	}
}
