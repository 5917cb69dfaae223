package domain

import "github.com/google/uuid"

type CreateAccountRequest struct {
	Name           string `json:"name"`
	InitialBalance int64  `json:"initial_balance"`
}

type CreateAccountResponse struct {
	AccountID uuid.UUID `json:"account_id"`
}

// DestinationAccountID is a pointer because it is present only for
// transfers; omitempty never fires on a plain uuid.UUID (an array is
// never empty).
type SubmitTransactionRequest struct {
	Kind                 string     `json:"kind"`
	SourceAccountID      uuid.UUID  `json:"source_account_id"`
	DestinationAccountID *uuid.UUID `json:"destination_account_id,omitempty"`
	Amount               int64      `json:"amount"`
}

type SubmitTransactionResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

type AccountResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	CreatedAt string    `json:"created_at"`
}

type TransactionResponse struct {
	TransactionID        uuid.UUID  `json:"transaction_id"`
	Kind                 Kind       `json:"kind"`
	SourceAccountID      uuid.UUID  `json:"source_account_id"`
	DestinationAccountID *uuid.UUID `json:"destination_account_id,omitempty"`
	Amount               int64      `json:"amount"`
	Status               Status     `json:"status"`
	FailureReason        string     `json:"failure_reason,omitempty"`
}
