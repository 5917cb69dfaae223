package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a transaction.
type Kind string

const (
	KindDeposit  Kind = "DEPOSIT"
	KindWithdraw Kind = "WITHDRAW"
	KindTransfer Kind = "TRANSFER"
)

// ParseKind maps a wire string onto a Kind, case-insensitively.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindDeposit:
		return KindDeposit, true
	case KindWithdraw:
		return KindWithdraw, true
	case KindTransfer:
		return KindTransfer, true
	}
	return "", false
}

// Status is the lifecycle state of a transaction. It advances from
// Pending to exactly one terminal state and never reverts.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Account is a named balance-holding entity. Balance is in minor units
// (cents) and is mutated only by the transaction processor while
// holding the account's lock.
type Account struct {
	ID        uuid.UUID
	Name      string
	Balance   int64
	CreatedAt time.Time
}

// Transaction is a requested balance mutation. DestinationID is
// uuid.Nil for anything but a transfer. FailureReason is set only on
// Failed records so a submitter can tell outcomes apart by lookup.
type Transaction struct {
	ID            uuid.UUID
	Kind          Kind
	SourceID      uuid.UUID
	DestinationID uuid.UUID
	Amount        int64
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	SettledAt     time.Time
}

// AccountIDs returns the set of accounts the transaction touches, in
// submission order. The lock manager imposes its own canonical order.
func (t Transaction) AccountIDs() []uuid.UUID {
	if t.Kind == KindTransfer {
		return []uuid.UUID{t.SourceID, t.DestinationID}
	}
	return []uuid.UUID{t.SourceID}
}
