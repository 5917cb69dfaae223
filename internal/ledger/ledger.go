// Package ledger is the entry point for collaborators: it creates
// accounts, validates and enqueues transactions, and owns the
// processor lifecycle. Callers construct a Ledger explicitly; there is
// no process-wide instance.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/journal"
	"bank-ledger/internal/lockmanager"
	"bank-ledger/internal/processor"
	"bank-ledger/internal/store"
)

// Options tunes the ledger. The zero value means one worker, a
// 1024-deep queue, and lock acquisition that blocks indefinitely.
type Options struct {
	Workers     int
	QueueDepth  int
	LockTimeout time.Duration
}

type accountCreatedPayload struct {
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	InitialBalance int64  `json:"initial_balance"`
}

type submittedPayload struct {
	TransactionID string `json:"transaction_id"`
	Kind          string `json:"kind"`
	Source        string `json:"source"`
	Destination   string `json:"destination,omitempty"`
	Amount        int64  `json:"amount"`
}

type rejectedPayload struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

type Ledger struct {
	store   *store.Store
	locks   *lockmanager.Manager
	journal *journal.Journal
	proc    *processor.Processor
}

// New assembles the store, lock manager, journal, and processor, and
// starts the workers.
func New(opts Options) *Ledger {
	st := store.New()
	locks := lockmanager.New(opts.LockTimeout)
	jr := journal.New()
	proc := processor.New(st, locks, jr, opts.Workers, opts.QueueDepth)

	l := &Ledger{
		store:   st,
		locks:   locks,
		journal: jr,
		proc:    proc,
	}
	proc.Start()
	return l
}

// CreateAccount persists a new account and returns its id.
func (l *Ledger) CreateAccount(ctx context.Context, name string, initialBalance int64) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: empty account name", store.ErrValidation)
	}
	if initialBalance < 0 {
		return uuid.Nil, fmt.Errorf("%w: negative initial balance", store.ErrValidation)
	}

	a := domain.Account{
		ID:        uuid.New(),
		Name:      name,
		Balance:   initialBalance,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.store.SaveAccount(a); err != nil {
		return uuid.Nil, err
	}

	if err := l.journal.Append(journal.EventAccountCreated, "ACCOUNT", a.ID.String(), accountCreatedPayload{
		AccountID:      a.ID.String(),
		Name:           a.Name,
		InitialBalance: a.Balance,
	}); err != nil {
		return uuid.Nil, err
	}
	return a.ID, nil
}

// Submit validates the request shape, persists a Pending record, and
// enqueues it. It returns the transaction id immediately; the outcome
// is observed via Transaction.
func (l *Ledger) Submit(ctx context.Context, kind domain.Kind, sourceID uuid.UUID, amount int64, destinationID uuid.UUID) (uuid.UUID, error) {
	if amount <= 0 {
		return uuid.Nil, fmt.Errorf("%w: amount must be positive", store.ErrValidation)
	}
	switch kind {
	case domain.KindDeposit, domain.KindWithdraw:
		if destinationID != uuid.Nil {
			return uuid.Nil, fmt.Errorf("%w: destination not allowed for %s", store.ErrValidation, kind)
		}
	case domain.KindTransfer:
		if destinationID == uuid.Nil {
			return uuid.Nil, fmt.Errorf("%w: transfer requires a destination", store.ErrValidation)
		}
		if destinationID == sourceID {
			return uuid.Nil, fmt.Errorf("%w: transfer to self", store.ErrValidation)
		}
	default:
		return uuid.Nil, fmt.Errorf("%w: unknown transaction kind %q", store.ErrValidation, kind)
	}

	// Unknown accounts never reach the queue.
	if _, err := l.store.Account(sourceID); err != nil {
		return uuid.Nil, fmt.Errorf("source account: %w", err)
	}
	if kind == domain.KindTransfer {
		if _, err := l.store.Account(destinationID); err != nil {
			return uuid.Nil, fmt.Errorf("destination account: %w", err)
		}
	}

	tx := domain.Transaction{
		ID:            uuid.New(),
		Kind:          kind,
		SourceID:      sourceID,
		DestinationID: destinationID,
		Amount:        amount,
		Status:        domain.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.store.SaveTransaction(tx); err != nil {
		return uuid.Nil, err
	}

	payload := submittedPayload{
		TransactionID: tx.ID.String(),
		Kind:          string(tx.Kind),
		Source:        tx.SourceID.String(),
		Amount:        tx.Amount,
	}
	if kind == domain.KindTransfer {
		payload.Destination = tx.DestinationID.String()
	}
	if err := l.journal.Append(journal.EventTransactionSubmitted, "TRANSACTION", tx.ID.String(), payload); err != nil {
		return uuid.Nil, err
	}

	if err := l.proc.Enqueue(tx); err != nil {
		// The record never reached the queue, so no worker will ever
		// settle it; leaving it Pending would strand it forever.
		tx.Status = domain.StatusFailed
		tx.FailureReason = err.Error()
		tx.SettledAt = time.Now().UTC()
		if saveErr := l.store.SaveTransaction(tx); saveErr != nil {
			return uuid.Nil, saveErr
		}
		if jrErr := l.journal.Append(journal.EventTransactionFailed, "TRANSACTION", tx.ID.String(), rejectedPayload{
			TransactionID: tx.ID.String(),
			Status:        string(tx.Status),
			Reason:        tx.FailureReason,
		}); jrErr != nil {
			return uuid.Nil, jrErr
		}
		return uuid.Nil, err
	}
	return tx.ID, nil
}

// Account returns a copy of the account record.
func (l *Ledger) Account(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return l.store.Account(id)
}

// Transaction returns a copy of the transaction record, including its
// current status.
func (l *Ledger) Transaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	return l.store.Transaction(id)
}

// Journal exposes the event chain for verification and export.
func (l *Ledger) Journal() *journal.Journal { return l.journal }

// Healthy reports the processor's health signal.
func (l *Ledger) Healthy() bool { return l.proc.Healthy() }

// Close stops intake, drains accepted transactions, and stops the
// workers.
func (l *Ledger) Close() {
	l.proc.Stop()
}
