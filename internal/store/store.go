package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"bank-ledger/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// Store is the in-memory repository for accounts and transactions.
// Accounts and transactions live in independent critical sections so
// account mutation never blocks on transaction-record traffic.
//
// Every operation is individually atomic and hands out value copies;
// callers never hold a live record. Composing several operations into
// a larger atomic unit is the caller's job (the processor does that
// under the lock manager's account locks).
type Store struct {
	accMu    sync.RWMutex
	accounts map[uuid.UUID]domain.Account

	txMu         sync.RWMutex
	transactions map[uuid.UUID]domain.Transaction
}

func New() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]domain.Account),
		transactions: make(map[uuid.UUID]domain.Transaction),
	}
}

// SaveAccount inserts or fully replaces the record keyed by account.ID.
// Overwrite is not an error.
func (s *Store) SaveAccount(a domain.Account) error {
	if a.ID == uuid.Nil {
		return ErrValidation
	}
	s.accMu.Lock()
	s.accounts[a.ID] = a
	s.accMu.Unlock()
	return nil
}

// Account returns a copy of the current record.
func (s *Store) Account(id uuid.UUID) (domain.Account, error) {
	s.accMu.RLock()
	a, ok := s.accounts[id]
	s.accMu.RUnlock()
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return a, nil
}

// SaveTransaction upserts a transaction record.
func (s *Store) SaveTransaction(tx domain.Transaction) error {
	if tx.ID == uuid.Nil {
		return ErrValidation
	}
	s.txMu.Lock()
	s.transactions[tx.ID] = tx
	s.txMu.Unlock()
	return nil
}

// Transaction returns a copy of the current record.
func (s *Store) Transaction(id uuid.UUID) (domain.Transaction, error) {
	s.txMu.RLock()
	tx, ok := s.transactions[id]
	s.txMu.RUnlock()
	if !ok {
		return domain.Transaction{}, ErrNotFound
	}
	return tx, nil
}

// Accounts returns a snapshot of all account records. Order is
// unspecified.
func (s *Store) Accounts() []domain.Account {
	s.accMu.RLock()
	defer s.accMu.RUnlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out
}
