package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/journal"
	"bank-ledger/internal/lockmanager"
)

// Store is the repository surface the processor needs. *store.Store
// satisfies it.
type Store interface {
	Account(id uuid.UUID) (domain.Account, error)
	SaveAccount(a domain.Account) error
	Transaction(id uuid.UUID) (domain.Transaction, error)
	SaveTransaction(tx domain.Transaction) error
}

var (
	ErrStopped   = errors.New("processor stopped")
	ErrQueueFull = errors.New("submission queue full")
)

// Failure reasons written onto terminal Failed records.
const (
	ReasonInsufficientFunds = "insufficient funds"
	ReasonLockTimeout       = "lock acquisition timed out"
	ReasonAccountMissing    = "account missing at apply time"
	ReasonSelfTransfer      = "transfer source and destination are the same account"
	ReasonInternal          = "internal error during apply"
)

type settledPayload struct {
	TransactionID string `json:"transaction_id"`
	Kind          string `json:"kind"`
	Source        string `json:"source"`
	Destination   string `json:"destination,omitempty"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

// Processor drains the submission queue and applies transactions
// against the store under the lock manager's account locks. Every
// transaction it dequeues reaches exactly one terminal status; a bad
// transaction fails alone and never takes a worker down with it.
type Processor struct {
	store   Store
	locks   *lockmanager.Manager
	journal *journal.Journal

	queue   chan domain.Transaction
	quit    chan struct{}
	wg      sync.WaitGroup
	workers int

	mu      sync.RWMutex
	stopped bool

	healthy atomic.Bool
}

// New builds a Processor with the given worker count and queue depth.
// Workers are not started until Start.
func New(st Store, locks *lockmanager.Manager, jr *journal.Journal, workers, queueDepth int) *Processor {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1024
	}
	p := &Processor{
		store:   st,
		locks:   locks,
		journal: jr,
		queue:   make(chan domain.Transaction, queueDepth),
		quit:    make(chan struct{}),
		workers: workers,
	}
	p.healthy.Store(true)
	return p
}

// Start launches the worker goroutines.
func (p *Processor) Start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.run()
	}
	slog.Info("transaction processor started", "workers", p.workers, "queue_depth", cap(p.queue))
}

// Enqueue hands a pending transaction to the workers. It never blocks:
// a full queue is reported to the caller instead of stalling them.
func (p *Processor) Enqueue(tx domain.Transaction) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- tx:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes intake, lets the workers drain everything already
// accepted, and waits for them to exit. No accepted transaction is
// left Pending by an orderly shutdown.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.quit)
	p.wg.Wait()
	slog.Info("transaction processor stopped")
}

// Healthy reports whether processing is trustworthy. It flips to false
// only on an internal fault the processor cannot repair, such as a
// terminal record that could not be persisted.
func (p *Processor) Healthy() bool { return p.healthy.Load() }

func (p *Processor) run() {
	defer p.wg.Done()
	for {
		select {
		case tx := <-p.queue:
			p.process(tx)
		case <-p.quit:
			for {
				select {
				case tx := <-p.queue:
					p.process(tx)
				default:
					return
				}
			}
		}
	}
}

// process applies one transaction end to end. Lock release is
// guaranteed even if the apply path panics.
func (p *Processor) process(tx domain.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("transaction apply panicked", "transaction_id", tx.ID.String(), "panic", r)
			p.finish(tx, domain.StatusFailed, ReasonInternal)
		}
	}()

	release, err := p.locks.Acquire(context.Background(), tx.AccountIDs()...)
	if err != nil {
		if errors.Is(err, lockmanager.ErrTimeout) {
			p.finish(tx, domain.StatusFailed, ReasonLockTimeout)
			return
		}
		slog.Error("lock acquisition failed", "transaction_id", tx.ID.String(), "error", err)
		p.finish(tx, domain.StatusFailed, ReasonInternal)
		return
	}
	defer release()

	// Balances may have moved since submission; re-read under lock.
	src, err := p.store.Account(tx.SourceID)
	if err != nil {
		slog.Error("source account vanished after submission",
			"transaction_id", tx.ID.String(), "account_id", tx.SourceID.String())
		p.finish(tx, domain.StatusFailed, ReasonAccountMissing)
		return
	}

	switch tx.Kind {
	case domain.KindDeposit:
		src.Balance += tx.Amount
		p.saveAccounts(tx, src)

	case domain.KindWithdraw:
		if src.Balance < tx.Amount {
			p.finish(tx, domain.StatusFailed, ReasonInsufficientFunds)
			return
		}
		src.Balance -= tx.Amount
		p.saveAccounts(tx, src)

	case domain.KindTransfer:
		// Submission rejects self-transfers, but Enqueue is a public
		// contract: re-check here or a single record would read two
		// copies of one account and credit money out of thin air.
		if tx.DestinationID == tx.SourceID {
			p.finish(tx, domain.StatusFailed, ReasonSelfTransfer)
			return
		}
		dst, err := p.store.Account(tx.DestinationID)
		if err != nil {
			slog.Error("destination account vanished after submission",
				"transaction_id", tx.ID.String(), "account_id", tx.DestinationID.String())
			p.finish(tx, domain.StatusFailed, ReasonAccountMissing)
			return
		}
		if src.Balance < tx.Amount {
			p.finish(tx, domain.StatusFailed, ReasonInsufficientFunds)
			return
		}
		// Both writes land before the locks drop, so the pair is
		// atomic to anyone who must acquire the same accounts.
		src.Balance -= tx.Amount
		dst.Balance += tx.Amount
		p.saveAccounts(tx, src, dst)

	default:
		p.finish(tx, domain.StatusFailed, ReasonInternal)
	}
}

func (p *Processor) saveAccounts(tx domain.Transaction, accounts ...domain.Account) {
	for _, a := range accounts {
		if err := p.store.SaveAccount(a); err != nil {
			slog.Error("persist account failed", "account_id", a.ID.String(), "error", err)
			p.healthy.Store(false)
			p.finish(tx, domain.StatusFailed, ReasonInternal)
			return
		}
	}
	p.finish(tx, domain.StatusCompleted, "")
}

// finish writes the terminal record and appends the journal event.
// Terminal states are final: a record already settled is left alone.
func (p *Processor) finish(tx domain.Transaction, status domain.Status, reason string) {
	if cur, err := p.store.Transaction(tx.ID); err == nil && cur.Status.Terminal() {
		return
	}

	tx.Status = status
	tx.FailureReason = reason
	tx.SettledAt = time.Now().UTC()
	if err := p.store.SaveTransaction(tx); err != nil {
		slog.Error("persist transaction failed", "transaction_id", tx.ID.String(), "error", err)
		p.healthy.Store(false)
		return
	}

	eventType := journal.EventTransactionSettled
	if status == domain.StatusFailed {
		eventType = journal.EventTransactionFailed
	}
	payload := settledPayload{
		TransactionID: tx.ID.String(),
		Kind:          string(tx.Kind),
		Source:        tx.SourceID.String(),
		Amount:        tx.Amount,
		Status:        string(status),
		Reason:        reason,
	}
	if tx.Kind == domain.KindTransfer {
		payload.Destination = tx.DestinationID.String()
	}
	if err := p.journal.Append(eventType, "TRANSACTION", tx.ID.String(), payload); err != nil {
		slog.Warn("journal append failed", "transaction_id", tx.ID.String(), "error", err)
	}
}
