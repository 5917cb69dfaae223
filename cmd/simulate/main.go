// Command simulate drives the ledger with concurrent depositors,
// withdrawers, and transferors, then checks that money was conserved
// and that the event journal's hash chain still verifies. Non-zero
// exit on any violation.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"bank-ledger/internal/domain"
	"bank-ledger/internal/ledger"
)

func main() {
	var (
		accounts = flag.Int("accounts", 8, "number of accounts")
		ops      = flag.Int("ops", 1000, "operations per submitter")
		clients  = flag.Int("clients", 16, "concurrent submitters")
		workers  = flag.Int("workers", 2, "processor workers")
		seed     = flag.Int64("seed", 0, "rng seed (0 = time-based)")
		initial  = flag.Int64("initial", 100_000, "initial balance per account")
	)
	flag.Parse()

	if *accounts < 2 || *ops < 1 || *clients < 1 {
		fmt.Fprintln(os.Stderr, "need at least 2 accounts, 1 op, 1 client")
		os.Exit(2)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	lg := ledger.New(ledger.Options{
		Workers:    *workers,
		QueueDepth: *clients * *ops,
	})

	ctx := context.Background()
	ids := make([]uuid.UUID, *accounts)
	for i := range ids {
		id, err := lg.CreateAccount(ctx, fmt.Sprintf("acct-%03d", i), *initial)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create account:", err)
			os.Exit(2)
		}
		ids[i] = id
	}
	before := int64(*accounts) * *initial

	var (
		mu        sync.Mutex
		submitted []uuid.UUID
	)

	var wg sync.WaitGroup
	wg.Add(*clients)
	for c := 0; c < *clients; c++ {
		c := c
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(*seed + int64(c)))
			mine := make([]uuid.UUID, 0, *ops)
			for i := 0; i < *ops; i++ {
				amount := int64(rng.Intn(50) + 1)
				src := ids[rng.Intn(len(ids))]

				var (
					txID uuid.UUID
					err  error
				)
				switch rng.Intn(3) {
				case 0:
					txID, err = lg.Submit(ctx, domain.KindDeposit, src, amount, uuid.Nil)
				case 1:
					// May settle Failed on insufficient funds; that is
					// part of the workload.
					txID, err = lg.Submit(ctx, domain.KindWithdraw, src, amount, uuid.Nil)
				default:
					dst := ids[rng.Intn(len(ids))]
					if dst == src {
						continue
					}
					txID, err = lg.Submit(ctx, domain.KindTransfer, src, amount, dst)
				}
				if err == nil {
					mine = append(mine, txID)
				}
			}
			mu.Lock()
			submitted = append(submitted, mine...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Close drains the queue before the workers exit.
	lg.Close()

	var after int64
	for _, id := range ids {
		a, err := lg.Account(ctx, id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read account:", err)
			os.Exit(1)
		}
		if a.Balance < 0 {
			fmt.Fprintf(os.Stderr, "FAIL: negative balance %d on %s\n", a.Balance, a.ID)
			os.Exit(1)
		}
		after += a.Balance
	}

	// Deposits add, completed withdrawals subtract, transfers are
	// neutral in aggregate.
	expected := before
	var completed, failed int
	for _, id := range submitted {
		tx, err := lg.Transaction(ctx, id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read transaction:", err)
			os.Exit(1)
		}
		if !tx.Status.Terminal() {
			fmt.Fprintf(os.Stderr, "FAIL: transaction %s still %s after drain\n", tx.ID, tx.Status)
			os.Exit(1)
		}
		if tx.Status == domain.StatusFailed {
			failed++
			continue
		}
		completed++
		switch tx.Kind {
		case domain.KindDeposit:
			expected += tx.Amount
		case domain.KindWithdraw:
			expected -= tx.Amount
		}
	}

	if after != expected {
		fmt.Fprintf(os.Stderr, "FAIL: conservation broken: before=%d expected=%d after=%d\n", before, expected, after)
		os.Exit(1)
	}

	ok, breakSeq, reason := lg.Journal().Verify()
	if !ok {
		fmt.Fprintf(os.Stderr, "FAIL: journal chain broken at seq=%d: %s\n", breakSeq, reason)
		os.Exit(1)
	}

	fmt.Printf("OK: %d accounts, %d submitters x %d ops, seed=%d\n", *accounts, *clients, *ops, *seed)
	fmt.Printf("    completed=%d failed=%d total before=%d after=%d\n", completed, failed, before, after)
	fmt.Printf("    journal events=%d head=%s\n", lg.Journal().Len(), lg.Journal().Head())
}
