package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

var ErrValidation = errors.New("validation error")

// Event types appended by the ledger and the processor.
const (
	EventAccountCreated       = "ACCOUNT_CREATED"
	EventTransactionSubmitted = "TRANSACTION_SUBMITTED"
	EventTransactionSettled   = "TRANSACTION_SETTLED"
	EventTransactionFailed    = "TRANSACTION_FAILED"
)

// Event is one link of the append-only chain. PayloadCanonical is the
// RFC 8785 (JCS) form of the payload, so the hash is stable across
// re-encoding.
type Event struct {
	Seq              int64
	EventID          uuid.UUID
	Type             string
	AggregateType    string
	AggregateID      string
	PayloadCanonical string
	PrevHash         string
	Hash             string
	At               time.Time
}

// Journal is an in-memory, hash-chained event log. Each event's hash
// covers the previous hash, so any in-place edit breaks verification
// from that point on.
type Journal struct {
	mu     sync.RWMutex
	events []Event
}

func New() *Journal { return &Journal{} }

func hashEvent(prevHash string, seq int64, eventType, aggregateType, aggregateID, payloadCanonical string) string {
	s := prevHash + "|" +
		strconv.FormatInt(seq, 10) + "|" +
		eventType + "|" +
		aggregateType + "|" +
		aggregateID + "|" +
		payloadCanonical
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Append canonicalizes payload and links a new event onto the chain.
func (j *Journal) Append(eventType, aggregateType, aggregateID string, payload any) error {
	if strings.TrimSpace(eventType) == "" ||
		strings.TrimSpace(aggregateType) == "" ||
		strings.TrimSpace(aggregateID) == "" {
		return ErrValidation
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	seq := int64(len(j.events)) + 1
	prev := ""
	if seq > 1 {
		prev = j.events[seq-2].Hash
	}
	canonStr := string(canon)

	j.events = append(j.events, Event{
		Seq:              seq,
		EventID:          uuid.New(),
		Type:             eventType,
		AggregateType:    aggregateType,
		AggregateID:      aggregateID,
		PayloadCanonical: canonStr,
		PrevHash:         prev,
		Hash:             hashEvent(prev, seq, eventType, aggregateType, aggregateID, canonStr),
		At:               time.Now().UTC(),
	})
	return nil
}

// Len returns the number of events appended so far.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}

// Head returns the hash of the newest event, or "" for an empty chain.
func (j *Journal) Head() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.events) == 0 {
		return ""
	}
	return j.events[len(j.events)-1].Hash
}

// Events returns a snapshot of the chain.
func (j *Journal) Events() []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// Verify walks the chain and recomputes every link. It returns false
// with the seq of the first broken event and a short reason.
func (j *Journal) Verify() (ok bool, breakSeq int64, reason string) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	prev := ""
	for i, e := range j.events {
		if e.Seq != int64(i)+1 {
			return false, e.Seq, "seq not contiguous"
		}
		if e.PrevHash != prev {
			return false, e.Seq, "prev_hash mismatch"
		}
		want := hashEvent(e.PrevHash, e.Seq, e.Type, e.AggregateType, e.AggregateID, e.PayloadCanonical)
		if e.Hash != want {
			return false, e.Seq, "hash mismatch"
		}
		prev = e.Hash
	}
	return true, 0, ""
}

// tamper overwrites the payload of event seq without rehashing. Test
// hook for verification failure paths.
func (j *Journal) tamper(seq int64, payloadCanonical string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.events {
		if j.events[i].Seq == seq {
			j.events[i].PayloadCanonical = payloadCanonical
			return
		}
	}
}
