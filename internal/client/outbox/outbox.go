package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/storage/pebble"
)

// ErrUnknownAction is returned for operations on a sequence that is no
// longer pending.
var ErrUnknownAction = errors.New("outbox: unknown action")

// Action is one queued mutation awaiting reconciliation.
type Action struct {
	// Seq orders the queue; assigned at enqueue time.
	Seq uint64
	// ID is the client-generated action id carried to the server for
	// replay deduplication.
	ID         string
	Retries    int
	EnqueuedMs int64
	LastError  string
	// Payload is the serialized envelope to replay.
	Payload []byte
}

// Outbox is a durable FIFO queue of actions performed while offline. Records
// survive process restarts; corrupt records are skipped on read.
type Outbox struct {
	db *pebblestore.DB

	mu      sync.Mutex
	nextSeq uint64
	nowMs   func() int64
}

// Open binds an outbox to a store, recovering the sequence counter.
func Open(db *pebblestore.DB) (*Outbox, error) {
	o := &Outbox{db: db, nowMs: func() int64 { return time.Now().UnixMilli() }}
	b, err := db.Get(metaKey())
	switch {
	case err == nil && len(b) == 8:
		o.nextSeq = binary.BigEndian.Uint64(b)
	case errors.Is(err, pebble.ErrNotFound):
		o.nextSeq = 1
	case err != nil:
		return nil, fmt.Errorf("outbox: read meta: %w", err)
	default:
		o.nextSeq = 1
	}
	return o, nil
}

// Enqueue appends an action. A duplicate action id is a no-op so callers can
// retry enqueue without double-queuing.
func (o *Outbox) Enqueue(ctx context.Context, actionID string, payload []byte) (uint64, error) {
	if actionID == "" {
		return 0, errors.New("outbox: empty action id")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if b, err := o.db.Get(idKey(actionID)); err == nil && len(b) == 8 {
		return binary.BigEndian.Uint64(b), nil
	} else if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return 0, err
	}

	seq := o.nextSeq
	rec := encodeRecord(recordHeader{ActionID: actionID, EnqueuedMs: o.nowMs()}, payload)

	var seqb [8]byte
	binary.BigEndian.PutUint64(seqb[:], seq)
	var nextb [8]byte
	binary.BigEndian.PutUint64(nextb[:], seq+1)

	b := o.db.NewBatch()
	defer b.Close()
	if err := b.Set(queueKey(seq), rec, nil); err != nil {
		return 0, err
	}
	if err := b.Set(idKey(actionID), seqb[:], nil); err != nil {
		return 0, err
	}
	if err := b.Set(metaKey(), nextb[:], nil); err != nil {
		return 0, err
	}
	if err := o.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	o.nextSeq = seq + 1
	return seq, nil
}

// PeekAll returns every pending action in FIFO order without consuming.
func (o *Outbox) PeekAll() ([]Action, error) {
	return o.scan(prefixQueue, seqFromQueueKey)
}

// DeadLetters returns actions parked after exhausting their retries.
func (o *Outbox) DeadLetters() ([]Action, error) {
	return o.scan(prefixDead, seqFromDeadKey)
}

func (o *Outbox) scan(prefix string, seqOf func([]byte) (uint64, bool)) ([]Action, error) {
	it, err := o.db.NewPrefixIter([]byte(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []Action
	for it.First(); it.Valid(); it.Next() {
		seq, ok := seqOf(it.Key())
		if !ok {
			continue
		}
		h, payload, ok := decodeRecord(it.Value())
		if !ok {
			continue
		}
		out = append(out, Action{
			Seq:        seq,
			ID:         h.ActionID,
			Retries:    h.Retries,
			EnqueuedMs: h.EnqueuedMs,
			LastError:  h.LastError,
			Payload:    payload,
		})
	}
	return out, it.Error()
}

// PendingCount reports the number of queued actions.
func (o *Outbox) PendingCount() (int, error) {
	acts, err := o.PeekAll()
	if err != nil {
		return 0, err
	}
	return len(acts), nil
}

// Remove acknowledges a reconciled action and drops it from the queue.
func (o *Outbox) Remove(ctx context.Context, seq uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, _, err := o.load(seq)
	if err != nil {
		return err
	}
	b := o.db.NewBatch()
	defer b.Close()
	if err := b.Delete(queueKey(seq), nil); err != nil {
		return err
	}
	if err := b.Delete(idKey(h.ActionID), nil); err != nil {
		return err
	}
	return o.db.CommitBatch(ctx, b)
}

// IncrementRetry records a failed attempt and returns the new retry count.
func (o *Outbox) IncrementRetry(ctx context.Context, seq uint64, cause error) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, payload, err := o.load(seq)
	if err != nil {
		return 0, err
	}
	h.Retries++
	if cause != nil {
		h.LastError = cause.Error()
	}
	if err := o.db.Set(queueKey(seq), encodeRecord(h, payload)); err != nil {
		return 0, err
	}
	return h.Retries, nil
}

// MarkDead parks an action in the dead letter set and frees its id for new
// enqueues.
func (o *Outbox) MarkDead(ctx context.Context, seq uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, payload, err := o.load(seq)
	if err != nil {
		return err
	}
	b := o.db.NewBatch()
	defer b.Close()
	if err := b.Set(deadKey(seq), encodeRecord(h, payload), nil); err != nil {
		return err
	}
	if err := b.Delete(queueKey(seq), nil); err != nil {
		return err
	}
	if err := b.Delete(idKey(h.ActionID), nil); err != nil {
		return err
	}
	return o.db.CommitBatch(ctx, b)
}

func (o *Outbox) load(seq uint64) (recordHeader, []byte, error) {
	v, err := o.db.Get(queueKey(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return recordHeader{}, nil, ErrUnknownAction
	}
	if err != nil {
		return recordHeader{}, nil, err
	}
	h, payload, ok := decodeRecord(v)
	if !ok {
		return recordHeader{}, nil, fmt.Errorf("outbox: corrupt record at seq %d", seq)
	}
	return h, payload, nil
}
