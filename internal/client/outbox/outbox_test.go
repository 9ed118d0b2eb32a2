package outbox

import (
	"context"
	"errors"
	"fmt"
	"testing"

	pebblestore "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/storage/pebble"
)

func openTestDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func TestEnqueueFIFOOrder(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()
	o, err := Open(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := o.Enqueue(ctx, fmt.Sprintf("act-%d", i), []byte(fmt.Sprintf("payload-%d", i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	acts, err := o.PeekAll()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if len(acts) != 5 {
		t.Fatalf("got %d actions, want 5", len(acts))
	}
	for i, a := range acts {
		if a.ID != fmt.Sprintf("act-%d", i) {
			t.Fatalf("position %d holds %s", i, a.ID)
		}
		if string(a.Payload) != fmt.Sprintf("payload-%d", i) {
			t.Fatalf("payload mismatch at %d: %q", i, a.Payload)
		}
	}
}

func TestEnqueueDuplicateIDNoOp(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()
	o, _ := Open(db)
	ctx := context.Background()
	seq1, err := o.Enqueue(ctx, "act-1", []byte("first"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	seq2, err := o.Enqueue(ctx, "act-1", []byte("second"))
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if seq1 != seq2 {
		t.Fatalf("duplicate enqueue created new seq: %d vs %d", seq1, seq2)
	}
	n, _ := o.PendingCount()
	if n != 1 {
		t.Fatalf("pending=%d, want 1", n)
	}
	acts, _ := o.PeekAll()
	if string(acts[0].Payload) != "first" {
		t.Fatalf("duplicate overwrote payload: %q", acts[0].Payload)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db := openTestDB(t, dir)
	o, _ := Open(db)
	if _, err := o.Enqueue(ctx, "act-1", []byte("persisted")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db = openTestDB(t, dir)
	defer db.Close()
	o2, err := Open(db)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	acts, err := o2.PeekAll()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if len(acts) != 1 || acts[0].ID != "act-1" {
		t.Fatalf("queue lost across reopen: %+v", acts)
	}
	// Sequence counter resumes past the persisted action.
	seq, err := o2.Enqueue(ctx, "act-2", []byte("next"))
	if err != nil {
		t.Fatalf("enqueue after reopen: %v", err)
	}
	if seq <= acts[0].Seq {
		t.Fatalf("seq did not advance: %d <= %d", seq, acts[0].Seq)
	}
}

func TestRemoveAndRetryLifecycle(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()
	o, _ := Open(db)
	ctx := context.Background()
	seq, _ := o.Enqueue(ctx, "act-1", []byte("x"))

	n, err := o.IncrementRetry(ctx, seq, errors.New("boom"))
	if err != nil || n != 1 {
		t.Fatalf("retry: n=%d err=%v", n, err)
	}
	acts, _ := o.PeekAll()
	if acts[0].Retries != 1 || acts[0].LastError != "boom" {
		t.Fatalf("retry not persisted: %+v", acts[0])
	}

	if err := o.Remove(ctx, seq); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n, _ := o.PendingCount(); n != 0 {
		t.Fatalf("pending=%d after remove", n)
	}
	if err := o.Remove(ctx, seq); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("second remove err=%v", err)
	}
	// Removed id can be enqueued again.
	if _, err := o.Enqueue(ctx, "act-1", []byte("again")); err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
}

func TestMarkDead(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()
	o, _ := Open(db)
	ctx := context.Background()
	seq, _ := o.Enqueue(ctx, "act-1", []byte("doomed"))
	_, _ = o.IncrementRetry(ctx, seq, errors.New("unreachable"))

	if err := o.MarkDead(ctx, seq); err != nil {
		t.Fatalf("mark dead: %v", err)
	}
	if n, _ := o.PendingCount(); n != 0 {
		t.Fatalf("dead action still pending")
	}
	dead, err := o.DeadLetters()
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != "act-1" || dead[0].LastError != "unreachable" {
		t.Fatalf("dead=%+v", dead)
	}
	// Dead-lettered id no longer blocks new enqueues.
	if _, err := o.Enqueue(ctx, "act-1", []byte("fresh")); err != nil {
		t.Fatalf("enqueue after dead: %v", err)
	}
}

func TestCorruptRecordSkipped(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()
	o, _ := Open(db)
	ctx := context.Background()
	seq, _ := o.Enqueue(ctx, "act-1", []byte("good"))
	_, _ = o.Enqueue(ctx, "act-2", []byte("also good"))
	if err := db.Set(queueKey(seq), []byte("garbage")); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	acts, err := o.PeekAll()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if len(acts) != 1 || acts[0].ID != "act-2" {
		t.Fatalf("acts=%+v", acts)
	}
}
