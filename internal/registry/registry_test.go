package registry

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/protocol"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
	pings  int
	closed bool
}

func (f *fakeTransport) Enqueue(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return true
}

func (f *fakeTransport) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) events(t *testing.T) []protocol.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		var env protocol.Envelope
		if err := json.Unmarshal(fr, &env); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		out = append(out, env)
	}
	return out
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel), logpkg.WithOutput(logpkg.NullOutput{}))
	return New(Options{Logger: logger})
}

func TestSubscribeIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Admit(&fakeTransport{}, "u1")

	if err := r.Subscribe(id, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := r.Subscribe(id, "ops"); err != nil {
		t.Fatalf("subscribe again: %v", err)
	}
	subs := r.Subscribers("ops")
	if len(subs) != 1 || subs[0] != id {
		t.Fatalf("want exactly one subscriber, got %v", subs)
	}
	if got := r.Channels(id); len(got) != 1 || got[0] != "ops" {
		t.Fatalf("want [ops], got %v", got)
	}
}

func TestSubscribeUnknownConn(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Subscribe("nope", "ops"); err != ErrNotRegistered {
		t.Fatalf("want ErrNotRegistered, got %v", err)
	}
}

func TestRemoveClearsEveryChannel(t *testing.T) {
	r := newTestRegistry(t)
	t1, t2 := &fakeTransport{}, &fakeTransport{}
	c1 := r.Admit(t1, "u1")
	c2 := r.Admit(t2, "u2")
	for _, ch := range []string{"ops", "claims", "visits"} {
		if err := r.Subscribe(c1, ch); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	if err := r.Subscribe(c2, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	channels := r.Remove(c1)
	if len(channels) != 3 {
		t.Fatalf("want 3 channels, got %v", channels)
	}
	for _, ch := range []string{"ops", "claims", "visits"} {
		for _, id := range r.Subscribers(ch) {
			if id == c1 {
				t.Fatalf("channel %s still contains removed conn", ch)
			}
		}
	}
	if _, err := r.UserID(c1); err != ErrNotRegistered {
		t.Fatalf("registry still has entry for removed conn")
	}
	// empty channels are garbage-collected, shared ones survive
	snap := r.Snapshot()
	if snap.Channels != 1 || snap.PerChannel["ops"] != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	// c2's subscriptions untouched
	if !r.Subscribed(c2, "ops") {
		t.Fatalf("c2 lost its subscription")
	}
}

func TestRemoveTwiceIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Admit(&fakeTransport{}, "u1")
	if err := r.Subscribe(id, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got := r.Remove(id); len(got) != 1 {
		t.Fatalf("first remove: %v", got)
	}
	if got := r.Remove(id); got != nil {
		t.Fatalf("second remove should be a no-op, got %v", got)
	}
}

func TestPublishExcludesSenderAndReachesOthers(t *testing.T) {
	r := newTestRegistry(t)
	t1, t2, t3 := &fakeTransport{}, &fakeTransport{}, &fakeTransport{}
	c1 := r.Admit(t1, "u1")
	c2 := r.Admit(t2, "u2")
	c3 := r.Admit(t3, "u3")
	for _, c := range []string{c1, c2, c3} {
		if err := r.Subscribe(c, "ops"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	// drain join noise before the publish under test
	t1.frames, t2.frames, t3.frames = nil, nil, nil

	env := protocol.Envelope{Type: protocol.TypeMessage, ChannelID: "ops", SenderID: "u1", Timestamp: 42}
	outcomes := r.Publish("ops", env, c1)
	if len(outcomes) != 2 {
		t.Fatalf("want 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != StatusQueued {
			t.Fatalf("outcome %+v", o)
		}
	}
	if n := len(t1.events(t)); n != 0 {
		t.Fatalf("sender received %d copies of its own publish", n)
	}
	for _, tr := range []*fakeTransport{t2, t3} {
		evs := tr.events(t)
		if len(evs) != 1 || evs[0].Type != protocol.TypeMessage || evs[0].SenderID != "u1" {
			t.Fatalf("recipient events: %+v", evs)
		}
	}
}

func TestPublishDroppedRecipientDoesNotAbortOthers(t *testing.T) {
	r := newTestRegistry(t)
	slow := &fakeTransport{full: true}
	ok := &fakeTransport{}
	c1 := r.Admit(slow, "u1")
	c2 := r.Admit(ok, "u2")
	if err := r.Subscribe(c1, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := r.Subscribe(c2, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ok.mu.Lock()
	ok.frames = nil
	ok.mu.Unlock()

	outcomes := r.Publish("ops", protocol.Envelope{Type: protocol.TypeMessage, ChannelID: "ops"}, "")
	statuses := map[string]DeliveryStatus{}
	for _, o := range outcomes {
		statuses[o.ConnID] = o.Status
	}
	if statuses[c1] != StatusDropped {
		t.Fatalf("want dropped for full transport, got %v", statuses[c1])
	}
	if statuses[c2] != StatusQueued {
		t.Fatalf("want queued for healthy transport, got %v", statuses[c2])
	}
	if len(ok.events(t)) != 1 {
		t.Fatalf("healthy recipient should still get the event")
	}
}

func TestSubscribeEmitsJoinExcludingJoiner(t *testing.T) {
	r := newTestRegistry(t)
	t1, t2 := &fakeTransport{}, &fakeTransport{}
	c1 := r.Admit(t1, "u1")
	if err := r.Subscribe(c1, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	c2 := r.Admit(t2, "u2")
	if err := r.Subscribe(c2, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	evs := t1.events(t)
	if len(evs) != 1 || evs[0].Type != protocol.TypeJoin || evs[0].SenderID != "u2" {
		t.Fatalf("existing member join events: %+v", evs)
	}
	if len(t2.events(t)) != 0 {
		t.Fatalf("joiner should not receive its own join")
	}
	_ = c2
}

func TestRemoveEmitsLeave(t *testing.T) {
	r := newTestRegistry(t)
	t1, t2 := &fakeTransport{}, &fakeTransport{}
	c1 := r.Admit(t1, "u1")
	c2 := r.Admit(t2, "u2")
	if err := r.Subscribe(c1, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := r.Subscribe(c2, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t1.mu.Lock()
	t1.frames = nil
	t1.mu.Unlock()

	r.Remove(c2)
	evs := t1.events(t)
	if len(evs) != 1 || evs[0].Type != protocol.TypeLeave || evs[0].SenderID != "u2" {
		t.Fatalf("leave events: %+v", evs)
	}
}

func TestSubscriptionFilterSkipsMessages(t *testing.T) {
	r := newTestRegistry(t)
	tr := &fakeTransport{}
	c1 := r.Admit(tr, "u1")
	filter := func(env protocol.Envelope) bool { return env.SenderID == "wanted" }
	if err := r.Subscribe(c1, "ops", WithFilter(filter)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	out := r.Publish("ops", protocol.Envelope{Type: protocol.TypeMessage, SenderID: "unwanted"}, "")
	if len(out) != 1 || out[0].Status != StatusFiltered {
		t.Fatalf("want filtered outcome, got %+v", out)
	}
	out = r.Publish("ops", protocol.Envelope{Type: protocol.TypeMessage, SenderID: "wanted"}, "")
	if len(out) != 1 || out[0].Status != StatusQueued {
		t.Fatalf("want queued outcome, got %+v", out)
	}
	// join/leave bypass the filter
	out = r.Publish("ops", protocol.Envelope{Type: protocol.TypeJoin, SenderID: "unwanted"}, "")
	if len(out) != 1 || out[0].Status != StatusQueued {
		t.Fatalf("join should bypass filter, got %+v", out)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached before deadline")
}

func TestSweepEvictsOverdueConnOnly(t *testing.T) {
	r := newTestRegistry(t)
	dead := &fakeTransport{}
	live := &fakeTransport{}
	c1 := r.Admit(dead, "u1")
	c2 := r.Admit(live, "u2")
	if err := r.Subscribe(c1, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := r.Subscribe(c2, "ops"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// advance the clock past the deadline, then ack only c2
	base := r.nowMs()
	r.nowMs = func() int64 { return base + r.deadline.Milliseconds() + 1 }
	r.Touch(c2)

	r.Sweep()
	waitFor(t, func() bool {
		_, err := r.UserID(c1)
		return err == ErrNotRegistered
	})

	dead.mu.Lock()
	closed := dead.closed
	dead.mu.Unlock()
	if !closed {
		t.Fatalf("evicted transport should be closed")
	}
	if !r.Subscribed(c2, "ops") {
		t.Fatalf("healthy conn lost its subscription")
	}
	subs := r.Subscribers("ops")
	if len(subs) != 1 || subs[0] != c2 {
		t.Fatalf("subscribers after eviction: %v", subs)
	}
}

func TestSweepProbesHealthyConns(t *testing.T) {
	r := newTestRegistry(t)
	tr := &fakeTransport{}
	c1 := r.Admit(tr, "u1")
	r.Touch(c1)

	r.Sweep()
	waitFor(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.pings == 1
	})
	if _, err := r.UserID(c1); err != nil {
		t.Fatalf("healthy conn should survive the sweep: %v", err)
	}
}
