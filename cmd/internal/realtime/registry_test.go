package realtime

import (
	"io"
	"log/slog"
	"testing"

	v1 "courier/contracts/realtime/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry(testLogger())
	c := NewClient("alice", "s1", 8)

	if prev := r.Register(c); prev != nil {
		t.Fatalf("first register returned superseded %v", prev)
	}
	if got := r.Lookup("alice"); got != c {
		t.Fatal("lookup did not return the registered client")
	}
	if !r.Online("alice") {
		t.Fatal("alice should be online")
	}
	if r.Online("bob") {
		t.Fatal("bob should be offline")
	}
}

func TestRegistrySupersede(t *testing.T) {
	r := NewRegistry(testLogger())
	first := NewClient("alice", "s1", 8)
	second := NewClient("alice", "s2", 8)

	r.Register(first)
	prev := r.Register(second)
	if prev != first {
		t.Fatalf("supersede should return the first session, got %v", prev)
	}
	if got := r.Lookup("alice"); got != second {
		t.Fatal("slot should hold the newest session")
	}
}

func TestRegistryUnregisterHandleMatched(t *testing.T) {
	r := NewRegistry(testLogger())
	first := NewClient("alice", "s1", 8)
	second := NewClient("alice", "s2", 8)

	r.Register(first)
	r.Register(second)

	// Stale teardown from the superseded session must not evict s2.
	if r.Unregister("alice", "s1") {
		t.Fatal("stale session claimed the slot")
	}
	if !r.Online("alice") {
		t.Fatal("alice evicted by a stale unregister")
	}

	if !r.Unregister("alice", "s2") {
		t.Fatal("owning session failed to unregister")
	}
	if r.Online("alice") {
		t.Fatal("alice still online after unregister")
	}

	// Idempotent: a repeat unregister is a no-op.
	if r.Unregister("alice", "s2") {
		t.Fatal("repeat unregister claimed the slot")
	}
}

func TestRegistryRegisterRejectsInvalid(t *testing.T) {
	r := NewRegistry(testLogger())
	if prev := r.Register(nil); prev != nil {
		t.Fatal("nil client registered")
	}
	if prev := r.Register(NewClient("", "s1", 8)); prev != nil {
		t.Fatal("empty user registered")
	}
	if len(r.OnlineUsers()) != 0 {
		t.Fatal("invalid registers populated the registry")
	}
}

func TestRegistryBroadcast(t *testing.T) {
	r := NewRegistry(testLogger())
	alice := NewClient("alice", "s1", 8)
	bob := NewClient("bob", "s2", 8)
	r.Register(alice)
	r.Register(bob)

	env := v1.Envelope{V: v1.Version, Type: v1.TypeUserStatus}
	r.Broadcast(env)

	for _, c := range []*Client{alice, bob} {
		select {
		case got := <-c.Send:
			if got.Type != v1.TypeUserStatus {
				t.Fatalf("type = %s", got.Type)
			}
		default:
			t.Fatalf("%s did not receive the broadcast", c.UserID)
		}
	}
}

func TestClientTrySend(t *testing.T) {
	c := NewClient("alice", "s1", 1)

	if !c.TrySend(v1.Envelope{V: v1.Version, Type: v1.TypeUserStatus}) {
		t.Fatal("send into empty queue failed")
	}
	// Queue full: drop instead of blocking.
	if c.TrySend(v1.Envelope{V: v1.Version, Type: v1.TypeUserStatus}) {
		t.Fatal("send into full queue succeeded")
	}

	<-c.Send
	c.Close()
	c.Close() // idempotent

	if c.TrySend(v1.Envelope{V: v1.Version, Type: v1.TypeUserStatus}) {
		t.Fatal("send after close succeeded")
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}
