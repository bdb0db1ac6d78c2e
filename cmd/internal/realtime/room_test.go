package realtime

import (
	"testing"

	v1 "courier/contracts/realtime/v1"
)

func TestHubRoomStableHandle(t *testing.T) {
	h := NewHub(testLogger())

	r1 := h.Room("c1")
	r2 := h.Room("c1")
	if r1 != r2 {
		t.Fatal("same conversation returned two rooms")
	}
	if h.Room("c2") == r1 {
		t.Fatal("different conversations share a room")
	}
}

func TestRoomBroadcast(t *testing.T) {
	h := NewHub(testLogger())
	room := h.Room("c1")

	a := NewClient("alice", "s1", 8)
	b := NewClient("bob", "s2", 8)
	room.Join(a)
	room.Join(b)

	h.Broadcast("c1", v1.Envelope{V: v1.Version, Type: v1.TypeMessageRead})

	for _, c := range []*Client{a, b} {
		select {
		case env := <-c.Send:
			if env.Type != v1.TypeMessageRead {
				t.Fatalf("type = %s", env.Type)
			}
		default:
			t.Fatalf("%s missed the broadcast", c.UserID)
		}
	}
}

func TestRoomBroadcastExcept(t *testing.T) {
	h := NewHub(testLogger())
	room := h.Room("c1")

	a := NewClient("alice", "s1", 8)
	b := NewClient("bob", "s2", 8)
	room.Join(a)
	room.Join(b)

	h.BroadcastExcept("c1", "s1", v1.Envelope{V: v1.Version, Type: v1.TypeUserTyping})

	select {
	case <-a.Send:
		t.Fatal("excluded session received the broadcast")
	default:
	}
	select {
	case <-b.Send:
	default:
		t.Fatal("other member missed the broadcast")
	}
}

func TestRoomBroadcastDropsOnBackpressure(t *testing.T) {
	h := NewHub(testLogger())
	room := h.Room("c1")

	slow := NewClient("alice", "s1", 1)
	fast := NewClient("bob", "s2", 8)
	room.Join(slow)
	room.Join(fast)

	// Fill slow's queue, then broadcast twice: the second envelope is dropped
	// for slow but still reaches fast.
	h.Broadcast("c1", v1.Envelope{V: v1.Version, Type: v1.TypeMessageReceived})
	h.Broadcast("c1", v1.Envelope{V: v1.Version, Type: v1.TypeMessageReceived})

	if n := len(slow.Send); n != 1 {
		t.Fatalf("slow queue = %d, want 1", n)
	}
	if n := len(fast.Send); n != 2 {
		t.Fatalf("fast queue = %d, want 2", n)
	}
}

func TestHubLeaveDropsEmptyRoom(t *testing.T) {
	h := NewHub(testLogger())
	room := h.Room("c1")

	a := NewClient("alice", "s1", 8)
	b := NewClient("bob", "s2", 8)
	room.Join(a)
	room.Join(b)

	h.Leave("c1", "s1")
	if room.empty() {
		t.Fatal("room empty with a member left")
	}

	h.Leave("c1", "s2")

	h.mu.RLock()
	_, exists := h.rooms["c1"]
	h.mu.RUnlock()
	if exists {
		t.Fatal("empty room not dropped from the hub")
	}

	// Leaving an unknown room is a no-op.
	h.Leave("missing", "s1")
}

func TestHubBroadcastUnknownRoom(t *testing.T) {
	h := NewHub(testLogger())
	// Must not create the room or panic.
	h.Broadcast("missing", v1.Envelope{V: v1.Version, Type: v1.TypeMessageRead})

	h.mu.RLock()
	n := len(h.rooms)
	h.mu.RUnlock()
	if n != 0 {
		t.Fatalf("broadcast created %d rooms", n)
	}
}
