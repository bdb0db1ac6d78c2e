package realtime

import (
	"sort"
	"testing"
)

func TestTypingStartStop(t *testing.T) {
	tr := NewTypingTracker()

	if !tr.Start("c1", "alice") {
		t.Fatal("first start should change state")
	}
	// Duplicate starts are no-ops.
	if tr.Start("c1", "alice") {
		t.Fatal("duplicate start changed state")
	}

	got := tr.Typing("c1")
	if len(got) != 1 || got[0] != "alice" {
		t.Fatalf("typing = %v", got)
	}

	if !tr.Stop("c1", "alice") {
		t.Fatal("stop should change state")
	}
	// Stop without a start is a no-op.
	if tr.Stop("c1", "alice") {
		t.Fatal("second stop changed state")
	}
	if got := tr.Typing("c1"); got != nil {
		t.Fatalf("typing after stop = %v", got)
	}
}

func TestTypingIndependentConversations(t *testing.T) {
	tr := NewTypingTracker()

	tr.Start("c1", "alice")
	tr.Start("c2", "alice")
	tr.Start("c1", "bob")

	got := tr.Typing("c1")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("c1 typing = %v", got)
	}

	tr.Stop("c1", "alice")
	if got := tr.Typing("c2"); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("c2 typing affected by c1 stop: %v", got)
	}
}

func TestTypingClearUser(t *testing.T) {
	tr := NewTypingTracker()

	tr.Start("c1", "alice")
	tr.Start("c2", "alice")
	tr.Start("c1", "bob")

	cleared := tr.ClearUser("alice")
	sort.Strings(cleared)
	if len(cleared) != 2 || cleared[0] != "c1" || cleared[1] != "c2" {
		t.Fatalf("cleared = %v", cleared)
	}

	if got := tr.Typing("c2"); got != nil {
		t.Fatalf("c2 typing after clear = %v", got)
	}
	if got := tr.Typing("c1"); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("bob evicted by alice's clear: %v", got)
	}

	// Clearing a user with no typing state reports nothing.
	if cleared := tr.ClearUser("alice"); cleared != nil {
		t.Fatalf("second clear = %v", cleared)
	}
}

func TestTypingRejectsEmptyKeys(t *testing.T) {
	tr := NewTypingTracker()

	if tr.Start("", "alice") || tr.Start("c1", "") {
		t.Fatal("empty keys changed state")
	}
	if tr.Stop("", "alice") || tr.Stop("c1", "") {
		t.Fatal("empty keys changed state on stop")
	}
	if cleared := tr.ClearUser(""); cleared != nil {
		t.Fatalf("empty user cleared %v", cleared)
	}
}
