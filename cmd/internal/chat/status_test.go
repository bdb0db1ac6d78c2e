package chat

import (
	"context"
	"errors"
	"testing"
)

func (env *testEnv) send(t *testing.T, convID, senderID, text string) *Message {
	t.Helper()
	msg, err := env.svc.Send(context.Background(), SendInput{
		SenderID:       senderID,
		ConversationID: convID,
		Kind:           KindText,
		Text:           text,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	return msg
}

func TestMarkDelivered(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	msg := env.send(t, conv.ID, env.alice.ID, "hello")

	updated, err := env.svc.MarkDelivered(context.Background(), msg.ID, env.bob.ID)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if updated.Status != StatusDelivered || updated.DeliveredAt == nil {
		t.Fatalf("not delivered: %+v", updated)
	}

	select {
	case s := <-env.events.statusCh:
		if s.MessageID != msg.ID || s.Status != StatusDelivered {
			t.Fatalf("unexpected status event: %+v", s)
		}
	default:
		t.Fatal("no status event emitted")
	}
}

func TestMarkDeliveredIdempotent(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	msg := env.send(t, conv.ID, env.alice.ID, "hello")

	if _, err := env.svc.MarkDelivered(context.Background(), msg.ID, env.bob.ID); err != nil {
		t.Fatalf("first MarkDelivered: %v", err)
	}
	<-env.events.statusCh

	// A repeat ack is a silent no-op: no error, no second event.
	updated, err := env.svc.MarkDelivered(context.Background(), msg.ID, env.bob.ID)
	if err != nil {
		t.Fatalf("repeat MarkDelivered: %v", err)
	}
	if updated.Status != StatusDelivered {
		t.Fatalf("status = %s, want delivered", updated.Status)
	}
	select {
	case s := <-env.events.statusCh:
		t.Fatalf("repeat ack emitted event: %+v", s)
	default:
	}
}

func TestMarkDeliveredAfterReadRejected(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	msg := env.send(t, conv.ID, env.alice.ID, "hello")

	if _, err := env.svc.MarkRead(context.Background(), msg.ID, env.bob.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	// A delivered ack for an already-read message is a backward move, not a
	// repeat, and must surface the rejection.
	_, err := env.svc.MarkDelivered(context.Background(), msg.ID, env.bob.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("read -> delivered: expected ErrInvalidTransition, got %v", err)
	}

	stored, err := env.store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if stored.Status != StatusRead {
		t.Fatalf("backward ack mutated status to %s", stored.Status)
	}
	select {
	case s := <-env.events.statusCh:
		t.Fatalf("backward ack emitted event: %+v", s)
	default:
	}
}

func TestMarkDeliveredRejectsSender(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	msg := env.send(t, conv.ID, env.alice.ID, "hello")

	_, err := env.svc.MarkDelivered(context.Background(), msg.ID, env.alice.ID)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("sender self-ack: expected ErrNotAuthorized, got %v", err)
	}

	stored, err := env.store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if stored.Status != StatusSent {
		t.Fatalf("self-ack mutated status to %s", stored.Status)
	}
}

func TestMarkDeliveredRejectsOutsider(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	msg := env.send(t, conv.ID, env.alice.ID, "hello")

	_, err := env.svc.MarkDelivered(context.Background(), msg.ID, "intruder")
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("outsider ack: expected ErrNotAuthorized, got %v", err)
	}
}

func TestMarkReadBackfillsDelivered(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	msg := env.send(t, conv.ID, env.alice.ID, "hello")

	updated, err := env.svc.MarkRead(context.Background(), msg.ID, env.bob.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if updated.Status != StatusRead {
		t.Fatalf("status = %s, want read", updated.Status)
	}
	if updated.DeliveredAt == nil || updated.ReadAt == nil {
		t.Fatalf("read skip must backfill delivered: %+v", updated)
	}
	if !updated.DeliveredAt.Equal(*updated.ReadAt) {
		t.Fatalf("backfilled deliveredAt %v != readAt %v", updated.DeliveredAt, updated.ReadAt)
	}

	reads := env.events.snapshotReads()
	if len(reads) != 1 || reads[0].MessageID != msg.ID || reads[0].ReadBy != env.bob.ID {
		t.Fatalf("read events = %+v", reads)
	}
}

func TestMarkReadAfterDeliveredKeepsTimestamp(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	msg := env.send(t, conv.ID, env.alice.ID, "hello")

	delivered, err := env.svc.MarkDelivered(context.Background(), msg.ID, env.bob.ID)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}

	updated, err := env.svc.MarkRead(context.Background(), msg.ID, env.bob.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if updated.DeliveredAt == nil || !updated.DeliveredAt.Equal(*delivered.DeliveredAt) {
		t.Fatalf("deliveredAt rewritten: %v vs %v", updated.DeliveredAt, delivered.DeliveredAt)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	msg := env.send(t, conv.ID, env.alice.ID, "hello")

	if _, err := env.svc.MarkRead(context.Background(), msg.ID, env.bob.ID); err != nil {
		t.Fatalf("first MarkRead: %v", err)
	}
	if _, err := env.svc.MarkRead(context.Background(), msg.ID, env.bob.ID); err != nil {
		t.Fatalf("repeat MarkRead: %v", err)
	}
	if got := len(env.events.snapshotReads()); got != 1 {
		t.Fatalf("read events = %d, want 1", got)
	}
}

func TestMarkReadUnknownMessage(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.MarkRead(context.Background(), "missing", env.bob.ID)
	if !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	m1 := env.send(t, conv.ID, env.alice.ID, "one")
	m2 := env.send(t, conv.ID, env.alice.ID, "two")
	env.send(t, conv.ID, env.bob.ID, "mine")

	affected, err := env.svc.MarkAllRead(context.Background(), conv.ID, env.bob.ID)
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	want := map[string]bool{m1.ID: true, m2.ID: true}
	if len(affected) != 2 {
		t.Fatalf("affected = %v, want 2 ids", affected)
	}
	for _, id := range affected {
		if !want[id] {
			t.Fatalf("unexpected affected id %s", id)
		}
	}

	got, err := env.store.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.Unread[env.bob.ID] != 0 {
		t.Fatalf("bob unread = %d, want 0", got.Unread[env.bob.ID])
	}

	reads := env.events.snapshotReads()
	if len(reads) != 2 {
		t.Fatalf("read events = %d, want 2", len(reads))
	}
	for _, r := range reads {
		if r.ConversationID != conv.ID || r.ReadBy != env.bob.ID {
			t.Fatalf("read event mismatch: %+v", r)
		}
	}
}

func TestMarkAllReadRejectsOutsider(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	env.send(t, conv.ID, env.alice.ID, "hello")

	_, err := env.svc.MarkAllRead(context.Background(), conv.ID, "intruder")
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestMarkAllReadEmptyConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	affected, err := env.svc.MarkAllRead(context.Background(), conv.ID, env.bob.ID)
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if len(affected) != 0 {
		t.Fatalf("affected = %v, want none", affected)
	}
	if got := len(env.events.snapshotReads()); got != 0 {
		t.Fatalf("read events = %d, want 0", got)
	}
}
