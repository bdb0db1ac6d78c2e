package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSendPersistsAndFansOut(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	msg, err := env.svc.Send(context.Background(), SendInput{
		SenderID:       env.alice.ID,
		ConversationID: conv.ID,
		Kind:           KindText,
		Text:           "hello bob",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("empty message id")
	}
	if msg.Status != StatusSent {
		t.Fatalf("status = %s, want sent", msg.Status)
	}

	stored, err := env.store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if stored.Text != "hello bob" || stored.SenderID != env.alice.ID {
		t.Fatalf("stored message mismatch: %+v", stored)
	}

	got, err := env.store.GetConversation(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.LastMessageID != msg.ID {
		t.Fatalf("aggregate not applied: last=%q", got.LastMessageID)
	}
	if got.Unread[env.bob.ID] != 1 {
		t.Fatalf("bob unread = %d, want 1", got.Unread[env.bob.ID])
	}

	received := env.events.snapshotReceived()
	if len(received) != 1 {
		t.Fatalf("received events = %d, want 1", len(received))
	}
	if received[0].MessageID != msg.ID || received[0].SenderName != "Alice" {
		t.Fatalf("fan-out payload mismatch: %+v", received[0])
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	_, err := env.svc.Send(context.Background(), SendInput{
		SenderID:       "intruder",
		ConversationID: conv.ID,
		Kind:           KindText,
		Text:           "let me in",
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if len(env.events.snapshotReceived()) != 0 {
		t.Fatal("rejected send must not fan out")
	}
}

func TestSendRejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	_, err := env.svc.Send(context.Background(), SendInput{
		SenderID:       env.alice.ID,
		ConversationID: conv.ID,
		Kind:           KindText,
	})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}

	// Nothing persisted, nothing broadcast.
	msgs, err := env.store.MessagesByConversation(context.Background(), conv.ID, Page{Limit: 10})
	if err != nil {
		t.Fatalf("MessagesByConversation: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("invalid payload was persisted: %d messages", len(msgs))
	}
	if len(env.events.snapshotReceived()) != 0 {
		t.Fatal("invalid payload fanned out")
	}
}

func TestSendUnknownConversation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Send(context.Background(), SendInput{
		SenderID:       env.alice.ID,
		ConversationID: "missing",
		Kind:           KindText,
		Text:           "hi",
	})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSendMarksDeliveredWhenRecipientOnline(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	env.events.setOnline(env.bob.ID, true)

	msg, err := env.svc.Send(context.Background(), SendInput{
		SenderID:       env.alice.ID,
		ConversationID: conv.ID,
		Kind:           KindText,
		Text:           "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case s := <-env.events.statusCh:
		if s.MessageID != msg.ID || s.Status != StatusDelivered {
			t.Fatalf("unexpected status event: %+v", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for delivered transition")
	}

	stored, err := env.store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if stored.Status != StatusDelivered || stored.DeliveredAt == nil {
		t.Fatalf("stored message not delivered: %+v", stored)
	}
}

func TestSendLeavesSentWhenRecipientOffline(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	msg, err := env.svc.Send(context.Background(), SendInput{
		SenderID:       env.alice.ID,
		ConversationID: conv.ID,
		Kind:           KindText,
		Text:           "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case s := <-env.events.statusCh:
		t.Fatalf("unexpected status event for offline recipient: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}

	stored, err := env.store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if stored.Status != StatusSent {
		t.Fatalf("status = %s, want sent", stored.Status)
	}
}

func TestSendImageMessage(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	msg, err := env.svc.Send(context.Background(), SendInput{
		SenderID:       env.bob.ID,
		ConversationID: conv.ID,
		Kind:           KindImage,
		Image:          &Image{URL: "https://cdn.example/cat.png", Filename: "cat.png", Size: 1024},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	stored, err := env.store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if stored.Image == nil || stored.Image.URL != "https://cdn.example/cat.png" {
		t.Fatalf("image not persisted: %+v", stored.Image)
	}
}
