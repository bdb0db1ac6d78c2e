package chat

import (
	"context"
	"errors"
	"testing"
)

func TestStartConversation(t *testing.T) {
	env := newTestEnv(t)

	conv, created, err := env.svc.StartConversation(context.Background(), env.alice.ID, env.bob.ID)
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if !created {
		t.Fatal("first call should create")
	}
	if !conv.HasParticipant(env.alice.ID) || !conv.HasParticipant(env.bob.ID) {
		t.Fatalf("participants = %v", conv.Participants)
	}

	// Same pair from the other side resolves, never duplicates.
	again, created, err := env.svc.StartConversation(context.Background(), env.bob.ID, env.alice.ID)
	if err != nil {
		t.Fatalf("second StartConversation: %v", err)
	}
	if created {
		t.Fatal("second call created a duplicate")
	}
	if again.ID != conv.ID {
		t.Fatalf("pair resolved to %s and %s", conv.ID, again.ID)
	}
}

func TestStartConversationInvalidPairs(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name           string
		userID, otherID string
	}{
		{"self", env.alice.ID, env.alice.ID},
		{"empty other", env.alice.ID, ""},
		{"empty caller", "", env.bob.ID},
		{"unknown other", env.alice.ID, "01UNKNOWNUSER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.svc.StartConversation(context.Background(), tc.userID, tc.otherID)
			if !errors.Is(err, ErrInvalidParticipants) {
				t.Fatalf("expected ErrInvalidParticipants, got %v", err)
			}
		})
	}
}

func TestConversationAccessControl(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	got, err := env.svc.Conversation(context.Background(), conv.ID, env.alice.ID)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if got.ID != conv.ID {
		t.Fatalf("id = %s, want %s", got.ID, conv.ID)
	}

	_, err = env.svc.Conversation(context.Background(), conv.ID, "intruder")
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	_, err = env.svc.Conversation(context.Background(), "missing", env.alice.ID)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestMessagesAccessControl(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)
	env.send(t, conv.ID, env.alice.ID, "hello")

	msgs, err := env.svc.Messages(context.Background(), conv.ID, env.bob.ID, Page{Limit: 10})
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1", len(msgs))
	}

	_, err = env.svc.Messages(context.Background(), conv.ID, "intruder", Page{Limit: 10})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestConversationsListing(t *testing.T) {
	env := newTestEnv(t)
	conv := env.conversation(t)

	out, err := env.svc.Conversations(context.Background(), env.alice.ID)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(out) != 1 || out[0].ID != conv.ID {
		t.Fatalf("alice conversations = %v", out)
	}

	out, err = env.svc.Conversations(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("Conversations stranger: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("stranger sees %d conversations", len(out))
	}
}
