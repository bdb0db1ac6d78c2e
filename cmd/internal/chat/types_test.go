package chat

import (
	"errors"
	"strings"
	"testing"
)

func TestStatusAfter(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusRead, true},
		{StatusDelivered, StatusRead, true},
		{StatusDelivered, StatusSent, false},
		{StatusRead, StatusDelivered, false},
		{StatusRead, StatusSent, false},
		{StatusSent, StatusSent, false},
		{StatusRead, StatusRead, false},
		{Status("bogus"), StatusRead, false},
		{StatusSent, Status("bogus"), false},
	}
	for _, tc := range cases {
		if got := tc.to.After(tc.from); got != tc.want {
			t.Fatalf("After(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusSent, StatusDelivered, StatusRead} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	for _, s := range []Status{"", "pending", "SENT"} {
		if s.Valid() {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestMessageValidate(t *testing.T) {
	img := &Image{URL: "https://cdn.example/pic.png"}

	cases := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"text ok", Message{Kind: KindText, Text: "hi"}, true},
		{"image ok", Message{Kind: KindImage, Image: img}, true},
		{"both payloads", Message{Kind: KindText, Text: "hi", Image: img}, false},
		{"neither payload", Message{Kind: KindText}, false},
		{"whitespace text only", Message{Kind: KindText, Text: "   "}, false},
		{"image without url", Message{Kind: KindImage, Image: &Image{}}, false},
		{"kind mismatch text", Message{Kind: KindImage, Text: "hi"}, false},
		{"unknown kind", Message{Kind: "video", Text: "hi"}, false},
		{"text at limit", Message{Kind: KindText, Text: strings.Repeat("a", MaxTextChars)}, true},
		{"text over limit", Message{Kind: KindText, Text: strings.Repeat("a", MaxTextChars+1)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidMessage) {
					t.Fatalf("expected ErrInvalidMessage, got %v", err)
				}
			}
		})
	}
}

func TestMessageValidateCountsRunes(t *testing.T) {
	// Multi-byte runes count as one character each.
	msg := Message{Kind: KindText, Text: strings.Repeat("é", MaxTextChars)}
	if err := msg.Validate(); err != nil {
		t.Fatalf("rune-length text at limit should pass: %v", err)
	}
}

func TestConversationParticipants(t *testing.T) {
	c := Conversation{Participants: [2]string{"alice", "bob"}}

	if !c.HasParticipant("alice") || !c.HasParticipant("bob") {
		t.Fatal("both participants should be members")
	}
	if c.HasParticipant("mallory") {
		t.Fatal("outsider should not be a member")
	}
	if got := c.Other("alice"); got != "bob" {
		t.Fatalf("Other(alice) = %q, want bob", got)
	}
	if got := c.Other("bob"); got != "alice" {
		t.Fatalf("Other(bob) = %q, want alice", got)
	}
}

func TestPairKeyCanonical(t *testing.T) {
	lo1, hi1 := pairKey("alice", "bob")
	lo2, hi2 := pairKey("bob", "alice")
	if lo1 != lo2 || hi1 != hi2 {
		t.Fatalf("pair key not canonical: (%s,%s) vs (%s,%s)", lo1, hi1, lo2, hi2)
	}
	if lo1 != "alice" || hi1 != "bob" {
		t.Fatalf("unexpected order: (%s,%s)", lo1, hi1)
	}
}
