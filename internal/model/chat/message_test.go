package chat

import (
	"regexp"
	"testing"
)

func TestNewMessageIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^msg_\d+_[0-9a-z]{9}$`)
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		id := NewMessageID()
		if !pattern.MatchString(id) {
			t.Fatalf("unexpected id format: %s", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestRoleForSender(t *testing.T) {
	cases := map[string]string{
		SenderDeputy: RoleUser,
		SenderStaff:  RoleStaff,
		SenderAI:     RoleAssistant,
	}
	for sender, want := range cases {
		if got := RoleForSender(sender); got != want {
			t.Fatalf("RoleForSender(%s) = %s, want %s", sender, got, want)
		}
	}
}

func TestValidSender(t *testing.T) {
	cases := map[string]bool{
		SenderDeputy: true,
		SenderStaff:  true,
		SenderAI:     false,
		"admin":      false,
		"":           false,
	}
	for sender, want := range cases {
		if got := ValidSender(sender); got != want {
			t.Fatalf("ValidSender(%q) = %v, want %v", sender, got, want)
		}
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(SenderDeputy, "hi")
	if msg.Role != RoleUser || msg.Sender != SenderDeputy {
		t.Fatalf("unexpected roles: %+v", msg)
	}
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Fatalf("missing id or timestamp: %+v", msg)
	}
	if msg.IsError {
		t.Fatal("fresh message must not carry the error flag")
	}
}
