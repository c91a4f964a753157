package chat

import (
	"fmt"
	"math/rand"
	"time"
)

// Sender tags who owns a message in the shared transcript.
const (
	SenderDeputy = "deputy"
	SenderStaff  = "staff"
	SenderAI     = "ai"
)

// Role is the semantic role a message carries when it reaches the model.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleStaff     = "staff"
)

// Message is a single immutable turn in the shared history document.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"isError,omitempty"`
}

// RoleForSender maps the ownership tag to the model-facing role. The deputy
// talks to the assistant as a user; staff messages keep their own role and
// never enter model context as user turns.
func RoleForSender(sender string) string {
	switch sender {
	case SenderDeputy:
		return RoleUser
	case SenderAI:
		return RoleAssistant
	default:
		return RoleStaff
	}
}

// ValidSender reports whether the tag belongs to one of the two human roles
// allowed to author a send. AI messages are appended by the engine itself and
// never arrive through the send path.
func ValidSender(sender string) bool {
	return sender == SenderDeputy || sender == SenderStaff
}

// NewMessageID generates a client-side unique id. The millisecond prefix keeps
// ids roughly sortable for humans skimming the raw document; uniqueness comes
// from the random suffix.
func NewMessageID() string {
	return fmt.Sprintf("msg_%d_%s", time.Now().UnixMilli(), randSuffix(9))
}

func randSuffix(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// NewMessage builds a message authored now by the given sender.
func NewMessage(sender, content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      RoleForSender(sender),
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// DateKey formats a calendar date the way the daily stats slot stores it.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
