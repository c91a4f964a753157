// Package remoteconfig models the hand-edited config.json document that lives
// next to the chat history in the remote folder. Passwords and the completion
// gateway key are intentionally blank in the generated skeleton: the operator
// fills them in directly on the remote store.
package remoteconfig

import (
	"encoding/json"
	"time"
)

// FileName is the well-known name of the document inside the shared folder.
const FileName = "config.json"

// Passwords gates the two fixed roles.
type Passwords struct {
	Deputy string `json:"deputy"`
	Staff  string `json:"staff"`
}

// Document mirrors the stored config.json layout.
type Document struct {
	Passwords           Passwords `json:"passwords"`
	OpenRouterKey       string    `json:"openrouter_key"`
	AIModel             string    `json:"ai_model"`
	DailyLimit          int       `json:"daily_limit"`
	SessionDurationDays int       `json:"session_duration_days"`
	CreatedAt           time.Time `json:"created_at"`
}

// Default builds the blank skeleton written on first run.
func Default(model string, dailyLimit, sessionDays int) *Document {
	return &Document{
		AIModel:             model,
		DailyLimit:          dailyLimit,
		SessionDurationDays: sessionDays,
		CreatedAt:           time.Now().UTC(),
	}
}

// Complete reports whether both role passwords have been filled in.
func (d *Document) Complete() bool {
	return d != nil && d.Passwords.Deputy != "" && d.Passwords.Staff != ""
}

// Decode parses stored bytes; a nil document means absent or unreadable.
func Decode(data []byte) *Document {
	if len(data) == 0 {
		return nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return &doc
}

// Encode renders the document pretty-printed so it stays easy to edit by hand.
func Encode(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
