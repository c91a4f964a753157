package chat

import (
	"bytes"
	"encoding/json"
	"time"
)

// HistoryFileName is the well-known name of the shared history document.
const HistoryFileName = "chat_history.json"

// DailyStats is the single-slot AI usage counter. The slot belongs to one
// calendar day; a date mismatch at load time means the counter rolled over.
type DailyStats struct {
	Date       string `json:"date"`
	AIRequests int    `json:"ai_requests"`
}

// Document is the persisted aggregate: the full transcript plus the usage
// counter. LastUpdated is advisory only and never used for conflict checks.
type Document struct {
	Messages    []Message  `json:"messages"`
	DailyStats  DailyStats `json:"daily_stats"`
	LastUpdated time.Time  `json:"last_updated"`
}

// DecodeStatus tags the outcome of decoding the stored document. Callers
// branch on the status instead of inspecting errors; a store with no document
// yet and a store with a mangled document both degrade to "start empty".
type DecodeStatus int

const (
	DocOK DecodeStatus = iota
	DocMissing
	DocMalformed
)

func (s DecodeStatus) String() string {
	switch s {
	case DocOK:
		return "ok"
	case DocMissing:
		return "missing"
	default:
		return "malformed"
	}
}

// DecodeDocument parses the stored byte form. It never fails toward the
// caller: absent or unreadable content yields a nil document and a status.
func DecodeDocument(data []byte) (*Document, DecodeStatus) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, DocMissing
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, DocMalformed
	}
	return &doc, DocOK
}

// EncodeDocument renders the document as pretty-printed JSON. The layout is
// deliberately human-readable: the sibling config document in the same folder
// is edited by hand, and the history should stay inspectable next to it.
func EncodeDocument(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// LastMessageID returns the id of the trailing message, or "" when empty.
// It is the cursor the poller compares against.
func (d *Document) LastMessageID() string {
	if d == nil || len(d.Messages) == 0 {
		return ""
	}
	return d.Messages[len(d.Messages)-1].ID
}

// CountForDate returns the stored counter when the slot matches the given
// day and zero otherwise (rollover).
func (d *Document) CountForDate(today string) int {
	if d == nil || d.DailyStats.Date != today {
		return 0
	}
	if d.DailyStats.AIRequests < 0 {
		return 0
	}
	return d.DailyStats.AIRequests
}
