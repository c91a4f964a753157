package chat

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeDocumentMissing(t *testing.T) {
	if doc, status := DecodeDocument(nil); status != DocMissing || doc != nil {
		t.Fatalf("nil input: got status %v doc %v", status, doc)
	}
	if _, status := DecodeDocument([]byte("  \n")); status != DocMissing {
		t.Fatalf("blank input: got status %v", status)
	}
}

func TestDecodeDocumentMalformed(t *testing.T) {
	if doc, status := DecodeDocument([]byte("{not json")); status != DocMalformed || doc != nil {
		t.Fatalf("got status %v doc %v", status, doc)
	}
	if _, status := DecodeDocument([]byte(`"just a string"`)); status != DocMalformed {
		t.Fatalf("non-object input: got status %v", status)
	}
}

func TestDecodeDocumentOK(t *testing.T) {
	raw := `{
	  "messages": [
	    {"id": "msg_1_a", "role": "user", "sender": "deputy", "content": "hi", "timestamp": "2025-01-15T10:00:00Z"}
	  ],
	  "daily_stats": {"date": "2025-01-15", "ai_requests": 3},
	  "last_updated": "2025-01-15T10:00:01Z"
	}`

	doc, status := DecodeDocument([]byte(raw))
	if status != DocOK {
		t.Fatalf("expected DocOK, got %v", status)
	}
	if len(doc.Messages) != 1 || doc.Messages[0].ID != "msg_1_a" {
		t.Fatalf("unexpected messages: %+v", doc.Messages)
	}
	if doc.DailyStats.AIRequests != 3 {
		t.Fatalf("unexpected stats: %+v", doc.DailyStats)
	}
	if doc.LastMessageID() != "msg_1_a" {
		t.Fatalf("unexpected cursor: %s", doc.LastMessageID())
	}
}

func TestEncodeDocumentPrettyPrinted(t *testing.T) {
	doc := &Document{
		Messages:    []Message{NewMessage(SenderStaff, "hello")},
		DailyStats:  DailyStats{Date: "2025-01-15", AIRequests: 1},
		LastUpdated: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	data, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("EncodeDocument err: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "\n  \"messages\"") {
		t.Fatalf("expected indented output, got: %s", text)
	}
	if !strings.Contains(text, `"daily_stats"`) || !strings.Contains(text, `"ai_requests"`) {
		t.Fatalf("missing stats fields: %s", text)
	}

	// Round-trips through the codec.
	decoded, status := DecodeDocument(data)
	if status != DocOK || len(decoded.Messages) != 1 {
		t.Fatalf("round trip failed: status %v", status)
	}
}

func TestCountForDateRollover(t *testing.T) {
	doc := &Document{DailyStats: DailyStats{Date: "2025-01-14", AIRequests: 7}}

	if got := doc.CountForDate("2025-01-15"); got != 0 {
		t.Fatalf("rollover: expected 0, got %d", got)
	}
	if got := doc.CountForDate("2025-01-14"); got != 7 {
		t.Fatalf("same day: expected 7, got %d", got)
	}

	var nilDoc *Document
	if got := nilDoc.CountForDate("2025-01-15"); got != 0 {
		t.Fatalf("nil doc: expected 0, got %d", got)
	}
}

func TestLastMessageIDEmpty(t *testing.T) {
	doc := &Document{}
	if doc.LastMessageID() != "" {
		t.Fatal("expected empty cursor for empty document")
	}
}
