// Package sync is the remote-store synchronization core. It treats one JSON
// document on the blob store as the shared conversation database: initial
// load, append-on-send, periodic poll-and-merge, and the daily usage counter
// all run through non-atomic read-modify-write cycles against that document.
//
// There is deliberately no conditional write. Two instances that interleave a
// read-modify-write can lose the earlier write's append on the remote side
// (last write wins); each instance keeps its own message locally and
// reconverges on a later poll. The backing store offers no compare-and-swap,
// so this failure mode is part of the contract.
package sync

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/model/chat"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/service/ai"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
)

// ErrorReplyText is the synthesized assistant apology shown when the gateway
// fails outright.
const ErrorReplyText = "⚠️ Ошибка подключения к ИИ. Попробуйте позже."

// Listener receives presentation-facing events. Implementations must be fast
// or hand off; they are called from the send path and the poll loop.
type Listener interface {
	MessageAppended(msg chat.Message)
	LimitReached(count, limit int)
	SendFailed(err error)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) MessageAppended(chat.Message) {}
func (NopListener) LimitReached(int, int)        {}
func (NopListener) SendFailed(error)             {}

// Config carries the engine knobs.
type Config struct {
	DailyLimit   int
	PollInterval time.Duration
	Listener     Listener
	Now          func() time.Time
}

// Session owns the in-memory mirror of the shared document: message list,
// poll cursor, daily counter, and the single-flight send guard. All mutable
// state lives on the instance; construct one per process and tear it down by
// cancelling the context passed to Run.
type Session struct {
	blobs   store.BlobStore
	gateway ai.CompletionProvider
	cfg     Config

	mu         sync.Mutex
	messages   []chat.Message
	lastSeenID string
	dailyCount int

	sending atomic.Bool
}

// NewSession builds the engine. The gateway may be nil when AI is disabled;
// deputy sends then persist without a completion step.
func NewSession(blobs store.BlobStore, gateway ai.CompletionProvider, cfg Config) *Session {
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	return &Session{blobs: blobs, gateway: gateway, cfg: cfg}
}

// Initialize performs the initial load: history first, then the daily
// counter. Failures degrade to an empty session and are never fatal; the
// user can still compose messages.
func (s *Session) Initialize(ctx context.Context) {
	s.LoadHistory(ctx)
	s.LoadDailyStats(ctx)
}

// LoadHistory reads the shared document and adopts its message list. An
// absent, malformed, or unreachable document yields an empty list and a nil
// cursor.
func (s *Session) LoadHistory(ctx context.Context) []chat.Message {
	doc, status := s.loadDocument(ctx)
	if status != chat.DocOK {
		log.Printf("[sync] load history: document %s, starting empty", status)
		return nil
	}

	s.mu.Lock()
	s.messages = append(s.messages[:0], doc.Messages...)
	s.lastSeenID = doc.LastMessageID()
	s.mu.Unlock()

	return s.Messages()
}

// LoadDailyStats reads the usage counter, applying the calendar rollover:
// a stored date other than today means the counter restarts at zero.
func (s *Session) LoadDailyStats(ctx context.Context) int {
	doc, status := s.loadDocument(ctx)
	if status != chat.DocOK {
		log.Printf("[sync] load stats: document %s, counter starts at 0", status)
		return 0
	}

	count := doc.CountForDate(s.today())

	s.mu.Lock()
	s.dailyCount = count
	s.mu.Unlock()

	return count
}

// Messages returns a snapshot of the local message list.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Usage returns the current daily counter and its ceiling.
func (s *Session) Usage() (count, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyCount, s.cfg.DailyLimit
}

// Send appends a message authored by the given role and persists the
// document. Blank text is ignored. At most one send runs at a time per
// session: a send issued while another is in flight is dropped, not queued.
// The locally appended message is never retracted, even when persistence or
// the completion step fails.
func (s *Session) Send(ctx context.Context, sender, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !chat.ValidSender(sender) {
		log.Printf("[sync] send rejected for sender %q", sender)
		return
	}

	if !s.sending.CompareAndSwap(false, true) {
		log.Printf("[sync] send already in flight, dropping")
		return
	}
	defer s.sending.Store(false)

	msg := chat.NewMessage(sender, text)
	s.appendLocal(msg)

	if err := s.persistMessages(ctx); err != nil {
		log.Printf("[sync] persist send: %v", err)
		s.cfg.Listener.SendFailed(err)
	}

	if sender == chat.SenderDeputy && s.gateway != nil {
		s.requestCompletion(ctx, text)
	}
}

// requestCompletion drives one AI turn for the deputy's message: gate on the
// daily ceiling, call the gateway, and append either the reply or a
// synthesized error message. Only a successful reply increments the counter.
func (s *Session) requestCompletion(ctx context.Context, userText string) {
	count, limit := s.Usage()
	if count >= limit {
		s.cfg.Listener.LimitReached(count, limit)
		return
	}

	reply, err := s.gateway.Complete(ctx, userText)
	if errors.Is(err, ai.ErrRateLimited) {
		log.Printf("[sync] completion rate limited")
		s.cfg.Listener.LimitReached(count, limit)
		return
	}
	if err != nil {
		log.Printf("[sync] completion failed: %v", err)
		errMsg := chat.NewMessage(chat.SenderAI, ErrorReplyText)
		errMsg.IsError = true
		s.appendLocal(errMsg)
		if perr := s.persistMessages(ctx); perr != nil {
			log.Printf("[sync] persist error reply: %v", perr)
		}
		s.cfg.Listener.SendFailed(err)
		return
	}

	aiMsg := chat.NewMessage(chat.SenderAI, reply)
	s.appendLocal(aiMsg)

	s.mu.Lock()
	s.dailyCount++
	s.mu.Unlock()

	// Two logically related writes: the counter slot first, then the full
	// document. Both are plain read-modify-write cycles.
	if err := s.persistStats(ctx); err != nil {
		log.Printf("[sync] persist stats: %v", err)
	}
	if err := s.persistMessages(ctx); err != nil {
		log.Printf("[sync] persist ai reply: %v", err)
		s.cfg.Listener.SendFailed(err)
	}
}

// Poll runs one reconciliation pass: read the remote document and append, in
// remote order, every message whose id the local list does not know yet. The
// merge is strictly additive and idempotent; local messages are never removed
// or reordered. Failures are logged and skipped.
func (s *Session) Poll(ctx context.Context) {
	data, err := s.blobs.Load(ctx, chat.HistoryFileName)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[sync] poll: %v", err)
		}
		return
	}

	doc, status := chat.DecodeDocument(data)
	if status != chat.DocOK || len(doc.Messages) == 0 {
		return
	}

	remoteLast := doc.LastMessageID()

	s.mu.Lock()
	if remoteLast == s.lastSeenID {
		s.mu.Unlock()
		return
	}

	known := make(map[string]struct{}, len(s.messages))
	for _, m := range s.messages {
		known[m.ID] = struct{}{}
	}

	var fresh []chat.Message
	for _, m := range doc.Messages {
		if _, ok := known[m.ID]; ok {
			continue
		}
		s.messages = append(s.messages, m)
		fresh = append(fresh, m)
	}
	s.lastSeenID = remoteLast
	s.mu.Unlock()

	for _, m := range fresh {
		s.cfg.Listener.MessageAppended(m)
	}
}

// Run polls on the configured interval until the context is cancelled. There
// is no backoff: a failed pass is skipped and the next tick retries.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	log.Printf("[sync] polling every %s", s.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sync] poll loop stopped")
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

func (s *Session) appendLocal(msg chat.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.cfg.Listener.MessageAppended(msg)
}

// persistMessages writes the full document from local state. The local list
// is treated as the authoritative superset at this point; a concurrent remote
// append between our read and this write is silently overwritten (last write
// wins) and resurfaces on that writer's next poll.
func (s *Session) persistMessages(ctx context.Context) error {
	s.mu.Lock()
	msgs := make([]chat.Message, len(s.messages))
	copy(msgs, s.messages)
	count := s.dailyCount
	s.mu.Unlock()

	doc := &chat.Document{
		Messages: msgs,
		DailyStats: chat.DailyStats{
			Date:       s.today(),
			AIRequests: count,
		},
		LastUpdated: s.cfg.Now().UTC(),
	}

	data, err := chat.EncodeDocument(doc)
	if err != nil {
		return err
	}
	return s.blobs.Save(ctx, chat.HistoryFileName, data)
}

// persistStats rewrites only the counter slot, keeping whatever message list
// the remote currently holds.
func (s *Session) persistStats(ctx context.Context) error {
	doc, status := s.loadDocument(ctx)
	if status != chat.DocOK {
		doc = &chat.Document{Messages: []chat.Message{}}
	}

	s.mu.Lock()
	count := s.dailyCount
	s.mu.Unlock()

	doc.DailyStats = chat.DailyStats{Date: s.today(), AIRequests: count}

	data, err := chat.EncodeDocument(doc)
	if err != nil {
		return err
	}
	return s.blobs.Save(ctx, chat.HistoryFileName, data)
}

func (s *Session) loadDocument(ctx context.Context) (*chat.Document, chat.DecodeStatus) {
	data, err := s.blobs.Load(ctx, chat.HistoryFileName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, chat.DocMissing
		}
		log.Printf("[sync] load document: %v", err)
		return nil, chat.DocMissing
	}
	return chat.DecodeDocument(data)
}

// today uses the local day boundary, not a normalized timezone.
func (s *Session) today() string {
	return chat.DateKey(s.cfg.Now())
}
