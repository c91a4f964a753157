// Package auth gates the two fixed roles behind the passwords stored in the
// hand-edited remote config document, and keeps issued sessions in a local
// state file so logins survive restarts.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/model/chat"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/model/remoteconfig"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
)

var (
	ErrInvalidRole      = errors.New("unknown role")
	ErrWrongPassword    = errors.New("wrong password")
	ErrConfigIncomplete = errors.New("passwords not filled in on remote config")
)

const sessionsFileName = "sessions.json"

// Session is an issued login.
type Session struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	LoginTime time.Time `json:"login_time"`
	Expiry    time.Time `json:"expiry"`
}

// Config carries the defaults used when generating the remote skeleton and
// when the stored document omits a session duration.
type Config struct {
	StateDir     string
	DefaultModel string
	DailyLimit   int
	SessionDays  int
	Now          func() time.Time
}

// Service validates passwords and tracks issued sessions.
type Service struct {
	blobs store.BlobStore
	cfg   Config

	mu       sync.Mutex
	sessions map[string]Session
}

// New builds the service and restores previously issued sessions from the
// state directory. Expired or unreadable records are dropped.
func New(blobs store.BlobStore, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Service{
		blobs:    blobs,
		cfg:      cfg,
		sessions: make(map[string]Session),
	}
	s.restore()
	return s
}

// Login checks the password for the role against the remote config document.
// On a store with no config yet, the blank skeleton is written first and the
// login is rejected until the operator fills it in by hand.
func (s *Service) Login(ctx context.Context, role, password string) (Session, error) {
	if role != chat.SenderDeputy && role != chat.SenderStaff {
		return Session{}, ErrInvalidRole
	}

	doc, err := s.loadConfig(ctx)
	if err != nil {
		return Session{}, err
	}
	if !doc.Complete() {
		return Session{}, ErrConfigIncomplete
	}

	expected := doc.Passwords.Staff
	if role == chat.SenderDeputy {
		expected = doc.Passwords.Deputy
	}
	if password == "" || password != expected {
		return Session{}, ErrWrongPassword
	}

	days := doc.SessionDurationDays
	if days <= 0 {
		days = s.cfg.SessionDays
	}

	now := s.cfg.Now()
	session := Session{
		Token:     uuid.NewString(),
		Role:      role,
		LoginTime: now,
		Expiry:    now.Add(time.Duration(days) * 24 * time.Hour),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()
	s.persist()

	log.Printf("[auth] login role=%s expires=%s", role, session.Expiry.Format(time.RFC3339))
	return session, nil
}

// Validate resolves a session token to its role. Expired sessions are removed
// on sight.
func (s *Service) Validate(token string) (string, bool) {
	s.mu.Lock()
	session, ok := s.sessions[token]
	if !ok {
		s.mu.Unlock()
		return "", false
	}
	if s.cfg.Now().After(session.Expiry) {
		delete(s.sessions, token)
		s.mu.Unlock()
		s.persist()
		return "", false
	}
	s.mu.Unlock()
	return session.Role, true
}

// Logout revokes a session token.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	s.persist()
}

// loadConfig reads config.json, writing the default skeleton when the store
// has none yet.
func (s *Service) loadConfig(ctx context.Context) (*remoteconfig.Document, error) {
	data, err := s.blobs.Load(ctx, remoteconfig.FileName)
	if errors.Is(err, store.ErrNotFound) {
		skeleton := remoteconfig.Default(s.cfg.DefaultModel, s.cfg.DailyLimit, s.cfg.SessionDays)
		payload, encErr := remoteconfig.Encode(skeleton)
		if encErr != nil {
			return nil, encErr
		}
		if saveErr := s.blobs.Save(ctx, remoteconfig.FileName, payload); saveErr != nil {
			return nil, fmt.Errorf("write default config: %w", saveErr)
		}
		log.Printf("[auth] created %s skeleton, fill in passwords on the remote store", remoteconfig.FileName)
		return skeleton, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load remote config: %w", err)
	}

	doc := remoteconfig.Decode(data)
	if doc == nil {
		return nil, fmt.Errorf("remote config unreadable")
	}
	return doc, nil
}

func (s *Service) sessionsPath() string {
	return filepath.Join(s.cfg.StateDir, sessionsFileName)
}

func (s *Service) restore() {
	data, err := os.ReadFile(s.sessionsPath())
	if err != nil {
		return
	}

	var stored []Session
	if err := json.Unmarshal(data, &stored); err != nil {
		_ = os.Remove(s.sessionsPath())
		return
	}

	now := s.cfg.Now()
	s.mu.Lock()
	for _, session := range stored {
		if now.Before(session.Expiry) {
			s.sessions[session.Token] = session
		}
	}
	s.mu.Unlock()
}

func (s *Service) persist() {
	s.mu.Lock()
	stored := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		stored = append(stored, session)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(s.cfg.StateDir, 0o755); err != nil {
		log.Printf("[auth] persist sessions: %v", err)
		return
	}
	if err := os.WriteFile(s.sessionsPath(), data, 0o600); err != nil {
		log.Printf("[auth] persist sessions: %v", err)
	}
}
