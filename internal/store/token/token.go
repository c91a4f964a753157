// Package token implements the store.TokenProvider capability. All token
// expiry bookkeeping lives here: the rest of the system only ever asks for a
// currently valid token and treats store.ErrNoToken as "re-auth required".
package token

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
)

const cacheFileName = "gdrive_token.json"

// cachedToken is the on-disk form of an acquired OAuth access token.
type cachedToken struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	Timestamp int64  `json:"timestamp_ms"`
}

// FileProvider serves tokens from a JSON cache file under the local state
// directory. A stale cache is deleted so the next interactive auth starts
// clean.
type FileProvider struct {
	path string
	now  func() time.Time
}

// NewFileProvider builds a provider over stateDir. The clock is injectable
// for tests; pass nil for the real one.
func NewFileProvider(stateDir string, now func() time.Time) *FileProvider {
	if now == nil {
		now = time.Now
	}
	return &FileProvider{
		path: filepath.Join(stateDir, cacheFileName),
		now:  now,
	}
}

var _ store.TokenProvider = (*FileProvider)(nil)

// ValidToken returns the cached token while it is younger than its lifetime.
func (p *FileProvider) ValidToken(_ context.Context) (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", store.ErrNoToken
		}
		return "", err
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		p.discard()
		return "", store.ErrNoToken
	}

	age := p.now().UnixMilli() - cached.Timestamp
	if cached.Token == "" || age < 0 || age/1000 >= cached.ExpiresIn {
		log.Printf("[token] cached token expired, age=%ds", age/1000)
		p.discard()
		return "", store.ErrNoToken
	}
	return cached.Token, nil
}

// Store caches a freshly acquired token with its lifetime in seconds.
func (p *FileProvider) Store(tok string, expiresIn int64) error {
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	data, err := json.MarshalIndent(cachedToken{
		Token:     tok,
		ExpiresIn: expiresIn,
		Timestamp: p.now().UnixMilli(),
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o600)
}

func (p *FileProvider) discard() {
	_ = os.Remove(p.path)
}

// Static always returns the same token. It serves deployments that inject a
// long-lived token through the environment.
type Static string

var _ store.TokenProvider = Static("")

// ValidToken returns the fixed token, or store.ErrNoToken when blank.
func (s Static) ValidToken(_ context.Context) (string, error) {
	if s == "" {
		return "", store.ErrNoToken
	}
	return string(s), nil
}
