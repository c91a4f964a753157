// Package store defines the capabilities the sync core needs from the remote
// file backend: a named-blob store scoped to one logical folder, and a token
// source for authenticating against it. The core never sees folder ids,
// upload protocols, or token internals.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports that no blob with the requested name exists yet.
	ErrNotFound = errors.New("blob not found")

	// ErrNoToken reports that no valid access token is available and an
	// interactive re-auth is required before the store can be reached.
	ErrNoToken = errors.New("no valid access token")
)

// BlobStore is an opaque name→bytes store. Save creates the blob when absent
// and replaces its content otherwise; there is no conditional write.
type BlobStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// TokenProvider yields a currently valid bearer token. Implementations own
// all expiry bookkeeping; callers must treat ErrNoToken as "re-auth needed"
// and never inspect the token.
type TokenProvider interface {
	ValidToken(ctx context.Context) (string, error)
}
