package identity

import (
	"errors"
	"fmt"

	"github.com/ouinet-go/ouinet/internal/errorsx"
	"github.com/ouinet-go/ouinet/internal/kvstore"
	"github.com/ouinet-go/ouinet/internal/model"
)

// Store loads identities from a key-value store. Persisting to durable
// storage is the job of the [model.KeyValueStore] implementation.
type Store struct {
	kvs model.KeyValueStore
}

// NewStore creates a new [Store] backed by the given key-value store.
func NewStore(kvs model.KeyValueStore) *Store {
	return &Store{kvs: kvs}
}

// storeKey returns the key under which we save the identity.
func storeKey(kind Kind) string {
	return "identity-" + string(kind)
}

// Load loads the identity of the given kind. When the store does
// not contain it, the error wraps [errorsx.ErrIdentityMissing].
func (s *Store) Load(kind Kind) (*Identity, error) {
	blob, err := s.kvs.Get(storeKey(kind))
	if errors.Is(err, kvstore.ErrNoSuchKey) {
		return nil, fmt.Errorf("%w: %s", errorsx.ErrIdentityMissing, kind)
	}
	if err != nil {
		return nil, err
	}
	return Materialize(kind, blob)
}

// Provision materializes the given blob and, on success, saves it
// into the store. Use this function on the first run.
func (s *Store) Provision(kind Kind, blob []byte) (*Identity, error) {
	id, err := Materialize(kind, blob)
	if err != nil {
		return nil, err
	}
	if err := s.kvs.Set(storeKey(kind), blob); err != nil {
		return nil, err
	}
	return id, nil
}

// Credentials contains the identities loaded at process start. They
// are immutable and safe to share among goroutines without locking.
type Credentials struct {
	// Naming is the naming identity.
	Naming *Identity

	// Overlay is the overlay identity or nil when the
	// overlay transport is not configured.
	Overlay *Identity
}

// LoadCredentials loads the naming identity and, when withOverlay is
// true, the overlay identity. A missing or corrupt identity is fatal.
func (s *Store) LoadCredentials(withOverlay bool) (*Credentials, error) {
	naming, err := s.Load(Naming)
	if err != nil {
		return nil, err
	}
	creds := &Credentials{Naming: naming}
	if withOverlay {
		overlay, err := s.Load(Overlay)
		if err != nil {
			return nil, err
		}
		creds.Overlay = overlay
	}
	return creds, nil
}
