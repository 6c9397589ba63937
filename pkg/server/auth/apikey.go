package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrInvalidKey is returned for keys that are not configured.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrKeyDisabled is returned for configured keys that are disabled.
	ErrKeyDisabled = errors.New("API key disabled")
)

type keyEntry struct {
	digest    [sha256.Size]byte
	principal Principal
	disabled  bool
}

// KeyStore validates API keys. Keys are held as SHA-256 digests and
// compared in constant time.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[[sha256.Size]byte]*keyEntry
}

// NewKeyStore builds a store from configured keys. Empty and duplicate keys
// are rejected.
func NewKeyStore(keys []KeyConfig) (*KeyStore, error) {
	s := &KeyStore{keys: make(map[[sha256.Size]byte]*keyEntry, len(keys))}
	for i, k := range keys {
		if err := s.add(k); err != nil {
			return nil, fmt.Errorf("keys[%d]: %w", i, err)
		}
	}
	return s, nil
}

func (s *KeyStore) add(k KeyConfig) error {
	if k.Key == "" {
		return errors.New("key is empty")
	}
	if k.UserID == "" {
		return errors.New("user_id is required")
	}
	digest := sha256.Sum256([]byte(k.Key))
	if _, exists := s.keys[digest]; exists {
		return fmt.Errorf("duplicate key for user %q", k.UserID)
	}
	s.keys[digest] = &keyEntry{
		digest: digest,
		principal: Principal{
			UserID:      k.UserID,
			Roles:       slices.Clone(k.Roles),
			Permissions: slices.Clone(k.Permissions),
		},
		disabled: k.Disabled,
	}
	return nil
}

// Validate returns the principal for key.
func (s *KeyStore) Validate(key string) (*Principal, error) {
	digest := sha256.Sum256([]byte(key))

	s.mu.RLock()
	entry, ok := s.keys[digest]
	s.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare(entry.digest[:], digest[:]) != 1 {
		return nil, ErrInvalidKey
	}
	if entry.disabled {
		return nil, ErrKeyDisabled
	}
	p := entry.principal
	return &p, nil
}

// Replace swaps the configured keys, for example after secrets are
// refreshed. On error the previous keys stay in place.
func (s *KeyStore) Replace(keys []KeyConfig) error {
	next, err := NewKeyStore(keys)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.keys = next.keys
	s.mu.Unlock()
	return nil
}

// Len returns the number of configured keys.
func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
