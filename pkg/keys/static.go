package keys

import (
	"context"
	"sync"
)

// StaticKeyStore is a FallbackKeyStore over a fixed map, used in
// development and tests
type StaticKeyStore struct {
	mu   sync.RWMutex
	keys map[Provider]string
}

// NewStaticKeyStore copies keys into a new store
func NewStaticKeyStore(keys map[Provider]string) *StaticKeyStore {
	s := &StaticKeyStore{keys: make(map[Provider]string, len(keys))}
	for provider, key := range keys {
		s.keys[provider] = key
	}
	return s
}

// Set replaces the key for provider. An empty key removes it.
func (s *StaticKeyStore) Set(provider Provider, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		delete(s.keys, provider)
		return
	}
	s.keys[provider] = key
}

// GetDecryptedKey implements FallbackKeyStore
func (s *StaticKeyStore) GetDecryptedKey(ctx context.Context, provider Provider) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[provider], nil
}
