package keys

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"filippo.io/age"
	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/workspaces/pkg/observability"
)

const (
	defaultCacheSize = 64
	defaultCacheTTL  = 5 * time.Minute
)

// SealedKeyStore is a FallbackKeyStore over a JSON file that maps provider
// names to base64 age ciphertexts:
//
//	{"openai": "YWdlLWVuY3J5cHRpb24ub3Jn...", "anthropic": "..."}
//
// Ciphertexts are decrypted on demand with an X25519 identity and the
// plaintexts are held in an expiring LRU. Reload re-reads the file and
// drops every cached plaintext.
type SealedKeyStore struct {
	path       string
	identities []age.Identity
	logger     *observability.Logger

	mu     sync.RWMutex
	sealed map[Provider]string
	cache  *lru.LRU[Provider, string]

	// generation is bumped by Reload so a decrypt that raced a reload is
	// not cached
	generation uint64

	// afterOpen runs between decrypting and caching; tests only
	afterOpen func()
}

// SealedOption configures a SealedKeyStore
type SealedOption func(*sealedOptions)

type sealedOptions struct {
	cacheSize int
	cacheTTL  time.Duration
	logger    *observability.Logger
}

// WithCache sets the plaintext cache size and TTL
func WithCache(size int, ttl time.Duration) SealedOption {
	return func(o *sealedOptions) {
		if size > 0 {
			o.cacheSize = size
		}
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

// WithSealedLogger sets the logger used by Reload and Watch
func WithSealedLogger(logger *observability.Logger) SealedOption {
	return func(o *sealedOptions) {
		o.logger = logger
	}
}

// NewSealedKeyStore loads the sealed key file at path
func NewSealedKeyStore(path string, identity age.Identity, opts ...SealedOption) (*SealedKeyStore, error) {
	if identity == nil {
		return nil, fmt.Errorf("an age identity is required")
	}
	o := sealedOptions{cacheSize: defaultCacheSize, cacheTTL: defaultCacheTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = observability.NewNopLogger()
	}

	s := &SealedKeyStore{
		path:       filepath.Clean(path),
		identities: []age.Identity{identity},
		logger:     o.logger,
		cache:      lru.NewLRU[Provider, string](o.cacheSize, nil, o.cacheTTL),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadIdentity reads the first X25519 identity from an age identity file
// (AGE-SECRET-KEY-1... lines, # comments allowed)
func LoadIdentity(path string) (age.Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity file: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity file: %w", err)
	}
	return identities[0], nil
}

// Seal encrypts plaintext to the given age recipients (age1... strings)
// and returns the base64 text stored in a sealed key file
func Seal(plaintext string, recipientKeys ...string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("failed to parse recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipients...)
	if err != nil {
		return "", fmt.Errorf("failed to create encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Reload re-reads the sealed key file. On error the previous keys stay.
func (s *SealedKeyStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read sealed key file: %w", err)
	}
	var sealed map[Provider]string
	if err := json.Unmarshal(data, &sealed); err != nil {
		return fmt.Errorf("failed to unmarshal sealed key file: %w", err)
	}

	s.mu.Lock()
	s.sealed = sealed
	s.generation++
	s.cache.Purge()
	s.mu.Unlock()

	s.logger.WithField("providers", len(sealed)).Info("Loaded sealed fallback keys")
	return nil
}

// GetDecryptedKey implements FallbackKeyStore
func (s *SealedKeyStore) GetDecryptedKey(ctx context.Context, provider Provider) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key, ok := s.cache.Get(provider); ok {
		return key, nil
	}

	s.mu.RLock()
	ciphertext, ok := s.sealed[provider]
	generation := s.generation
	s.mu.RUnlock()
	if !ok || ciphertext == "" {
		return "", nil
	}

	key, err := s.open(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s key: %w", provider, err)
	}
	if s.afterOpen != nil {
		s.afterOpen()
	}

	s.mu.RLock()
	if s.generation == generation {
		s.cache.Add(provider, key)
	}
	s.mu.RUnlock()
	return key, nil
}

func (s *SealedKeyStore) open(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), s.identities...)
	if err != nil {
		return "", err
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(plaintext)), nil
}

// Watch reloads the file whenever it changes until ctx is done. The parent
// directory is watched so editors that replace the file are picked up. The
// returned channel is closed once the watcher has stopped.
func (s *SealedKeyStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		defer observability.RecoverPanic(s.logger, "sealed key watcher")

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					s.logger.WithError(err).Warn("Failed to reload sealed key file")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.WithError(err).Warn("Sealed key watcher error")
			}
		}
	}()
	return done, nil
}
