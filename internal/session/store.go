package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store is one storage area for the session blob. Load returns (nil, nil)
// when no blob is present.
type Store interface {
	Load() ([]byte, error)
	Save(blob []byte) error
	Clear() error
}

// FileStore persists the blob to a single file, surviving restarts. It backs
// the "remember me" tier.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (s *FileStore) Save(blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, blob, 0o600)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemStore holds the blob in process memory only; it is gone on restart,
// matching the tab-scoped tier.
type MemStore struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blob == nil {
		return nil, nil
	}
	out := make([]byte, len(s.blob))
	copy(out, s.blob)
	return out, nil
}

func (s *MemStore) Save(blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = make([]byte, len(blob))
	copy(s.blob, blob)
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = nil
	return nil
}

// Accessor reads the session from the two storage areas, preferring the
// durable one, and fails soft: corrupt or missing blobs resolve to no
// session, never an error.
type Accessor struct {
	durable   Store
	ephemeral Store
}

func NewAccessor(durable, ephemeral Store) *Accessor {
	return &Accessor{durable: durable, ephemeral: ephemeral}
}

// Current returns the first present envelope, or nil when neither area holds
// a parseable one.
func (a *Accessor) Current() *Envelope {
	if env := a.load(a.durable, TierDurable); env != nil {
		return env
	}
	return a.load(a.ephemeral, TierEphemeral)
}

func (a *Accessor) load(store Store, tier Tier) *Envelope {
	if store == nil {
		return nil
	}
	blob, err := store.Load()
	if err != nil || blob == nil {
		return nil
	}
	env := Parse(blob)
	if env == nil {
		return nil
	}
	env.Tier = tier
	return env
}

// Save writes the envelope into the area matching its tier and clears the
// other one so the two areas never disagree.
func (a *Accessor) Save(env *Envelope) error {
	blob, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if env.Tier == TierDurable {
		_ = a.ephemeral.Clear()
		return a.durable.Save(blob)
	}
	_ = a.durable.Clear()
	return a.ephemeral.Save(blob)
}

// Clear empties both storage areas.
func (a *Accessor) Clear() {
	if a.durable != nil {
		_ = a.durable.Clear()
	}
	if a.ephemeral != nil {
		_ = a.ephemeral.Clear()
	}
}
