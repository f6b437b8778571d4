package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

// ErrNotFound is returned when a session has no stored collection.
var ErrNotFound = errors.New("collection: no collection for session")

// Store persists one collection per session id. Implementations must be safe
// for concurrent use; mutations of a single session are last-write-wins.
type Store interface {
	Get(sessionID string) (*Collection, error)
	Set(sessionID string, coll *Collection) error
	Clear(sessionID string) error
}

// MemoryStore keeps collections in memory. Used by tests and the build CLI.
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: map[string][]byte{}}
}

// Get implements Store.
func (s *MemoryStore) Get(sessionID string) (*Collection, error) {
	s.mu.RLock()
	data, ok := s.colls[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(data)
}

// Set implements Store.
func (s *MemoryStore) Set(sessionID string, coll *Collection) error {
	data, err := json.Marshal(coll)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.colls[sessionID] = data
	s.mu.Unlock()
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(sessionID string) error {
	s.mu.Lock()
	delete(s.colls, sessionID)
	s.mu.Unlock()
	return nil
}

// DiskStore persists collections on disk via diskv, one file per session.
type DiskStore struct {
	d *diskv.Diskv
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// NewDiskStore returns a store rooted at basePath.
func NewDiskStore(basePath string) *DiskStore {
	return &DiskStore{d: diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: 1024 * 1024,
	})}
}

func sessionKey(sessionID string) string {
	return unsafeKeyChars.ReplaceAllString(sessionID, "_") + ".json"
}

// Get implements Store.
func (s *DiskStore) Get(sessionID string) (*Collection, error) {
	data, err := s.d.Read(sessionKey(sessionID))
	if err != nil {
		return nil, ErrNotFound
	}
	return decode(data)
}

// Set implements Store.
func (s *DiskStore) Set(sessionID string, coll *Collection) error {
	data, err := json.Marshal(coll)
	if err != nil {
		return err
	}
	if err := s.d.Write(sessionKey(sessionID), data); err != nil {
		return fmt.Errorf("collection: writing session %s: %w", sessionID, err)
	}
	return nil
}

// Clear implements Store.
func (s *DiskStore) Clear(sessionID string) error {
	err := s.d.Erase(sessionKey(sessionID))
	if err != nil && !s.d.Has(sessionKey(sessionID)) {
		return nil
	}
	return err
}

func decode(data []byte) (*Collection, error) {
	coll := New()
	if err := json.Unmarshal(data, coll); err != nil {
		return nil, fmt.Errorf("collection: corrupt session data: %w", err)
	}
	return coll, nil
}
