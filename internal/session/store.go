// Package session holds the state that outlives a single command: the
// persisted location, the login flag and cookies, the collaborator-app cache,
// and the session context built from them.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/spacefiler/spacefiler/internal/constants"
)

// Scope selects the lifetime of a stored value.
type Scope string

const (
	// ScopeSession lives until logout.
	ScopeSession Scope = "session"
	// ScopeLocal survives logout too, but is cleared with everything else on teardown.
	ScopeLocal Scope = "local"
)

var scopes = []Scope{ScopeSession, ScopeLocal}

// Store is a small scoped key-value store.
type Store interface {
	Get(scope Scope, key string) ([]byte, bool, error)
	Put(scope Scope, key string, value []byte) error
	Delete(scope Scope, key string) error
	Clear(scope Scope) error
	Close() error
}

// BoltStore keeps each scope in its own bbolt bucket.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (or creates) the state file. A second process holding
// the file makes this fail after constants.StateOpenTimeout.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: constants.StateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open state file %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, s := range scopes {
			if _, e := tx.CreateBucketIfNotExists([]byte(s)); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize state file: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(scope Scope, key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("unknown scope %q", scope)
		}
		if v := b.Get([]byte(key)); v != nil {
			// bbolt values are only valid inside the transaction
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *BoltStore) Put(scope Scope, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("unknown scope %q", scope)
		}
		return b.Put([]byte(key), value)
	})
}

func (s *BoltStore) Delete(scope Scope, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("unknown scope %q", scope)
		}
		return b.Delete([]byte(key))
	})
}

// Clear drops and recreates the scope's bucket.
func (s *BoltStore) Clear(scope Scope) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(scope)); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(scope))
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	data map[Scope]map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Scope]map[string][]byte)}
}

func (m *MemoryStore) Get(scope Scope, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[scope][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Put(scope Scope, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[scope] == nil {
		m.data[scope] = make(map[string][]byte)
	}
	m.data[scope][key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(scope Scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[scope], key)
	return nil
}

func (m *MemoryStore) Clear(scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, scope)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// getJSON decodes a stored value into out. ok is false when the key is absent.
func getJSON(s Store, scope Scope, key string, out interface{}) (bool, error) {
	data, ok, err := s.Get(scope, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("corrupt %s/%s: %w", scope, key, err)
	}
	return true, nil
}

func putJSON(s Store, scope Scope, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", scope, key, err)
	}
	return s.Put(scope, key, data)
}
