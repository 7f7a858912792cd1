package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// State is the narrow read/write surface the ledger packages operate on.
// Records are RLP encoded. Both the Manager and the Batch overlay satisfy it.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Manager wraps a Database with an RLP record codec.
type Manager struct {
	db Database
}

// NewManager constructs a state manager bound to the provided database.
func NewManager(db Database) *Manager {
	return &Manager{db: db}
}

// KVGet decodes the record stored under key into out. The boolean reports
// whether the key was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, encoded)
}

// KVDelete removes the record stored under key.
func (m *Manager) KVDelete(key []byte) error {
	return m.db.Delete(key)
}

// Batch returns a buffered overlay over the manager. Reads see the buffered
// writes first and fall through to the underlying database; nothing touches
// the database until Commit.
func (m *Manager) Batch() *Batch {
	return &Batch{
		mgr:     m,
		entries: make(map[string]batchEntry),
	}
}

type batchEntry struct {
	value   []byte
	deleted bool
}

// Batch is a copy-on-write overlay used to give multi-step operations
// all-or-nothing semantics. A Batch is not safe for concurrent use; callers
// serialize access (the vault engine holds its own lock).
type Batch struct {
	mgr     *Manager
	entries map[string]batchEntry
	order   []string
	done    bool
}

func (b *Batch) KVGet(key []byte, out interface{}) (bool, error) {
	if entry, ok := b.entries[string(key)]; ok {
		if entry.deleted {
			return false, nil
		}
		if err := rlp.DecodeBytes(entry.value, out); err != nil {
			return false, fmt.Errorf("state: decode %q: %w", key, err)
		}
		return true, nil
	}
	return b.mgr.KVGet(key, out)
}

func (b *Batch) KVPut(key []byte, value interface{}) error {
	if b.done {
		return errBatchFinished
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	b.stage(string(key), batchEntry{value: encoded})
	return nil
}

func (b *Batch) KVDelete(key []byte) error {
	if b.done {
		return errBatchFinished
	}
	b.stage(string(key), batchEntry{deleted: true})
	return nil
}

func (b *Batch) stage(key string, entry batchEntry) {
	if _, seen := b.entries[key]; !seen {
		b.order = append(b.order, key)
	}
	b.entries[key] = entry
}

var errBatchFinished = errors.New("state: batch already committed or discarded")

// Commit flushes the buffered writes through a single atomic database write.
func (b *Batch) Commit() error {
	if b.done {
		return errBatchFinished
	}
	b.done = true
	if len(b.order) == 0 {
		return nil
	}
	ops := make([]Op, 0, len(b.order))
	for _, key := range b.order {
		entry := b.entries[key]
		ops = append(ops, Op{Key: []byte(key), Value: entry.value, Delete: entry.deleted})
	}
	return b.mgr.db.Write(ops)
}

// Discard drops the buffered writes without applying them.
func (b *Batch) Discard() {
	b.done = true
	b.entries = nil
	b.order = nil
}
