// Package memory provides an in-memory db.KVStore used by tests and by the
// contract simulation, with the same byte-ordered iteration semantics as the
// pebble backend.
package memory

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	"github.com/veildraw/veildraw/pkg/db"
)

var (
	ErrClosed    = errors.New("kv-store: database is closed")
	ErrNotFound  = errors.New("kv-store: key not found")
	ErrBatchDone = errors.New("kv-store: batch already committed or closed")
)

type KVStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string][]byte)}
}

func (m *KVStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *KVStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *KVStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, string(key))
	return nil
}

func (m *KVStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// NewIterator iterates a snapshot of the keys in [start, end) in byte order.
func (m *KVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var keys []string
	for k := range m.data {
		kb := []byte(k)
		if start != nil && bytes.Compare(kb, start) < 0 {
			continue
		}
		if end != nil && bytes.Compare(kb, end) >= 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		v := make([]byte, len(m.data[k]))
		copy(v, m.data[k])
		entries = append(entries, entry{key: []byte(k), value: v})
	}
	return &iterator{entries: entries, pos: -1}, nil
}

type entry struct {
	key   []byte
	value []byte
}

type iterator struct {
	entries []entry
	pos     int
}

func (it *iterator) Next() bool {
	if it.pos+1 >= len(it.entries) {
		it.pos = len(it.entries)
		return false
	}
	it.pos++
	return true
}

func (it *iterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.entries)
}

func (it *iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.entries[it.pos].key
}

func (it *iterator) Value() ([]byte, error) {
	if !it.Valid() {
		return nil, ErrNotFound
	}
	return it.entries[it.pos].value, nil
}

func (it *iterator) Close() error {
	it.entries = nil
	return nil
}

type memBatch struct {
	store *KVStore
	ops   []func()
	done  bool
}

func (m *KVStore) NewBatch() db.Batch {
	return &memBatch{store: m}
}

func (b *memBatch) Put(key, value []byte) error {
	if b.done {
		return ErrBatchDone
	}
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	b.ops = append(b.ops, func() { b.store.data[string(k)] = v })
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	if b.done {
		return ErrBatchDone
	}
	k := append([]byte(nil), key...)
	b.ops = append(b.ops, func() { delete(b.store.data, string(k)) })
	return nil
}

func (b *memBatch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.closed {
		return ErrClosed
	}
	for _, op := range b.ops {
		op()
	}
	b.done = true
	return nil
}

func (b *memBatch) Close() error {
	b.done = true
	b.ops = nil
	return nil
}
