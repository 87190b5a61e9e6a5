// Package avl exposes the contract's ordered key-value trees without
// materializing them locally. Each tree is identified by a numeric id
// serialized in the contract state; the entries themselves live in a state
// store and are fetched by point lookup or page-wise enumeration.
package avl

import (
	"errors"
	"fmt"
)

// TreeID identifies one ordered tree within a state store. It is the value
// serialized in place of the tree contents in a state snapshot.
type TreeID int32

// RawEntry is one tree entry in encoded form.
type RawEntry struct {
	Key   []byte
	Value []byte
}

// Store provides ordered read access to raw tree entries. Entries enumerate
// in the byte order of their encoded keys. Implementations may be local
// (KV-backed) or remote (paging against a chain node), so every call can fail.
type Store interface {
	Get(tree TreeID, key []byte) ([]byte, bool, error)
	Size(tree TreeID) (uint64, error)
	// NextN returns up to n entries with keys strictly after `after`,
	// in key order. A nil `after` starts from the beginning.
	NextN(tree TreeID, after []byte, n uint64) ([]RawEntry, error)
}

// MutableStore additionally supports writes. The contract core mutates its
// trees through this interface; remote read-only backends do not provide it.
type MutableStore interface {
	Store
	Insert(tree TreeID, key, value []byte) error
	Remove(tree TreeID, key []byte) error
}

var ErrReadOnly = errors.New("avl: store is read-only")

// Entry is one decoded tree entry.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// TreeMap is an ordered map view over one tree of a Store, parameterized by
// a key codec and a value codec.
type TreeMap[K, V any] struct {
	id    TreeID
	store Store
	key   Codec[K]
	value Codec[V]
}

// Codec encodes and decodes one side of a tree entry.
type Codec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

func NewTreeMap[K, V any](id TreeID, store Store, key Codec[K], value Codec[V]) *TreeMap[K, V] {
	return &TreeMap[K, V]{id: id, store: store, key: key, value: value}
}

// ID returns the tree id serialized in the contract state.
func (m *TreeMap[K, V]) ID() TreeID {
	return m.id
}

// Get performs a point lookup.
func (m *TreeMap[K, V]) Get(k K) (V, bool, error) {
	var zero V
	kb, err := m.key.Encode(k)
	if err != nil {
		return zero, false, fmt.Errorf("encode key: %w", err)
	}
	vb, ok, err := m.store.Get(m.id, kb)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	v, err := m.value.Decode(vb)
	if err != nil {
		return zero, false, fmt.Errorf("decode value: %w", err)
	}
	return v, true, nil
}

// ContainsKey reports whether the key is present.
func (m *TreeMap[K, V]) ContainsKey(k K) (bool, error) {
	kb, err := m.key.Encode(k)
	if err != nil {
		return false, fmt.Errorf("encode key: %w", err)
	}
	_, ok, err := m.store.Get(m.id, kb)
	return ok, err
}

// Size returns the number of entries; it may require a store round-trip.
func (m *TreeMap[K, V]) Size() (uint64, error) {
	return m.store.Size(m.id)
}

// GetNextN returns up to n decoded entries with keys strictly after cursor,
// in key order. A nil cursor starts from the beginning. Full enumeration is
// GetNextN(nil, size).
func (m *TreeMap[K, V]) GetNextN(cursor *K, n uint64) ([]Entry[K, V], error) {
	var after []byte
	if cursor != nil {
		kb, err := m.key.Encode(*cursor)
		if err != nil {
			return nil, fmt.Errorf("encode cursor: %w", err)
		}
		after = kb
	}
	raw, err := m.store.NextN(m.id, after, n)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry[K, V], 0, len(raw))
	for _, e := range raw {
		k, err := m.key.Decode(e.Key)
		if err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		v, err := m.value.Decode(e.Value)
		if err != nil {
			return nil, fmt.Errorf("decode value: %w", err)
		}
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
	}
	return entries, nil
}

// Insert writes an entry, replacing any existing value for the key.
// Fails with ErrReadOnly on a non-mutable store.
func (m *TreeMap[K, V]) Insert(k K, v V) error {
	ms, ok := m.store.(MutableStore)
	if !ok {
		return ErrReadOnly
	}
	kb, err := m.key.Encode(k)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	vb, err := m.value.Encode(v)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return ms.Insert(m.id, kb, vb)
}

// Remove deletes an entry if present. Fails with ErrReadOnly on a
// non-mutable store.
func (m *TreeMap[K, V]) Remove(k K) error {
	ms, ok := m.store.(MutableStore)
	if !ok {
		return ErrReadOnly
	}
	kb, err := m.key.Encode(k)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	return ms.Remove(m.id, kb)
}
