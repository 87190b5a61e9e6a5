package avl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/veildraw/veildraw/pkg/db"
	"github.com/veildraw/veildraw/pkg/db/memory"
	"github.com/veildraw/veildraw/pkg/db/pebble"
)

// KVTreeStore keeps tree entries in a db.KVStore, one keyspace per tree id.
// Entry keys are prefixed with the big-endian tree id so that each tree
// occupies a contiguous, iterable key range.
type KVTreeStore struct {
	kv db.KVStore
}

func NewKVTreeStore(kv db.KVStore) *KVTreeStore {
	return &KVTreeStore{kv: kv}
}

const treePrefixLen = 5

func treeKey(tree TreeID, key []byte) []byte {
	out := make([]byte, treePrefixLen, treePrefixLen+len(key))
	out[0] = 't'
	binary.BigEndian.PutUint32(out[1:], uint32(tree))
	return append(out, key...)
}

func treeBounds(tree TreeID) (start, end []byte) {
	start = treeKey(tree, nil)
	end = make([]byte, treePrefixLen)
	end[0] = 't'
	binary.BigEndian.PutUint32(end[1:], uint32(tree)+1)
	return start, end
}

func (s *KVTreeStore) Get(tree TreeID, key []byte) ([]byte, bool, error) {
	v, err := s.kv.Get(treeKey(tree, key))
	if errors.Is(err, pebble.ErrNotFound) || errors.Is(err, memory.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get tree entry: %w", err)
	}
	return v, true, nil
}

func (s *KVTreeStore) Size(tree TreeID) (uint64, error) {
	start, end := treeBounds(tree)
	iter, err := s.kv.NewIterator(start, end)
	if err != nil {
		return 0, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close() //nolint:errcheck
	var n uint64
	for iter.Next() {
		n++
	}
	return n, nil
}

func (s *KVTreeStore) NextN(tree TreeID, after []byte, n uint64) ([]RawEntry, error) {
	start, end := treeBounds(tree)
	if after != nil {
		// Cursor is exclusive: resume just past the encoded key.
		start = append(treeKey(tree, after), 0)
	}
	iter, err := s.kv.NewIterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close() //nolint:errcheck

	var entries []RawEntry
	for uint64(len(entries)) < n && iter.Next() {
		if !iter.Valid() {
			break
		}
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("get iterator value: %w", err)
		}
		key := iter.Key()
		if !bytes.HasPrefix(key, treeKey(tree, nil)) {
			break
		}
		entries = append(entries, RawEntry{Key: key[treePrefixLen:], Value: value})
	}
	return entries, nil
}

func (s *KVTreeStore) Insert(tree TreeID, key, value []byte) error {
	if err := s.kv.Put(treeKey(tree, key), value); err != nil {
		return fmt.Errorf("put tree entry: %w", err)
	}
	return nil
}

func (s *KVTreeStore) Remove(tree TreeID, key []byte) error {
	if err := s.kv.Delete(treeKey(tree, key)); err != nil {
		return fmt.Errorf("delete tree entry: %w", err)
	}
	return nil
}
