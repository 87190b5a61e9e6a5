package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/veildraw/veildraw/pkg/db"
	"github.com/veildraw/veildraw/pkg/db/pebble"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrStoreClosed      = errors.New("snapshot store is closed")
)

const (
	prefixSnapshot byte = iota + 1
	prefixLatest
)

// Snapshots persists encoded contract-state roots keyed by contract address
// and block height. Readers only ever observe fully-applied snapshots; a
// root and the latest-height pointer commit in one batch.
type Snapshots struct {
	db     db.KVStore
	closed atomic.Bool
}

func NewSnapshots(db db.KVStore) *Snapshots {
	return &Snapshots{db: db}
}

// Put stores the encoded state root for a contract at a block height and
// moves the latest pointer to it atomically.
func (s *Snapshots) Put(contract abi.Address, height uint64, root []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Put(snapshotKey(contract, height), root); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], height)
	if err := batch.Put(makeKey(prefixLatest, contract[:]), h[:]); err != nil {
		return fmt.Errorf("store latest height: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Get retrieves the encoded state root for a contract at a block height.
func (s *Snapshots) Get(contract abi.Address, height uint64) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	root, err := s.db.Get(snapshotKey(contract, height))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return root, nil
}

// Latest retrieves the most recently stored root and its height.
func (s *Snapshots) Latest(contract abi.Address) ([]byte, uint64, error) {
	if s.closed.Load() {
		return nil, 0, ErrStoreClosed
	}

	h, err := s.db.Get(makeKey(prefixLatest, contract[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, 0, ErrSnapshotNotFound
		}
		return nil, 0, fmt.Errorf("get latest height: %w", err)
	}
	if len(h) != 8 {
		return nil, 0, fmt.Errorf("latest height entry is %d bytes, want 8", len(h))
	}
	height := binary.BigEndian.Uint64(h)
	root, err := s.Get(contract, height)
	if err != nil {
		return nil, 0, err
	}
	return root, height, nil
}

// Heights lists the stored snapshot heights for a contract in ascending
// order.
func (s *Snapshots) Heights(contract abi.Address) ([]uint64, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	start := makeKey(prefixSnapshot, contract[:])
	end := append(append([]byte{}, start...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	iter, err := s.db.NewIterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	var heights []uint64
	for iter.Next() {
		key := iter.Key()
		if len(key) != len(start)+8 {
			continue
		}
		heights = append(heights, binary.BigEndian.Uint64(key[len(start):]))
	}
	return heights, nil
}

func (s *Snapshots) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func snapshotKey(contract abi.Address, height uint64) []byte {
	key := makeKey(prefixSnapshot, contract[:])
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], height)
	return append(key, h[:]...)
}

func makeKey(prefix byte, parts ...[]byte) []byte {
	size := 1
	for _, p := range parts {
		size += len(p)
	}
	key := make([]byte, 0, size)
	key = append(key, prefix)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}
