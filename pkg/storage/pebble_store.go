package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hookorder/pkg/orderbook"
)

var (
	ErrDuplicateOrder  = errors.New("order already exists")
	ErrAppDataConflict = errors.New("different app data already stored for hash")
)

// PebbleStore keeps accepted orders and their app-data documents
type PebbleStore struct {
	db *pebble.DB
	mu sync.Mutex // serializes check-then-write sequences
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

// NewMemStore opens a store backed by an in-memory filesystem
func NewMemStore() (*PebbleStore, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// InsertOrder stores a new order and indexes it by owner.
// Returns ErrDuplicateOrder if the uid is already present.
func (s *PebbleStore) InsertOrder(o *orderbook.OrderView) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if !common.IsHexAddress(o.Owner) {
		return fmt.Errorf("order %s has bad owner %q", o.UID, o.Owner)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.has(orderKey(o.UID))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.UID)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(orderKey(o.UID), data, nil); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	idx := ownerKey(common.HexToAddress(o.Owner), o.ValidTo, o.UID)
	if err := batch.Set(idx, []byte(o.UID), nil); err != nil {
		return fmt.Errorf("failed to index order: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// LoadOrder returns nil if the order doesn't exist
func (s *PebbleStore) LoadOrder(uid string) (*orderbook.OrderView, error) {
	data, closer, err := s.db.Get(orderKey(uid))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()

	var o orderbook.OrderView
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &o, nil
}

// LoadOwnerOrders returns an owner's orders, soonest expiry first
func (s *PebbleStore) LoadOwnerOrders(owner common.Address, limit int) ([]*orderbook.OrderView, error) {
	prefix := ownerPrefix(owner)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var orders []*orderbook.OrderView
	for iter.First(); iter.Valid() && (limit <= 0 || len(orders) < limit); iter.Next() {
		o, err := s.LoadOrder(string(iter.Value()))
		if err != nil {
			return nil, err
		}
		if o != nil {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// SaveAppData stores a document under its hash. Storing the same document
// twice is a no-op; a different document for the same hash is rejected.
func (s *PebbleStore) SaveAppData(hash common.Hash, fullAppData string) (created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found, err := s.loadAppData(hash)
	if err != nil {
		return false, err
	}
	if found {
		if existing != fullAppData {
			return false, fmt.Errorf("%w: %s", ErrAppDataConflict, hash.Hex())
		}
		return false, nil
	}

	if err := s.db.Set(appDataKey(hash), []byte(fullAppData), pebble.Sync); err != nil {
		return false, fmt.Errorf("failed to save app data: %w", err)
	}
	return true, nil
}

// LoadAppData returns the document stored for hash, if any
func (s *PebbleStore) LoadAppData(hash common.Hash) (string, bool, error) {
	return s.loadAppData(hash)
}

func (s *PebbleStore) loadAppData(hash common.Hash) (string, bool, error) {
	data, closer, err := s.db.Get(appDataKey(hash))
	if err == pebble.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get app data: %w", err)
	}
	defer closer.Close()
	return string(data), true, nil
}

func (s *PebbleStore) has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read key: %w", err)
	}
	closer.Close()
	return true, nil
}
