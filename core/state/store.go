package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"notehouse/core/types"
	"notehouse/native/auction"
	"notehouse/storage"
)

const (
	accountPrefix = "acct/"
	auctionPrefix = "auction/"
	auctionSeqKey = "auction/seq"
)

// Store persists ledger accounts and auction records as JSON documents over a
// generic key-value database. It implements the narrow state interfaces of
// the ledger engine and the auction registry.
type Store struct {
	mu sync.Mutex
	db storage.Database
}

// NewStore wraps the given database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func accountKey(addr [20]byte) []byte {
	return append([]byte(accountPrefix), addr[:]...)
}

func auctionKey(id uint64) []byte {
	key := make([]byte, len(auctionPrefix)+8)
	copy(key, auctionPrefix)
	binary.BigEndian.PutUint64(key[len(auctionPrefix):], id)
	return key
}

// GetAccount loads an account record. Unknown addresses return a zeroed
// account rather than an error.
func (s *Store) GetAccount(addr [20]byte) (*types.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return types.EnsureAccount(nil), nil
	}
	if err != nil {
		return nil, err
	}
	acct := new(types.Account)
	if err := json.Unmarshal(raw, acct); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return types.EnsureAccount(acct), nil
}

// PutAccount persists an account record.
func (s *Store) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(types.EnsureAccount(account))
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return s.db.Put(accountKey(addr), raw)
}

// AuctionGet loads an auction record by id, reporting ok=false when the id
// was never allocated.
func (s *Store) AuctionGet(id uint64) (*auction.Auction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.db.Get(auctionKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	a := new(auction.Auction)
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, false, fmt.Errorf("state: decode auction: %w", err)
	}
	return a, true, nil
}

// AuctionPut persists an auction record after sanitising it.
func (s *Store) AuctionPut(a *auction.Auction) error {
	sanitized, err := auction.SanitizeAuction(a)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("state: encode auction: %w", err)
	}
	return s.db.Put(auctionKey(sanitized.ID), raw)
}

// AuctionAllocateID returns the next sequential auction id (starting at 0)
// and persists the advanced counter so the sequence survives restarts.
func (s *Store) AuctionAllocateID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next uint64
	raw, err := s.db.Get([]byte(auctionSeqKey))
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		next = 0
	case err != nil:
		return 0, err
	case len(raw) != 8:
		return 0, fmt.Errorf("state: corrupt auction sequence")
	default:
		next = binary.BigEndian.Uint64(raw)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	if err := s.db.Put([]byte(auctionSeqKey), buf); err != nil {
		return 0, err
	}
	return next, nil
}
