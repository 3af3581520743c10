// Package storage persists engine state in Pebble. The engine's in-memory
// maps stay authoritative; this store is the write-behind mirror replayed
// at startup.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/joonhyuk-dev/curio/pkg/market"
)

// Store wraps a Pebble database.
//
// keys: o:<32-byte-hash> orders (json), ix:<contract-hex>:<tokenid> index,
// n:<addr> nonces (8-byte big-endian), bal:<addr> / pr:<addr> big.Int
// bytes, wl:<addr> whitelist, adm:paused.
type Store struct {
	db *pebble.DB
}

func NewStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func kOrder(h common.Hash) []byte { return append([]byte("o:"), h[:]...) }
func kIndex(ik market.IndexKey) []byte {
	return []byte("ix:" + strings.ToLower(ik.Contract.Hex()) + ":" + ik.TokenID)
}
func kNonce(addr common.Address) []byte    { return append([]byte("n:"), addr[:]...) }
func kBalance(addr common.Address) []byte  { return append([]byte("bal:"), addr[:]...) }
func kProceeds(addr common.Address) []byte { return append([]byte("pr:"), addr[:]...) }
func kWhitelist(addr common.Address) []byte {
	return append([]byte("wl:"), addr[:]...)
}
func kPaused() []byte { return []byte("adm:paused") }

func (s *Store) PutOrder(hash common.Hash, o *market.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	return s.db.Set(kOrder(hash), data, pebble.Sync)
}

func (s *Store) DeleteOrder(hash common.Hash) error {
	return s.db.Delete(kOrder(hash), pebble.Sync)
}

func (s *Store) PutIndex(ik market.IndexKey, hash common.Hash) error {
	return s.db.Set(kIndex(ik), hash[:], pebble.Sync)
}

func (s *Store) DeleteIndex(ik market.IndexKey) error {
	return s.db.Delete(kIndex(ik), pebble.Sync)
}

func (s *Store) PutNonce(seller common.Address, nonce uint64) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], nonce)
	return s.db.Set(kNonce(seller), v[:], pebble.Sync)
}

func (s *Store) PutBalance(addr common.Address, amount *big.Int) error {
	return s.db.Set(kBalance(addr), amount.Bytes(), pebble.Sync)
}

func (s *Store) PutProceeds(addr common.Address, amount *big.Int) error {
	return s.db.Set(kProceeds(addr), amount.Bytes(), pebble.Sync)
}

func (s *Store) PutWhitelist(contract common.Address, ok bool) error {
	if !ok {
		return s.db.Delete(kWhitelist(contract), pebble.Sync)
	}
	return s.db.Set(kWhitelist(contract), []byte{1}, pebble.Sync)
}

func (s *Store) PutPaused(paused bool) error {
	v := byte(0)
	if paused {
		v = 1
	}
	return s.db.Set(kPaused(), []byte{v}, pebble.Sync)
}

var _ market.Persister = (*Store)(nil)

// Load rebuilds the engine snapshot from disk.
func (s *Store) Load() (*market.Snapshot, error) {
	snap := &market.Snapshot{
		Orders:    make(map[common.Hash]*market.Order),
		Index:     make(map[market.IndexKey]common.Hash),
		Nonces:    make(map[common.Address]uint64),
		Balances:  make(map[common.Address]*big.Int),
		Proceeds:  make(map[common.Address]*big.Int),
		Whitelist: make(map[common.Address]bool),
	}

	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		val := iter.Value()
		switch {
		case len(key) > 2 && string(key[:2]) == "o:":
			var hash common.Hash
			copy(hash[:], key[2:])
			var o market.Order
			if err := json.Unmarshal(val, &o); err != nil {
				return nil, fmt.Errorf("unmarshal order %s: %w", hash.Hex(), err)
			}
			snap.Orders[hash] = &o

		case len(key) > 3 && string(key[:3]) == "ix:":
			parts := strings.SplitN(string(key[3:]), ":", 2)
			if len(parts) != 2 {
				continue
			}
			var hash common.Hash
			copy(hash[:], val)
			snap.Index[market.IndexKey{
				Contract: common.HexToAddress(parts[0]),
				TokenID:  parts[1],
			}] = hash

		case len(key) > 2 && string(key[:2]) == "n:":
			addr := common.BytesToAddress(key[2:])
			snap.Nonces[addr] = binary.BigEndian.Uint64(val)

		case len(key) > 4 && string(key[:4]) == "bal:":
			addr := common.BytesToAddress(key[4:])
			snap.Balances[addr] = new(big.Int).SetBytes(val)

		case len(key) > 3 && string(key[:3]) == "pr:":
			addr := common.BytesToAddress(key[3:])
			snap.Proceeds[addr] = new(big.Int).SetBytes(val)

		case len(key) > 3 && string(key[:3]) == "wl:":
			addr := common.BytesToAddress(key[3:])
			snap.Whitelist[addr] = true

		case string(key) == "adm:paused":
			snap.Paused = len(val) == 1 && val[0] == 1
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return snap, nil
}
