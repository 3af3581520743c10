package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Persister is the write-behind durability hook. The in-memory maps are
// authoritative; each committed mutation is mirrored here. Errors are
// logged, not propagated — a storage hiccup must not fail a settled trade.
type Persister interface {
	PutOrder(hash common.Hash, o *Order) error
	DeleteOrder(hash common.Hash) error
	PutIndex(key IndexKey, hash common.Hash) error
	DeleteIndex(key IndexKey) error
	PutNonce(seller common.Address, nonce uint64) error
	PutBalance(addr common.Address, amount *big.Int) error
	PutProceeds(addr common.Address, amount *big.Int) error
	PutWhitelist(contract common.Address, ok bool) error
	PutPaused(paused bool) error
}

// Snapshot is the durable engine state loaded at startup.
type Snapshot struct {
	Orders    map[common.Hash]*Order
	Index     map[IndexKey]common.Hash
	Nonces    map[common.Address]uint64
	Balances  map[common.Address]*big.Int
	Proceeds  map[common.Address]*big.Int
	Whitelist map[common.Address]bool
	Paused    bool
}
