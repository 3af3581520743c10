// Package market implements the order validation and settlement state
// machine: EIP-712 authorized listings, replay protection, atomic
// settle-or-refund fulfillment, and accrue-then-claim proceeds accounting.
package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xcrypto "github.com/joonhyuk-dev/curio/pkg/crypto"
)

// Order is the unit of a listing. Immutable once stored: settlement or
// removal deletes it, it is never mutated in place. Changing terms means
// cancelling and relisting with an incremented nonce.
type Order struct {
	Seller        common.Address `json:"seller"`
	Price         *big.Int       `json:"price"`         // smallest payment unit
	AssetContract common.Address `json:"assetContract"` // registry holding the asset
	TokenID       *big.Int       `json:"tokenId"`
	Expiration    int64          `json:"expiration"` // unix seconds, 0 = never
	Taker         common.Address `json:"taker"`      // zero = public listing
	Nonce         uint64         `json:"nonce"`      // seller counter at signing time
}

// Typed converts the order to its EIP-712 message form. Field mapping here
// is part of the signature compatibility surface.
func (o *Order) Typed() *xcrypto.Order712 {
	return &xcrypto.Order712{
		Seller:        o.Seller,
		Price:         o.Price,
		AssetContract: o.AssetContract,
		TokenID:       o.TokenID,
		Expiration:    big.NewInt(o.Expiration),
		Taker:         o.Taker,
		Nonce:         new(big.Int).SetUint64(o.Nonce),
	}
}

// clone returns a defensive copy so stored orders cannot be mutated
// through a caller-held pointer.
func (o *Order) clone() *Order {
	cp := *o
	cp.Price = new(big.Int).Set(o.Price)
	cp.TokenID = new(big.Int).Set(o.TokenID)
	return &cp
}

// IndexKey identifies the physical asset a listing refers to. The
// secondary index from IndexKey to active digest prevents two concurrent
// listings for the same item.
type IndexKey struct {
	Contract common.Address
	TokenID  string // decimal; big.Int is not comparable as a map key
}

func indexKey(contract common.Address, tokenID *big.Int) IndexKey {
	return IndexKey{Contract: contract, TokenID: tokenID.String()}
}

// Outcome is the terminal state of a fulfillment attempt. A stale order is
// a defined alternate outcome, not an error: the buyer's payment comes back
// and the listing is removed.
type Outcome int

const (
	OutcomeSettled Outcome = iota + 1
	OutcomeRefunded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSettled:
		return "settled"
	case OutcomeRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// BatchResult reports one element of a batch operation. Err is nil for
// both settled and refunded outcomes.
type BatchResult struct {
	Hash    common.Hash
	Outcome Outcome
	Err     error
}
