package market

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventOrderListed    EventType = "order_listed"
	EventOrderFulfilled EventType = "order_fulfilled"
	EventOrderRemoved   EventType = "order_removed"
)

// Event is published after an operation commits. For removals, Stale
// distinguishes a failed settlement cleanup from an explicit seller remove.
type Event struct {
	Type  EventType      `json:"type"`
	Hash  common.Hash    `json:"hash"`
	Order *Order         `json:"order"`
	Taker common.Address `json:"taker,omitempty"`
	Fee   *big.Int       `json:"fee,omitempty"`
	Stale bool           `json:"stale,omitempty"`
	At    time.Time      `json:"at"`
}

// Sink receives committed events. Publish must not call back into the
// engine's mutating entry points.
type Sink interface {
	Publish(Event)
}
