package api

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joonhyuk-dev/curio/pkg/market"
)

func hubClient(h *Hub, id string, buffer int) *Client {
	c := &Client{
		hub:           h,
		send:          make(chan []byte, buffer),
		id:            id,
		subscriptions: make(map[string]bool),
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func TestPublishRoutesByChannel(t *testing.T) {
	h := NewHub()
	orders := hubClient(h, "orders-client", 4)
	orders.Subscribe("orders")
	trades := hubClient(h, "trades-client", 4)
	trades.Subscribe("trades")

	listing := &market.Order{
		Seller:  common.HexToAddress("0x01"),
		Price:   big.NewInt(2000),
		TokenID: big.NewInt(1),
	}
	h.Publish(market.Event{Type: market.EventOrderListed, Order: listing, At: time.Now()})
	h.Publish(market.Event{Type: market.EventOrderFulfilled, Order: listing, Fee: big.NewInt(60), At: time.Now()})

	// Listing lands on "orders" only, fulfillment on "trades" only.
	require.Len(t, orders.send, 1)
	require.Len(t, trades.send, 1)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(<-orders.send, &env))
	assert.Equal(t, "orders", env.Channel)
	assert.Equal(t, string(market.EventOrderListed), env.Type)
	assert.NotEmpty(t, env.ID)

	require.NoError(t, json.Unmarshal(<-trades.send, &env))
	assert.Equal(t, "trades", env.Channel)
	assert.Equal(t, string(market.EventOrderFulfilled), env.Type)
}

func TestUnsubscribedClientReceivesNothing(t *testing.T) {
	h := NewHub()
	c := hubClient(h, "silent-client", 4)

	h.BroadcastToChannel("orders", map[string]string{"x": "y"})
	assert.Len(t, c.send, 0)

	c.Subscribe("orders")
	h.BroadcastToChannel("orders", map[string]string{"x": "y"})
	assert.Len(t, c.send, 1)

	c.Unsubscribe("orders")
	h.BroadcastToChannel("orders", map[string]string{"x": "y"})
	assert.Len(t, c.send, 1)
}

func TestSlowClientIsSkippedNotDisconnected(t *testing.T) {
	h := NewHub()
	slow := hubClient(h, "slow-client", 1)
	slow.Subscribe("orders")

	h.BroadcastToChannel("orders", map[string]string{"seq": "1"})
	// Buffer now full; the next broadcast must drop for this client while
	// leaving it registered with its channel open.
	h.BroadcastToChannel("orders", map[string]string{"seq": "2"})

	require.Len(t, slow.send, 1)
	h.mu.RLock()
	_, registered := h.clients[slow]
	h.mu.RUnlock()
	assert.True(t, registered)

	// The buffered message is still readable: the channel was not closed.
	var env map[string]string
	require.NoError(t, json.Unmarshal(<-slow.send, &env))
	assert.Equal(t, "1", env["seq"])
}
