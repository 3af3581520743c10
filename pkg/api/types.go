package api

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/joonhyuk-dev/curio/pkg/market"
)

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// Requests
// ==============================

// SubmitOrderRequest carries a signed order. Price, tokenId and payment
// amounts travel as decimal strings to survive JSON number precision.
type SubmitOrderRequest struct {
	Seller        string `json:"seller"`
	Price         string `json:"price"`
	AssetContract string `json:"assetContract"`
	TokenID       string `json:"tokenId"`
	Expiration    int64  `json:"expiration"`
	Taker         string `json:"taker,omitempty"`
	Nonce         uint64 `json:"nonce"`
	Signature     string `json:"signature"` // 0x-prefixed, 65 bytes
}

func (r *SubmitOrderRequest) toOrder() (*market.Order, []byte, error) {
	price, ok := new(big.Int).SetString(r.Price, 10)
	if !ok {
		return nil, nil, fmt.Errorf("invalid price %q", r.Price)
	}
	tokenID, ok := new(big.Int).SetString(r.TokenID, 10)
	if !ok {
		return nil, nil, fmt.Errorf("invalid tokenId %q", r.TokenID)
	}
	sig, err := hexutil.Decode(r.Signature)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid signature: %w", err)
	}
	order := &market.Order{
		Seller:        common.HexToAddress(r.Seller),
		Price:         price,
		AssetContract: common.HexToAddress(r.AssetContract),
		TokenID:       tokenID,
		Expiration:    r.Expiration,
		Nonce:         r.Nonce,
	}
	if r.Taker != "" {
		order.Taker = common.HexToAddress(r.Taker)
	}
	return order, sig, nil
}

// OrderHashRequest carries unsigned order terms for digest preview, so a
// seller can compute the exact digest a wallet will be asked to sign.
type OrderHashRequest struct {
	Seller        string `json:"seller"`
	Price         string `json:"price"`
	AssetContract string `json:"assetContract"`
	TokenID       string `json:"tokenId"`
	Expiration    int64  `json:"expiration"`
	Taker         string `json:"taker,omitempty"`
	Nonce         uint64 `json:"nonce"`
}

func (r *OrderHashRequest) toOrder() (*market.Order, error) {
	price, ok := new(big.Int).SetString(r.Price, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", r.Price)
	}
	tokenID, ok := new(big.Int).SetString(r.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid tokenId %q", r.TokenID)
	}
	order := &market.Order{
		Seller:        common.HexToAddress(r.Seller),
		Price:         price,
		AssetContract: common.HexToAddress(r.AssetContract),
		TokenID:       tokenID,
		Expiration:    r.Expiration,
		Nonce:         r.Nonce,
	}
	if r.Taker != "" {
		order.Taker = common.HexToAddress(r.Taker)
	}
	return order, nil
}

type FulfillRequest struct {
	Taker   string `json:"taker"`
	Payment string `json:"payment"`
}

type BatchFulfillRequest struct {
	Taker   string   `json:"taker"`
	Hashes  []string `json:"hashes"`
	Payment string   `json:"payment"`
}

type RemoveRequest struct {
	Caller string `json:"caller"`
}

type BatchRemoveRequest struct {
	Caller string   `json:"caller"`
	Hashes []string `json:"hashes"`
}

type DepositRequest struct {
	Amount string `json:"amount"`
}

type WithdrawRequest struct {
	Amount string `json:"amount"`
}

type PauseRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type WhitelistRequest struct {
	Caller   string `json:"caller"`
	Contract string `json:"contract"`
	Allowed  bool   `json:"allowed"`
}

// ==============================
// Responses
// ==============================

type OrderInfo struct {
	Hash          string `json:"hash"`
	Seller        string `json:"seller"`
	Price         string `json:"price"`
	AssetContract string `json:"assetContract"`
	TokenID       string `json:"tokenId"`
	Expiration    int64  `json:"expiration"`
	Taker         string `json:"taker,omitempty"`
	Nonce         uint64 `json:"nonce"`
}

func orderInfo(hash common.Hash, o *market.Order) OrderInfo {
	info := OrderInfo{
		Hash:          hash.Hex(),
		Seller:        o.Seller.Hex(),
		Price:         o.Price.String(),
		AssetContract: o.AssetContract.Hex(),
		TokenID:       o.TokenID.String(),
		Expiration:    o.Expiration,
		Nonce:         o.Nonce,
	}
	if o.Taker != (common.Address{}) {
		info.Taker = o.Taker.Hex()
	}
	return info
}

type FulfillResponse struct {
	Hash    string `json:"hash"`
	Outcome string `json:"outcome"` // "settled" or "refunded"
}

type BatchResultInfo struct {
	Hash    string `json:"hash"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

func batchResults(results []market.BatchResult) []BatchResultInfo {
	out := make([]BatchResultInfo, len(results))
	for i, r := range results {
		info := BatchResultInfo{Hash: r.Hash.Hex()}
		if r.Outcome != 0 {
			info.Outcome = r.Outcome.String()
		}
		if r.Err != nil {
			info.Error = r.Err.Error()
		}
		out[i] = info
	}
	return out
}

type AccountInfo struct {
	Address  string `json:"address"`
	Balance  string `json:"balance"`  // spendable escrow deposits
	Proceeds string `json:"proceeds"` // claimable settlement proceeds
	Nonce    uint64 `json:"nonce"`    // next listing nonce
}

type ClaimResponse struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket messages
// ==============================

type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// EventEnvelope wraps a market event for broadcast.
type EventEnvelope struct {
	ID        string      `json:"id"`
	Channel   string      `json:"channel"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"` // Unix milliseconds
}
