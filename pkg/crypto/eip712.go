package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the EIP-712 domain separator. It binds every signature to one
// engine deployment: the same order signed for a different name, version or
// chain produces a different digest.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address // zero for off-chain engines
}

// Order712 is the typed message a seller signs to authorize a sale.
// Field order and types are part of the compatibility surface: any change
// invalidates all previously issued, unredeemed signatures.
type Order712 struct {
	Seller        common.Address
	Price         *big.Int       // smallest payment unit
	AssetContract common.Address // registry holding the asset
	TokenID       *big.Int
	Expiration    *big.Int       // unix seconds, 0 = never expires
	Taker         common.Address // zero = anyone may fulfill
	Nonce         *big.Int       // seller-scoped sequence number
}

// orderTypes is the EIP-712 type table shared by hashing and the wallet
// JSON payload.
var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "seller", Type: "address"},
		{Name: "price", Type: "uint256"},
		{Name: "assetContract", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "expiration", Type: "uint256"},
		{Name: "taker", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	},
}

// TypedSigner hashes and verifies orders under a fixed signing domain.
type TypedSigner struct {
	domain Domain
}

func NewTypedSigner(domain Domain) *TypedSigner {
	return &TypedSigner{domain: domain}
}

// DefaultDomain returns the signing domain used by local devnets.
func DefaultDomain() Domain {
	return Domain{
		Name:              "Curio",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

func (t *TypedSigner) typedData(order *Order712) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              t.domain.Name,
			Version:           t.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(t.domain.ChainID),
			VerifyingContract: t.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"seller":        order.Seller.Hex(),
			"price":         order.Price.String(),
			"assetContract": order.AssetContract.Hex(),
			"tokenId":       order.TokenID.String(),
			"expiration":    order.Expiration.String(),
			"taker":         order.Taker.Hex(),
			"nonce":         order.Nonce.String(),
		},
	}
}

// HashOrder computes the EIP-712 digest of an order. Deterministic: the
// same order under the same domain always hashes identically. The digest
// doubles as the order store's primary key.
func (t *TypedSigner) HashOrder(order *Order712) (common.Hash, error) {
	typedData := t.typedData(order)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData), nil
}

// SignOrder signs an order and returns the 65-byte signature.
func (t *TypedSigner) SignOrder(signer *Signer, order *Order712) ([]byte, error) {
	hash, err := t.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}
	signature, err := signer.Sign(hash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}
	return signature, nil
}

// RecoverOrderSigner recovers the address that signed an order.
func (t *TypedSigner) RecoverOrderSigner(order *Order712, signature []byte) (common.Address, error) {
	hash, err := t.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash order: %w", err)
	}
	return RecoverAddress(hash.Bytes(), signature)
}

// VerifyOrderSignature reports whether signature over order was produced
// by the order's seller.
func (t *TypedSigner) VerifyOrderSignature(order *Order712, signature []byte) (bool, error) {
	recovered, err := t.RecoverOrderSigner(order, signature)
	if err != nil {
		return false, err
	}
	return recovered == order.Seller, nil
}

// OrderToJSON renders the eth_signTypedData_v4 payload wallets expect.
func (t *TypedSigner) OrderToJSON(order *Order712) (string, error) {
	payload := map[string]interface{}{
		"types":       orderTypes,
		"primaryType": "Order",
		"domain": map[string]interface{}{
			"name":              t.domain.Name,
			"version":           t.domain.Version,
			"chainId":           t.domain.ChainID.String(),
			"verifyingContract": t.domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"seller":        order.Seller.Hex(),
			"price":         order.Price.String(),
			"assetContract": order.AssetContract.Hex(),
			"tokenId":       order.TokenID.String(),
			"expiration":    order.Expiration.String(),
			"taker":         order.Taker.Hex(),
			"nonce":         order.Nonce.String(),
		},
	}

	jsonBytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}
