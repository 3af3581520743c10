package asset

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Minimal ERC-721 + ERC-165 surface the engine consumes.
const erc721ABI = `[
  {"name":"supportsInterface","type":"function","stateMutability":"view","inputs":[{"name":"interfaceId","type":"bytes4"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"name":"getApproved","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"name":"isApprovedForAll","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"transferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

// EthRegistry adapts live ERC-721 contracts over an Ethereum RPC endpoint.
// Transfers are sent from the engine's operator key, which sellers approve
// on-chain; the call blocks until the transaction is mined so settlement
// failures surface synchronously.
type EthRegistry struct {
	client  *ethclient.Client
	parsed  abi.ABI
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

func NewEthRegistry(client *ethclient.Client, key *ecdsa.PrivateKey, chainID *big.Int) (*EthRegistry, error) {
	parsed, err := abi.JSON(strings.NewReader(erc721ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc721 abi: %w", err)
	}
	return &EthRegistry{client: client, parsed: parsed, key: key, chainID: chainID}, nil
}

func (r *EthRegistry) bound(contract common.Address) *bind.BoundContract {
	return bind.NewBoundContract(contract, r.parsed, r.client, r.client, r.client)
}

func (r *EthRegistry) Supports721(ctx context.Context, contract common.Address) (bool, error) {
	var out []interface{}
	err := r.bound(contract).Call(&bind.CallOpts{Context: ctx}, &out, "supportsInterface", ERC721InterfaceID)
	if err != nil {
		// Contracts without ERC-165 revert here; that is a capability
		// failure, not an RPC error.
		return false, nil
	}
	ok, _ := out[0].(bool)
	return ok, nil
}

func (r *EthRegistry) OwnerOf(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := r.bound(contract).Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", tokenID); err != nil {
		return common.Address{}, fmt.Errorf("ownerOf(%s): %w", tokenID, err)
	}
	return out[0].(common.Address), nil
}

func (r *EthRegistry) GetApproved(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := r.bound(contract).Call(&bind.CallOpts{Context: ctx}, &out, "getApproved", tokenID); err != nil {
		return common.Address{}, fmt.Errorf("getApproved(%s): %w", tokenID, err)
	}
	return out[0].(common.Address), nil
}

func (r *EthRegistry) IsApprovedForAll(ctx context.Context, contract common.Address, owner, operator common.Address) (bool, error) {
	var out []interface{}
	if err := r.bound(contract).Call(&bind.CallOpts{Context: ctx}, &out, "isApprovedForAll", owner, operator); err != nil {
		return false, fmt.Errorf("isApprovedForAll: %w", err)
	}
	return out[0].(bool), nil
}

func (r *EthRegistry) TransferFrom(ctx context.Context, contract common.Address, from, to common.Address, tokenID *big.Int) error {
	if r.key == nil {
		return fmt.Errorf("registry has no transactor key")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(r.key, r.chainID)
	if err != nil {
		return fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := r.bound(contract).Transact(opts, "transferFrom", from, to, tokenID)
	if err != nil {
		return fmt.Errorf("transferFrom(%s): %w", tokenID, err)
	}
	receipt, err := bind.WaitMined(ctx, r.client, tx)
	if err != nil {
		return fmt.Errorf("transferFrom(%s) wait: %w", tokenID, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transferFrom(%s) reverted", tokenID)
	}
	return nil
}

var _ Registry = (*EthRegistry)(nil)
