// Package asset abstracts the external registries that hold the traded
// assets. The engine never owns an asset: it reads ownership and approval
// state here and, on settlement, instructs the registry to transfer.
package asset

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC721InterfaceID is the ERC-165 identifier probed before listing.
var ERC721InterfaceID = [4]byte{0x80, 0xac, 0x58, 0xcd}

// Registry answers ownership and approval questions for assets held by a
// contract, and performs the actual transfer on settlement.
//
// TransferFrom must fail synchronously when its preconditions (ownership,
// approval) no longer hold; the engine handles the failure inline.
type Registry interface {
	// Supports721 is the capability probe: does the contract expose the
	// expected asset-ownership interface? A false or failed probe is a
	// non-retryable listing failure.
	Supports721(ctx context.Context, contract common.Address) (bool, error)

	OwnerOf(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error)
	GetApproved(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error)
	IsApprovedForAll(ctx context.Context, contract common.Address, owner, operator common.Address) (bool, error)
	TransferFrom(ctx context.Context, contract common.Address, from, to common.Address, tokenID *big.Int) error
}
