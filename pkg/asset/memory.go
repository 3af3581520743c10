package asset

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryRegistry is an in-process asset registry for local devnets and
// tests. Contracts are declared with Deploy; tokens with Mint. Approval
// semantics mirror ERC-721: one approved address per token plus blanket
// operator approvals per owner.
type MemoryRegistry struct {
	mu sync.RWMutex

	contracts map[common.Address]bool
	owners    map[tokenKey]common.Address
	approved  map[tokenKey]common.Address
	operators map[operatorKey]bool

	// TransferHook, when set, runs inside TransferFrom after ownership has
	// moved. Tests use it to simulate reentrant registry callbacks.
	TransferHook func(contract common.Address, from, to common.Address, tokenID *big.Int)
}

type tokenKey struct {
	contract common.Address
	tokenID  string
}

type operatorKey struct {
	contract common.Address
	owner    common.Address
	operator common.Address
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		contracts: make(map[common.Address]bool),
		owners:    make(map[tokenKey]common.Address),
		approved:  make(map[tokenKey]common.Address),
		operators: make(map[operatorKey]bool),
	}
}

func key(contract common.Address, tokenID *big.Int) tokenKey {
	return tokenKey{contract: contract, tokenID: tokenID.String()}
}

// Deploy registers a contract address as a live ERC-721 collection.
func (r *MemoryRegistry) Deploy(contract common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[contract] = true
}

// Mint assigns a fresh token to owner.
func (r *MemoryRegistry) Mint(contract common.Address, tokenID *big.Int, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.contracts[contract] {
		return fmt.Errorf("unknown contract %s", contract.Hex())
	}
	k := key(contract, tokenID)
	if _, ok := r.owners[k]; ok {
		return fmt.Errorf("token %s already minted", tokenID)
	}
	r.owners[k] = owner
	return nil
}

// Approve sets the single approved address for a token.
func (r *MemoryRegistry) Approve(contract common.Address, tokenID *big.Int, operator common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approved[key(contract, tokenID)] = operator
}

// SetApprovalForAll grants or revokes a blanket operator approval.
func (r *MemoryRegistry) SetApprovalForAll(contract common.Address, owner, operator common.Address, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.operators[operatorKey{contract, owner, operator}] = true
	} else {
		delete(r.operators, operatorKey{contract, owner, operator})
	}
}

func (r *MemoryRegistry) Supports721(ctx context.Context, contract common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contracts[contract], nil
}

func (r *MemoryRegistry) OwnerOf(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[key(contract, tokenID)]
	if !ok {
		return common.Address{}, fmt.Errorf("token %s not minted on %s", tokenID, contract.Hex())
	}
	return owner, nil
}

func (r *MemoryRegistry) GetApproved(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approved[key(contract, tokenID)], nil
}

func (r *MemoryRegistry) IsApprovedForAll(ctx context.Context, contract common.Address, owner, operator common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operators[operatorKey{contract, owner, operator}], nil
}

// TransferFrom moves a token, enforcing ERC-721 preconditions: from must
// own the token. Approval enforcement against the calling operator is the
// engine's job; the registry only validates ownership.
func (r *MemoryRegistry) TransferFrom(ctx context.Context, contract common.Address, from, to common.Address, tokenID *big.Int) error {
	r.mu.Lock()
	k := key(contract, tokenID)
	owner, ok := r.owners[k]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("token %s not minted on %s", tokenID, contract.Hex())
	}
	if owner != from {
		r.mu.Unlock()
		return fmt.Errorf("transfer from %s: token owned by %s", from.Hex(), owner.Hex())
	}
	r.owners[k] = to
	delete(r.approved, k) // per-token approval clears on transfer
	hook := r.TransferHook
	r.mu.Unlock()

	if hook != nil {
		hook(contract, from, to, tokenID)
	}
	return nil
}

var _ Registry = (*MemoryRegistry)(nil)
