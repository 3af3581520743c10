package market

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/joonhyuk-dev/curio/params"
	"github.com/joonhyuk-dev/curio/pkg/asset"
	xcrypto "github.com/joonhyuk-dev/curio/pkg/crypto"
	"github.com/joonhyuk-dev/curio/pkg/util"
)

const bpsDenominator = 10_000

// Engine is the order validation and settlement state machine. It owns the
// order store, nonce table, listing index and ledger exclusively; asset
// ownership lives in the injected Registry and is only read (and, on
// settlement, instructed to transfer).
//
// Operations are externally serialized by the reentrancy guard: every
// state-mutating entry point holds the guard token for its full duration
// and fails nested re-entry with ErrReentrantCall. Own state is mutated
// before any external transfer is issued.
type Engine struct {
	cfg      params.Market
	typed    *xcrypto.TypedSigner
	registry asset.Registry
	rail     PaymentRail
	persist  Persister
	clock    util.Clock
	sink     Sink
	log      *zap.SugaredLogger

	guard reentrancyGuard

	mu        sync.RWMutex
	orders    map[common.Hash]*Order
	index     map[IndexKey]common.Hash
	nonces    map[common.Address]uint64
	ledger    *Ledger
	whitelist map[common.Address]bool
	paused    bool
}

type Option func(*Engine)

// WithRail routes outbound value transfers (claims, withdrawals) through
// rail instead of crediting the in-engine balance.
func WithRail(rail PaymentRail) Option { return func(e *Engine) { e.rail = rail } }

// WithPersister mirrors committed state into p.
func WithPersister(p Persister) Option { return func(e *Engine) { e.persist = p } }

// WithSink publishes committed events to s.
func WithSink(s Sink) Option { return func(e *Engine) { e.sink = s } }

// WithClock overrides wall time for expiration checks.
func WithClock(c util.Clock) Option { return func(e *Engine) { e.clock = c } }

func NewEngine(cfg params.Market, domain xcrypto.Domain, registry asset.Registry, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:       cfg,
		typed:     xcrypto.NewTypedSigner(domain),
		registry:  registry,
		clock:     util.RealClock{},
		log:       logger.Sugar().Named("engine"),
		orders:    make(map[common.Hash]*Order),
		index:     make(map[IndexKey]common.Hash),
		nonces:    make(map[common.Address]uint64),
		ledger:    NewLedger(),
		whitelist: make(map[common.Address]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rail == nil {
		e.rail = &creditRail{e: e}
	}
	return e
}

// LoadSnapshot replaces engine state with a persisted snapshot. Call once
// at startup, before the engine is exposed to callers.
func (e *Engine) LoadSnapshot(snap *Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if snap.Orders != nil {
		e.orders = snap.Orders
	}
	if snap.Index != nil {
		e.index = snap.Index
	}
	if snap.Nonces != nil {
		e.nonces = snap.Nonces
	}
	if snap.Balances != nil {
		e.ledger.balances = snap.Balances
	}
	if snap.Proceeds != nil {
		e.ledger.proceeds = snap.Proceeds
	}
	if snap.Whitelist != nil {
		e.whitelist = snap.Whitelist
	}
	e.paused = snap.Paused
}

// creditRail is the default accrue-then-claim rail: "transferring out"
// credits the recipient's spendable in-engine balance. It cannot fail.
type creditRail struct{ e *Engine }

func (r *creditRail) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	r.e.mu.Lock()
	r.e.ledger.Credit(to, amount)
	r.e.mu.Unlock()
	r.e.persistBalance(to)
	return nil
}

// ==============================
// Listing
// ==============================

// AddOrder validates an order and its seller signature and stores the
// listing. First failure wins; a failure at any step leaves no partial
// state. Returns the order digest, which is the listing's identity.
func (e *Engine) AddOrder(ctx context.Context, order *Order, sig []byte) (common.Hash, error) {
	if err := e.guard.enter(); err != nil {
		return common.Hash{}, err
	}
	defer e.guard.exit()
	if e.Paused() {
		return common.Hash{}, ErrPaused
	}
	if order == nil || order.Price == nil || order.TokenID == nil {
		return common.Hash{}, fmt.Errorf("malformed order: missing price or tokenId")
	}

	hash, err := e.typed.HashOrder(order.Typed())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash order: %w", err)
	}
	ik := indexKey(order.AssetContract, order.TokenID)

	e.mu.RLock()
	whitelisted := e.whitelist[order.AssetContract]
	_, indexTaken := e.index[ik]
	_, digestTaken := e.orders[hash]
	nonce := e.nonces[order.Seller]
	e.mu.RUnlock()

	if e.cfg.WhitelistEnabled && !whitelisted {
		return common.Hash{}, ErrNotWhitelisted
	}
	if indexTaken {
		return common.Hash{}, ErrAlreadyListed
	}
	if order.Expiration != 0 && order.Expiration <= e.clock.Now().Unix() {
		return common.Hash{}, ErrOrderExpired
	}

	signer, err := e.typed.RecoverOrderSigner(order.Typed(), sig)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer == (common.Address{}) {
		return common.Hash{}, ErrZeroAddress
	}
	if signer != order.Seller {
		return common.Hash{}, ErrSignerMustBeSeller
	}

	if order.Price.Cmp(e.cfg.MinOrderPrice) < 0 {
		return common.Hash{}, ErrOrderPriceTooLow
	}
	if digestTaken {
		return common.Hash{}, ErrAlreadyListed
	}
	if order.Nonce != nonce {
		return common.Hash{}, ErrNonceIncorrect
	}

	// Capability probe: non-retryable, the contract either is an ERC-721
	// or it never will be.
	is721, err := e.registry.Supports721(ctx, order.AssetContract)
	if err != nil {
		return common.Hash{}, fmt.Errorf("capability probe: %w", err)
	}
	if !is721 {
		return common.Hash{}, ErrNotERC721
	}
	approved, err := e.approvedForToken(ctx, order)
	if err != nil {
		return common.Hash{}, fmt.Errorf("approval check: %w", err)
	}
	if !approved {
		return common.Hash{}, ErrMarketplaceNotApproved
	}
	owner, err := e.registry.OwnerOf(ctx, order.AssetContract, order.TokenID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("ownership check: %w", err)
	}
	if owner != signer {
		return common.Hash{}, ErrNotTokenOwner
	}

	stored := order.clone()
	e.mu.Lock()
	e.nonces[order.Seller] = nonce + 1
	e.orders[hash] = stored
	e.index[ik] = hash
	e.mu.Unlock()

	e.persistOrder(hash, stored, ik)
	e.persistNonce(order.Seller)
	e.publish(Event{Type: EventOrderListed, Hash: hash, Order: stored, At: e.clock.Now()})
	e.log.Infow("order_listed",
		"hash", hash.Hex(),
		"seller", order.Seller.Hex(),
		"contract", order.AssetContract.Hex(),
		"tokenId", order.TokenID.String(),
		"price", order.Price.String(),
	)
	return hash, nil
}

// approvedForToken reports whether the engine's operator identity may move
// the asset: direct per-token approval or blanket operator approval.
func (e *Engine) approvedForToken(ctx context.Context, order *Order) (bool, error) {
	direct, err := e.registry.GetApproved(ctx, order.AssetContract, order.TokenID)
	if err != nil {
		return false, err
	}
	if direct == e.cfg.Operator {
		return true, nil
	}
	return e.registry.IsApprovedForAll(ctx, order.AssetContract, order.Seller, e.cfg.Operator)
}

// ==============================
// Settlement
// ==============================

// FulfillOrder attempts to settle a listing. Payment must exactly equal
// the order price and is debited from the taker's deposited balance. A
// stale order (expired, resold, or approval revoked since signing) is not
// an error: the payment is returned in full and the listing removed.
func (e *Engine) FulfillOrder(ctx context.Context, taker common.Address, hash common.Hash, payment *big.Int) (Outcome, error) {
	if err := e.guard.enter(); err != nil {
		return 0, err
	}
	defer e.guard.exit()
	if e.Paused() {
		return 0, ErrPaused
	}

	e.mu.RLock()
	order, ok := e.orders[hash]
	e.mu.RUnlock()
	if !ok {
		return 0, ErrOrderNotFound
	}
	if order.Taker != (common.Address{}) && taker != order.Taker {
		return 0, ErrInvalidTaker
	}
	if payment == nil || payment.Cmp(order.Price) != 0 {
		return 0, ErrOrderPriceWrong
	}

	e.mu.Lock()
	if err := e.ledger.Debit(taker, payment); err != nil {
		e.mu.Unlock()
		return 0, err
	}
	e.mu.Unlock()

	if e.isStale(ctx, order) {
		e.removeListing(hash, order)
		e.mu.Lock()
		e.ledger.Credit(taker, payment)
		e.mu.Unlock()
		e.persistBalance(taker)
		e.publish(Event{Type: EventOrderRemoved, Hash: hash, Order: order, Stale: true, At: e.clock.Now()})
		e.log.Infow("order_refunded", "hash", hash.Hex(), "taker", taker.Hex(), "refund", payment.String())
		return OutcomeRefunded, nil
	}

	// Delete before the external transfer so a reentrant callback cannot
	// fulfill the same digest twice.
	e.removeListing(hash, order)

	if err := e.registry.TransferFrom(ctx, order.AssetContract, order.Seller, taker, order.TokenID); err != nil {
		// Drift between the staleness check and the transfer. Restore the
		// listing and the taker's funds; nothing has moved.
		ik := indexKey(order.AssetContract, order.TokenID)
		e.mu.Lock()
		e.orders[hash] = order
		e.index[ik] = hash
		e.ledger.Credit(taker, payment)
		e.mu.Unlock()
		e.persistOrder(hash, order, ik)
		e.persistBalance(taker)
		return 0, fmt.Errorf("asset transfer: %w", err)
	}

	fee := e.feeFor(order.Price)
	sellerCut := new(big.Int).Sub(order.Price, fee)
	e.mu.Lock()
	e.ledger.CreditProceeds(e.cfg.Operator, fee)
	e.ledger.CreditProceeds(order.Seller, sellerCut)
	e.mu.Unlock()
	e.persistBalance(taker)
	e.persistProceeds(e.cfg.Operator)
	e.persistProceeds(order.Seller)

	e.publish(Event{Type: EventOrderFulfilled, Hash: hash, Order: order, Taker: taker, Fee: fee, At: e.clock.Now()})
	e.log.Infow("order_fulfilled",
		"hash", hash.Hex(),
		"seller", order.Seller.Hex(),
		"taker", taker.Hex(),
		"price", order.Price.String(),
		"fee", fee.String(),
	)
	return OutcomeSettled, nil
}

// BatchFulfill settles several listings under one aggregate payment equal
// to the sum of the still-listed orders' prices. Each element carries its
// own stale-check and trade-or-refund outcome; refunds are returned to the
// taker in a single credit at the end. One element's staleness never
// aborts the others.
func (e *Engine) BatchFulfill(ctx context.Context, taker common.Address, hashes []common.Hash, payment *big.Int) ([]BatchResult, error) {
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()
	if e.Paused() {
		return nil, ErrPaused
	}
	if len(hashes) == 0 || len(hashes) > e.cfg.MaxBatchSize {
		return nil, ErrInvalidBatchSize
	}
	seen := make(map[common.Hash]bool, len(hashes))
	for _, h := range hashes {
		if seen[h] {
			return nil, ErrDuplicateOrderHash
		}
		seen[h] = true
	}

	// Aggregate payment covers currently listed elements only; unknown
	// digests contribute nothing and report OrderNotFound individually.
	total := new(big.Int)
	e.mu.RLock()
	for _, h := range hashes {
		if order, ok := e.orders[h]; ok {
			total.Add(total, order.Price)
		}
	}
	e.mu.RUnlock()
	if payment == nil || payment.Cmp(total) != 0 {
		return nil, ErrOrderPriceWrong
	}

	e.mu.Lock()
	if err := e.ledger.Debit(taker, total); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	refund := new(big.Int)
	results := make([]BatchResult, 0, len(hashes))
	for _, h := range hashes {
		res := e.fulfillElement(ctx, taker, h, refund)
		results = append(results, res)
	}

	if refund.Sign() > 0 {
		e.mu.Lock()
		e.ledger.Credit(taker, refund)
		e.mu.Unlock()
	}
	e.persistBalance(taker)
	return results, nil
}

// fulfillElement settles one batch element. Shortfalls (stale, restricted,
// transfer failure) accumulate into refund instead of paying out.
func (e *Engine) fulfillElement(ctx context.Context, taker common.Address, hash common.Hash, refund *big.Int) BatchResult {
	e.mu.RLock()
	order, ok := e.orders[hash]
	e.mu.RUnlock()
	if !ok {
		return BatchResult{Hash: hash, Err: ErrOrderNotFound}
	}
	if order.Taker != (common.Address{}) && taker != order.Taker {
		refund.Add(refund, order.Price)
		return BatchResult{Hash: hash, Err: ErrInvalidTaker}
	}

	if e.isStale(ctx, order) {
		e.removeListing(hash, order)
		refund.Add(refund, order.Price)
		e.publish(Event{Type: EventOrderRemoved, Hash: hash, Order: order, Stale: true, At: e.clock.Now()})
		e.log.Infow("order_refunded", "hash", hash.Hex(), "taker", taker.Hex(), "refund", order.Price.String())
		return BatchResult{Hash: hash, Outcome: OutcomeRefunded}
	}

	e.removeListing(hash, order)
	if err := e.registry.TransferFrom(ctx, order.AssetContract, order.Seller, taker, order.TokenID); err != nil {
		ik := indexKey(order.AssetContract, order.TokenID)
		e.mu.Lock()
		e.orders[hash] = order
		e.index[ik] = hash
		e.mu.Unlock()
		e.persistOrder(hash, order, ik)
		refund.Add(refund, order.Price)
		return BatchResult{Hash: hash, Err: fmt.Errorf("asset transfer: %w", err)}
	}

	fee := e.feeFor(order.Price)
	sellerCut := new(big.Int).Sub(order.Price, fee)
	e.mu.Lock()
	e.ledger.CreditProceeds(e.cfg.Operator, fee)
	e.ledger.CreditProceeds(order.Seller, sellerCut)
	e.mu.Unlock()
	e.persistProceeds(e.cfg.Operator)
	e.persistProceeds(order.Seller)

	e.publish(Event{Type: EventOrderFulfilled, Hash: hash, Order: order, Taker: taker, Fee: fee, At: e.clock.Now()})
	e.log.Infow("order_fulfilled", "hash", hash.Hex(), "taker", taker.Hex(), "price", order.Price.String(), "fee", fee.String())
	return BatchResult{Hash: hash, Outcome: OutcomeSettled}
}

// isStale re-validates a listing against live registry state. Any drift —
// expiration passed, asset resold, approval revoked, or the registry no
// longer answering for the token — makes the order stale.
func (e *Engine) isStale(ctx context.Context, order *Order) bool {
	if order.Expiration != 0 && order.Expiration <= e.clock.Now().Unix() {
		return true
	}
	owner, err := e.registry.OwnerOf(ctx, order.AssetContract, order.TokenID)
	if err != nil || owner != order.Seller {
		return true
	}
	approved, err := e.approvedForToken(ctx, order)
	return err != nil || !approved
}

func (e *Engine) feeFor(price *big.Int) *big.Int {
	fee := new(big.Int).Mul(price, big.NewInt(e.cfg.FeeBps))
	return fee.Div(fee, big.NewInt(bpsDenominator))
}

// removeListing deletes the order and its secondary index entry and
// mirrors the deletion to storage.
func (e *Engine) removeListing(hash common.Hash, order *Order) {
	ik := indexKey(order.AssetContract, order.TokenID)
	e.mu.Lock()
	delete(e.orders, hash)
	delete(e.index, ik)
	e.mu.Unlock()
	if e.persist != nil {
		if err := e.persist.DeleteOrder(hash); err != nil {
			e.log.Warnw("persist_delete_order_failed", "hash", hash.Hex(), "err", err)
		}
		if err := e.persist.DeleteIndex(ik); err != nil {
			e.log.Warnw("persist_delete_index_failed", "hash", hash.Hex(), "err", err)
		}
	}
}

// ==============================
// Removal
// ==============================

// RemoveOrder deletes a listing. Only the seller who created it may do so.
func (e *Engine) RemoveOrder(ctx context.Context, caller common.Address, hash common.Hash) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if e.Paused() {
		return ErrPaused
	}
	return e.removeOne(caller, hash)
}

// BatchRemove removes up to MaxBatchSize listings, reporting a result per
// element. One element's failure never touches the others' state.
func (e *Engine) BatchRemove(ctx context.Context, caller common.Address, hashes []common.Hash) ([]BatchResult, error) {
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()
	if e.Paused() {
		return nil, ErrPaused
	}
	if len(hashes) == 0 || len(hashes) > e.cfg.MaxBatchSize {
		return nil, ErrInvalidBatchSize
	}
	results := make([]BatchResult, 0, len(hashes))
	for _, h := range hashes {
		results = append(results, BatchResult{Hash: h, Err: e.removeOne(caller, h)})
	}
	return results, nil
}

func (e *Engine) removeOne(caller common.Address, hash common.Hash) error {
	e.mu.RLock()
	order, ok := e.orders[hash]
	e.mu.RUnlock()
	if !ok {
		return ErrOrderNotFound
	}
	if order.Seller != caller {
		return ErrNotListingCreator
	}
	e.removeListing(hash, order)
	e.publish(Event{Type: EventOrderRemoved, Hash: hash, Order: order, At: e.clock.Now()})
	e.log.Infow("order_removed", "hash", hash.Hex(), "seller", caller.Hex())
	return nil
}

// ==============================
// Ledger entry points
// ==============================

// Deposit credits addr's spendable balance. Deposits stay available while
// the engine is paused so funds are never trapped behind the flag.
func (e *Engine) Deposit(ctx context.Context, addr common.Address, amount *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("deposit must be positive")
	}
	e.mu.Lock()
	e.ledger.Credit(addr, amount)
	e.mu.Unlock()
	e.persistBalance(addr)
	return nil
}

// WithdrawDeposit moves spendable balance out through the payment rail,
// restoring it if the transfer fails.
func (e *Engine) WithdrawDeposit(ctx context.Context, addr common.Address, amount *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("withdrawal must be positive")
	}
	e.mu.Lock()
	if err := e.ledger.Debit(addr, amount); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	e.persistBalance(addr)

	if err := e.rail.Transfer(ctx, addr, amount); err != nil {
		e.mu.Lock()
		e.ledger.Credit(addr, amount)
		e.mu.Unlock()
		e.persistBalance(addr)
		return fmt.Errorf("%w: %v", ErrWithdrawFailed, err)
	}
	return nil
}

// ClaimProceeds pays out addr's accrued settlement proceeds. The balance
// is zeroed before the transfer attempt and restored on failure, so the
// ledger never disagrees with what was actually paid.
func (e *Engine) ClaimProceeds(ctx context.Context, addr common.Address) (*big.Int, error) {
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()

	e.mu.Lock()
	amount := e.ledger.TakeProceeds(addr)
	e.mu.Unlock()
	if amount.Sign() == 0 {
		return amount, nil
	}
	e.persistProceeds(addr)

	if err := e.rail.Transfer(ctx, addr, amount); err != nil {
		e.mu.Lock()
		e.ledger.RestoreProceeds(addr, amount)
		e.mu.Unlock()
		e.persistProceeds(addr)
		return nil, fmt.Errorf("%w: %v", ErrWithdrawFailed, err)
	}
	e.log.Infow("proceeds_claimed", "address", addr.Hex(), "amount", amount.String())
	return amount, nil
}

// ==============================
// Admin
// ==============================

// SetPaused toggles the pause flag gating listing, settlement and removal.
// Setting the current value is rejected so operator mistakes surface
// instead of silently no-opping.
func (e *Engine) SetPaused(caller common.Address, paused bool) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if caller != e.cfg.Admin {
		return ErrNotAdmin
	}
	e.mu.Lock()
	if e.paused == paused {
		e.mu.Unlock()
		return ErrStatusAlreadySet
	}
	e.paused = paused
	e.mu.Unlock()
	if e.persist != nil {
		if err := e.persist.PutPaused(paused); err != nil {
			e.log.Warnw("persist_paused_failed", "err", err)
		}
	}
	e.log.Infow("paused_set", "paused", paused)
	return nil
}

// SetWhitelistStatus allows or disallows an asset contract for listing.
func (e *Engine) SetWhitelistStatus(caller common.Address, contract common.Address, allowed bool) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if caller != e.cfg.Admin {
		return ErrNotAdmin
	}
	e.mu.Lock()
	if e.whitelist[contract] == allowed {
		e.mu.Unlock()
		return ErrStatusAlreadySet
	}
	if allowed {
		e.whitelist[contract] = true
	} else {
		delete(e.whitelist, contract)
	}
	e.mu.Unlock()
	if e.persist != nil {
		if err := e.persist.PutWhitelist(contract, allowed); err != nil {
			e.log.Warnw("persist_whitelist_failed", "contract", contract.Hex(), "err", err)
		}
	}
	e.log.Infow("whitelist_set", "contract", contract.Hex(), "allowed", allowed)
	return nil
}

// ==============================
// Read-only queries (never take the guard)
// ==============================

func (e *Engine) GetOrder(hash common.Hash) (*Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	order, ok := e.orders[hash]
	if !ok {
		return nil, false
	}
	return order.clone(), true
}

// ListedDigest returns the active listing for a physical asset, if any.
func (e *Engine) ListedDigest(contract common.Address, tokenID *big.Int) (common.Hash, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hash, ok := e.index[indexKey(contract, tokenID)]
	return hash, ok
}

// Orders returns a snapshot of all active listings.
func (e *Engine) Orders() map[common.Hash]*Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[common.Hash]*Order, len(e.orders))
	for h, o := range e.orders {
		out[h] = o.clone()
	}
	return out
}

func (e *Engine) NonceOf(seller common.Address) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nonces[seller]
}

func (e *Engine) BalanceOf(addr common.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.BalanceOf(addr)
}

func (e *Engine) ProceedsOf(addr common.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.ProceedsOf(addr)
}

func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

func (e *Engine) Whitelisted(contract common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.whitelist[contract]
}

// OrderHash exposes the digest computation for callers that want to
// pre-compute a listing's identity.
func (e *Engine) OrderHash(order *Order) (common.Hash, error) {
	return e.typed.HashOrder(order.Typed())
}

// ==============================
// Persistence + event helpers
// ==============================

func (e *Engine) persistOrder(hash common.Hash, order *Order, ik IndexKey) {
	if e.persist == nil {
		return
	}
	if err := e.persist.PutOrder(hash, order); err != nil {
		e.log.Warnw("persist_order_failed", "hash", hash.Hex(), "err", err)
	}
	if err := e.persist.PutIndex(ik, hash); err != nil {
		e.log.Warnw("persist_index_failed", "hash", hash.Hex(), "err", err)
	}
}

func (e *Engine) persistNonce(seller common.Address) {
	if e.persist == nil {
		return
	}
	e.mu.RLock()
	nonce := e.nonces[seller]
	e.mu.RUnlock()
	if err := e.persist.PutNonce(seller, nonce); err != nil {
		e.log.Warnw("persist_nonce_failed", "seller", seller.Hex(), "err", err)
	}
}

func (e *Engine) persistBalance(addr common.Address) {
	if e.persist == nil {
		return
	}
	e.mu.RLock()
	amount := e.ledger.BalanceOf(addr)
	e.mu.RUnlock()
	if err := e.persist.PutBalance(addr, amount); err != nil {
		e.log.Warnw("persist_balance_failed", "address", addr.Hex(), "err", err)
	}
}

func (e *Engine) persistProceeds(addr common.Address) {
	if e.persist == nil {
		return
	}
	e.mu.RLock()
	amount := e.ledger.ProceedsOf(addr)
	e.mu.RUnlock()
	if err := e.persist.PutProceeds(addr, amount); err != nil {
		e.log.Warnw("persist_proceeds_failed", "address", addr.Hex(), "err", err)
	}
}

func (e *Engine) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if e.sink != nil {
		e.sink.Publish(ev)
	}
}
