package market

import "errors"

// Validation failures: surfaced immediately, no state change, caller must
// correct and resubmit. Settlement-time staleness is deliberately NOT here;
// it is the Refunded outcome, not an error.
var (
	// Listing
	ErrNotWhitelisted         = errors.New("asset contract is not whitelisted")
	ErrAlreadyListed          = errors.New("order already listed")
	ErrOrderExpired           = errors.New("order expiration has passed")
	ErrSignerMustBeSeller     = errors.New("signature does not recover to seller")
	ErrZeroAddress            = errors.New("zero address")
	ErrOrderPriceTooLow       = errors.New("order price below minimum")
	ErrNonceIncorrect         = errors.New("order nonce does not match seller counter")
	ErrNotERC721              = errors.New("contract does not implement ERC-721")
	ErrMarketplaceNotApproved = errors.New("marketplace not approved to transfer asset")
	ErrNotTokenOwner          = errors.New("signer does not own the asset")
	ErrInvalidSignature       = errors.New("invalid signature")

	// Fulfillment
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderPriceWrong    = errors.New("payment does not match order price")
	ErrInvalidTaker       = errors.New("order restricted to a different taker")
	ErrInsufficientFunds  = errors.New("insufficient deposited balance")
	ErrDuplicateOrderHash = errors.New("duplicate order hash in batch")

	// Removal
	ErrNotListingCreator = errors.New("only the listing creator may remove it")
	ErrInvalidBatchSize  = errors.New("invalid batch size")

	// Ledger
	ErrWithdrawFailed = errors.New("withdrawal transfer failed")

	// Admin
	ErrPaused           = errors.New("engine is paused")
	ErrNotAdmin         = errors.New("caller is not the admin")
	ErrStatusAlreadySet = errors.New("status already set to that value")

	// Concurrency
	ErrReentrantCall = errors.New("reentrant call rejected")
)
