package domain

import "context"

// TransportCommands is the command sink toward the trading network.
// The session/transport layer itself (login, confirmations) lives behind
// this interface so the decision and reconciliation logic can be tested
// without a live network session.
type TransportCommands interface {
	// Accept accepts an incoming offer.
	Accept(ctx context.Context, offerID string) error

	// Decline declines an incoming offer.
	Decline(ctx context.Context, offerID string) error

	// Send submits a bot-initiated offer and returns the assigned offer id.
	Send(ctx context.Context, offer Offer) (string, error)
}

// PriceOracle returns a best-effort unit price for an item key.
// The boolean is false when the price is unknown; callers must treat
// unknown or non-positive prices as a decline condition.
type PriceOracle interface {
	GetUnitPrice(ctx context.Context, itemKey string) (float64, bool, error)
}

// LedgerStore is the relational ledger behind the reconciliation engine.
// Every operation is atomic; the Complete* operations are single units of
// work whose status flip is guarded on the pending state so duplicate
// deliveries cannot double-apply.
type LedgerStore interface {
	// FindTransactionByOfferID returns the transaction for an external
	// offer id, or a NotFoundError.
	FindTransactionByOfferID(ctx context.Context, tradeOfferID string) (*Transaction, error)

	// InsertPendingTransaction records a new pending transaction. Returns
	// a ConflictError if a transaction for the same trade offer exists.
	InsertPendingTransaction(ctx context.Context, tx *Transaction) error

	// CompleteBuyTransaction flips the transaction to completed, credits
	// the user's balance by finalAmount and inserts the inventory row, all
	// in one unit of work. Returns a ConflictError if the transaction is
	// no longer pending.
	CompleteBuyTransaction(ctx context.Context, transactionID string, finalAmount float64, asset AssetInfo) error

	// CompleteSellTransaction flips the transaction to completed and
	// removes the inventory row, in one unit of work. Returns a
	// ConflictError if the transaction is no longer pending.
	CompleteSellTransaction(ctx context.Context, transactionID string) error

	// MarkTransactionFailed flips a pending transaction to failed.
	MarkTransactionFailed(ctx context.Context, transactionID string) error

	// FindUserByExternalID returns the user owning the given platform
	// account id, or a NotFoundError.
	FindUserByExternalID(ctx context.Context, externalID string) (*User, error)
}

// Cache is a bounded key/value cache with per-entry TTL, injected into the
// price oracle so lookups can be memoized and test doubles substituted.
type Cache interface {
	Get(key string) (float64, bool)
	Set(key string, value float64)
	Delete(key string)
	Len() int
}
