// Package domain provides core domain models, interfaces and the error
// taxonomy shared across modules.
package domain

import (
	"math"
	"time"
)

// TradeIntent is the result of classifying an incoming offer's item sets.
type TradeIntent string

const (
	// IntentBuy means the counterpart gives the bot exactly one item.
	IntentBuy TradeIntent = "buy"
	// IntentSell means the counterpart takes exactly one item from the bot.
	IntentSell TradeIntent = "sell"
	// IntentUnknown covers every other offer shape and always declines.
	IntentUnknown TradeIntent = "unknown"
)

// TransactionKind is the direction of a recorded trade.
type TransactionKind string

const (
	KindBuy  TransactionKind = "buy"
	KindSell TransactionKind = "sell"
)

// TransactionStatus tracks a transaction through its lifecycle.
// Pending transitions to Completed or Failed exactly once; both are terminal.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// OfferState mirrors the trading network's offer lifecycle states.
type OfferState string

const (
	OfferStateActive         OfferState = "active"
	OfferStateAccepted       OfferState = "accepted"
	OfferStateDeclined       OfferState = "declined"
	OfferStateCanceled       OfferState = "canceled"
	OfferStateExpired        OfferState = "expired"
	OfferStateInEscrow       OfferState = "in_escrow"
	OfferStateInvalidItems   OfferState = "invalid_items"
	OfferStateCountered      OfferState = "countered"
	OfferStateNeedsMobileAck OfferState = "needs_confirmation"
)

// IsTerminalCompleting reports whether the state completes an offer for
// reconciliation purposes. Only an accepted offer moves items and money.
func (s OfferState) IsTerminalCompleting() bool {
	return s == OfferStateAccepted
}

// OfferItem is one item inside a trade offer.
type OfferItem struct {
	AssetID        string `json:"asset_id"`
	MarketHashName string `json:"market_hash_name"`
	AppID          int    `json:"app_id"`
	ContextID      string `json:"context_id"`
}

// Offer is an incoming or outgoing bilateral trade proposal.
// ItemsGiven are items the bot would give away, ItemsReceived are items the
// bot would receive.
type Offer struct {
	ID            string      `json:"id"`
	CounterpartID string      `json:"counterpart_id"`
	ItemsGiven    []OfferItem `json:"items_given"`
	ItemsReceived []OfferItem `json:"items_received"`
	Message       string      `json:"message,omitempty"`
	EscrowDays    int         `json:"escrow_days,omitempty"`
}

// DeclineReason explains why the policy engine rejected an offer.
type DeclineReason string

const (
	ReasonUnsupportedShape    DeclineReason = "unsupported_shape"
	ReasonItemInfoUnavailable DeclineReason = "item_info_unavailable"
	ReasonPriceUnavailable    DeclineReason = "price_unavailable"
	ReasonUserNotEligible     DeclineReason = "user_not_eligible"
	ReasonNotOurOffer         DeclineReason = "not_our_offer"
	ReasonEscrowTooLong       DeclineReason = "escrow_too_long"
	ReasonDependencyFailure   DeclineReason = "dependency_failure"
)

// Verdict is the policy engine's decision on an incoming offer.
type Verdict struct {
	Accept bool          `json:"accept"`
	Reason DeclineReason `json:"reason,omitempty"`
}

// AcceptVerdict returns an accepting verdict.
func AcceptVerdict() Verdict {
	return Verdict{Accept: true}
}

// DeclineVerdict returns a declining verdict with the given reason.
func DeclineVerdict(reason DeclineReason) Verdict {
	return Verdict{Accept: false, Reason: reason}
}

// Transaction identifies one trade-offer lifecycle in the ledger.
// TradeOfferID is unique: at most one transaction per external offer.
// FinalAmount = Price - Commission is fixed at creation and never
// recomputed during reconciliation.
type Transaction struct {
	ID           string            `json:"id"`
	TradeOfferID string            `json:"trade_offer_id"`
	UserID       int64             `json:"user_id"`
	Kind         TransactionKind   `json:"kind"`
	Status       TransactionStatus `json:"status"`
	ItemName     string            `json:"item_name"`
	ItemAssetID  string            `json:"item_asset_id"`
	Price        float64           `json:"price"`
	Commission   float64           `json:"commission"`
	FinalAmount  float64           `json:"final_amount"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// User is a marketplace account the bot trades with.
type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Balance    float64   `json:"balance"`
	IsActive   bool      `json:"is_active"`
	TradeURL   string    `json:"trade_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BotInventoryItem is an item held by the bot, created when a buy
// transaction completes and deleted when the matching sell completes.
type BotInventoryItem struct {
	ID                  int64     `json:"id"`
	AssetID             string    `json:"asset_id"`
	ItemName            string    `json:"item_name"`
	AppID               int       `json:"app_id"`
	ContextID           string    `json:"context_id"`
	Price               float64   `json:"price"`
	SourceTransactionID string    `json:"source_transaction_id"`
	AcquiredAt          time.Time `json:"acquired_at"`
}

// AssetInfo carries the item details needed when completing a buy.
type AssetInfo struct {
	AssetID   string  `json:"asset_id"`
	ItemName  string  `json:"item_name"`
	AppID     int     `json:"app_id"`
	ContextID string  `json:"context_id"`
	Price     float64 `json:"price"`
}

// CatalogItem is a bot-owned listing offered for sale on the marketplace.
type CatalogItem struct {
	ID             int64     `json:"id"`
	AssetID        string    `json:"asset_id"`
	MarketHashName string    `json:"market_hash_name"`
	Game           string    `json:"game"`
	Exterior       string    `json:"exterior,omitempty"`
	Price          float64   `json:"price"`
	IsListed       bool      `json:"is_listed"`
	IsAvailable    bool      `json:"is_available"`
	CreatedAt      time.Time `json:"created_at"`
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}
