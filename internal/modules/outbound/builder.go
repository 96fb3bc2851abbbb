// Package outbound builds and sends bot-initiated trade offers. Every
// outbound offer is pre-registered as a pending transaction before it goes
// out, so a crash between send and acknowledgement can never orphan money
// or an item.
package outbound

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/events"
)

// SellLedger is the slice of the ledger the builder writes to.
type SellLedger interface {
	FindUserByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	InsertPendingTransaction(ctx context.Context, tx *domain.Transaction) error
	AssignTradeOfferID(ctx context.Context, transactionID, tradeOfferID string) error
	MarkTransactionFailed(ctx context.Context, transactionID string) error
}

// ListingRegistry is the catalog surface the builder needs: reserving a
// listing before sending and releasing it when the send fails.
type ListingRegistry interface {
	GetByAssetID(ctx context.Context, assetID string) (*domain.CatalogItem, error)
	ReserveListing(ctx context.Context, assetID string) error
	ReopenListing(ctx context.Context, assetID string) error
}

// Builder creates outbound offers.
type Builder struct {
	ledger         SellLedger
	catalog        ListingRegistry
	transport      domain.TransportCommands
	eventManager   *events.Manager
	commissionRate float64
	log            zerolog.Logger
}

// NewBuilder wires an outbound offer builder. eventManager may be nil.
func NewBuilder(ledger SellLedger, catalog ListingRegistry, transport domain.TransportCommands, eventManager *events.Manager, commissionRate float64, log zerolog.Logger) *Builder {
	return &Builder{
		ledger:         ledger,
		catalog:        catalog,
		transport:      transport,
		eventManager:   eventManager,
		commissionRate: commissionRate,
		log:            log.With().Str("module", "outbound").Logger(),
	}
}

// BuildSellOffer sends one catalog listing to a buyer. The listing is
// reserved and a pending sell transaction recorded before the offer leaves;
// a send failure fails the transaction and reopens the listing.
func (b *Builder) BuildSellOffer(ctx context.Context, buyerExternalID, assetID string) (*domain.Transaction, error) {
	buyer, err := b.ledger.FindUserByExternalID(ctx, buyerExternalID)
	if err != nil {
		return nil, err
	}
	if !buyer.IsActive {
		return nil, domain.NewValidationError("user", "account is not active")
	}

	listing, err := b.catalog.GetByAssetID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if err := b.catalog.ReserveListing(ctx, assetID); err != nil {
		return nil, err
	}

	commission := listing.Price * b.commissionRate
	tx := &domain.Transaction{
		ID:           uuid.NewString(),
		UserID:       buyer.ID,
		Kind:         domain.KindSell,
		Status:       domain.StatusPending,
		ItemName:     listing.MarketHashName,
		ItemAssetID:  assetID,
		Price:        listing.Price,
		Commission:   commission,
		FinalAmount:  listing.Price - commission,
	}
	// The transport assigns the real offer id on send; until then the row
	// holds a unique placeholder.
	tx.TradeOfferID = "outbound:" + tx.ID

	if err := b.ledger.InsertPendingTransaction(ctx, tx); err != nil {
		b.release(ctx, assetID)
		return nil, fmt.Errorf("failed to pre-register sell: %w", err)
	}

	offer := domain.Offer{
		CounterpartID: buyer.ExternalID,
		ItemsGiven: []domain.OfferItem{{
			AssetID:        assetID,
			MarketHashName: listing.MarketHashName,
			AppID:          730,
			ContextID:      "2",
		}},
		Message: fmt.Sprintf("Your purchase: %s", listing.MarketHashName),
	}

	offerID, err := b.transport.Send(ctx, offer)
	if err != nil {
		b.failSend(ctx, tx, assetID, err)
		return nil, fmt.Errorf("failed to send sell offer: %w", err)
	}

	if err := b.ledger.AssignTradeOfferID(ctx, tx.ID, offerID); err != nil {
		// The offer is in flight with no row pointing at it; surface
		// loudly, reconciliation for it will no-op until repaired.
		b.log.Error().Err(err).
			Str("transaction_id", tx.ID).
			Str("trade_offer_id", offerID).
			Msg("failed to bind sent offer to transaction")
		return nil, fmt.Errorf("failed to bind sent offer %s: %w", offerID, err)
	}
	tx.TradeOfferID = offerID

	b.log.Info().
		Str("trade_offer_id", offerID).
		Str("transaction_id", tx.ID).
		Str("item", listing.MarketHashName).
		Float64("price", listing.Price).
		Msg("sell offer sent")
	b.emitSent(tx)

	return tx, nil
}

// BuildBuyOffer offers to buy one item from a user at the given list price.
// Commission math matches the incoming-buy policy.
func (b *Builder) BuildBuyOffer(ctx context.Context, sellerExternalID string, item domain.OfferItem, listPrice float64) (*domain.Transaction, error) {
	if listPrice <= 0 {
		return nil, domain.NewValidationError("price", "must be positive")
	}
	if item.MarketHashName == "" {
		return nil, domain.NewValidationError("item", "market hash name is required")
	}

	seller, err := b.ledger.FindUserByExternalID(ctx, sellerExternalID)
	if err != nil {
		return nil, err
	}
	if !seller.IsActive {
		return nil, domain.NewValidationError("user", "account is not active")
	}

	price := domain.Round2(listPrice * (1 - b.commissionRate))
	commission := price * b.commissionRate
	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      seller.ID,
		Kind:        domain.KindBuy,
		Status:      domain.StatusPending,
		ItemName:    item.MarketHashName,
		ItemAssetID: item.AssetID,
		Price:       price,
		Commission:  commission,
		FinalAmount: price - commission,
	}
	tx.TradeOfferID = "outbound:" + tx.ID

	if err := b.ledger.InsertPendingTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to pre-register buy: %w", err)
	}

	offer := domain.Offer{
		CounterpartID: seller.ExternalID,
		ItemsReceived: []domain.OfferItem{item},
		Message:       fmt.Sprintf("Buying %s for %.2f", item.MarketHashName, tx.FinalAmount),
	}

	offerID, err := b.transport.Send(ctx, offer)
	if err != nil {
		b.failSend(ctx, tx, "", err)
		return nil, fmt.Errorf("failed to send buy offer: %w", err)
	}

	if err := b.ledger.AssignTradeOfferID(ctx, tx.ID, offerID); err != nil {
		b.log.Error().Err(err).
			Str("transaction_id", tx.ID).
			Str("trade_offer_id", offerID).
			Msg("failed to bind sent offer to transaction")
		return nil, fmt.Errorf("failed to bind sent offer %s: %w", offerID, err)
	}
	tx.TradeOfferID = offerID

	b.log.Info().
		Str("trade_offer_id", offerID).
		Str("transaction_id", tx.ID).
		Str("item", item.MarketHashName).
		Float64("final_amount", tx.FinalAmount).
		Msg("buy offer sent")
	b.emitSent(tx)

	return tx, nil
}

func (b *Builder) failSend(ctx context.Context, tx *domain.Transaction, assetID string, sendErr error) {
	if err := b.ledger.MarkTransactionFailed(ctx, tx.ID); err != nil {
		b.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to fail transaction after send error")
	}
	if assetID != "" {
		b.release(ctx, assetID)
	}
	if b.eventManager != nil {
		b.eventManager.EmitTyped("outbound", &events.OfferSendFailedData{
			TransactionID: tx.ID,
			ItemName:      tx.ItemName,
			Error:         sendErr.Error(),
		})
	}
}

func (b *Builder) release(ctx context.Context, assetID string) {
	if err := b.catalog.ReopenListing(ctx, assetID); err != nil {
		b.log.Error().Err(err).Str("asset_id", assetID).Msg("failed to reopen listing")
	}
}

func (b *Builder) emitSent(tx *domain.Transaction) {
	if b.eventManager != nil {
		b.eventManager.EmitTyped("outbound", &events.OfferSentData{
			TradeOfferID:  tx.TradeOfferID,
			Kind:          string(tx.Kind),
			ItemName:      tx.ItemName,
			Price:         tx.Price,
			TransactionID: tx.ID,
		})
	}
}
