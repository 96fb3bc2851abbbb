package testing

import (
	"time"

	"github.com/google/uuid"

	"github.com/skinflow/tradebot/internal/domain"
)

// NewUserFixture returns an active user for use in tests.
func NewUserFixture() *domain.User {
	return &domain.User{
		ID:         1,
		ExternalID: "76561198000000001",
		Username:   "testuser",
		Balance:    100.00,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewInactiveUserFixture returns a deactivated user.
func NewInactiveUserFixture() *domain.User {
	return &domain.User{
		ID:         2,
		ExternalID: "76561198000000002",
		Username:   "banneduser",
		Balance:    0,
		IsActive:   false,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewBuyOfferFixture returns an incoming offer where the counterpart gives
// the bot exactly one item.
func NewBuyOfferFixture(offerID string) domain.Offer {
	return domain.Offer{
		ID:            offerID,
		CounterpartID: "76561198000000001",
		ItemsReceived: []domain.OfferItem{
			{
				AssetID:        "asset-100",
				MarketHashName: "AK-47 | Redline (Field-Tested)",
				AppID:          730,
				ContextID:      "2",
			},
		},
	}
}

// NewSellOfferFixture returns an incoming offer taking exactly one item
// from the bot.
func NewSellOfferFixture(offerID string) domain.Offer {
	return domain.Offer{
		ID:            offerID,
		CounterpartID: "76561198000000001",
		ItemsGiven: []domain.OfferItem{
			{
				AssetID:        "asset-200",
				MarketHashName: "AWP | Asiimov (Field-Tested)",
				AppID:          730,
				ContextID:      "2",
			},
		},
	}
}

// NewPendingTransactionFixture returns a pending transaction for an offer.
func NewPendingTransactionFixture(tradeOfferID string, kind domain.TransactionKind) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New().String(),
		TradeOfferID: tradeOfferID,
		UserID:       1,
		Kind:         kind,
		Status:       domain.StatusPending,
		ItemName:     "AK-47 | Redline (Field-Tested)",
		ItemAssetID:  "asset-100",
		Price:        19.40,
		Commission:   0.58,
		FinalAmount:  18.82,
		CreatedAt:    time.Now().UTC(),
	}
}

// NewCatalogItemFixture returns a listed, available catalog item.
func NewCatalogItemFixture() *domain.CatalogItem {
	return &domain.CatalogItem{
		ID:             1,
		AssetID:        "asset-200",
		MarketHashName: "AWP | Asiimov (Field-Tested)",
		Game:           "cs2",
		Exterior:       "Field-Tested",
		Price:          50.00,
		IsListed:       true,
		IsAvailable:    true,
		CreatedAt:      time.Now().UTC(),
	}
}
