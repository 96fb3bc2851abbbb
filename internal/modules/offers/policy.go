package offers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
)

// Policy decides whether an incoming offer is accepted or declined.
//
// The policy is fail-closed: any dependency failure (store, price oracle)
// produces a decline rather than an accept. An accepted buy is recorded as
// a pending transaction before the verdict is returned, so the decision
// itself survives a crash and duplicate notifications re-use the stored
// outcome instead of recomputing it.
type Policy struct {
	store             domain.LedgerStore
	oracle            domain.PriceOracle
	commissionRate    float64
	escrowDeclineDays int
	log               zerolog.Logger
}

// NewPolicy creates a policy over the given ledger store and price oracle.
// commissionRate is the marketplace fee applied twice on buys: once as a
// markdown on the listed price and once as the explicit commission line.
// escrowDeclineDays declines offers that would sit in escrow longer than
// that many days; 0 disables the check.
func NewPolicy(store domain.LedgerStore, oracle domain.PriceOracle, commissionRate float64, escrowDeclineDays int, log zerolog.Logger) *Policy {
	return &Policy{
		store:             store,
		oracle:            oracle,
		commissionRate:    commissionRate,
		escrowDeclineDays: escrowDeclineDays,
		log:               log.With().Str("module", "offers").Str("component", "policy").Logger(),
	}
}

// Decide evaluates an incoming offer and returns the verdict to act on.
//
// The returned verdict is always usable; a non-nil error accompanies a
// decline whose cause was a dependency failure rather than a policy rule,
// so callers can surface it while still declining.
func (p *Policy) Decide(ctx context.Context, offer domain.Offer) (domain.Verdict, error) {
	intent := Classify(offer.ItemsGiven, offer.ItemsReceived)
	if intent == domain.IntentUnknown {
		return domain.DeclineVerdict(domain.ReasonUnsupportedShape), nil
	}

	// A transaction keyed by this offer id means the verdict was already
	// issued: an accepted buy we recorded, or a sell we sent ourselves.
	// Re-emit it instead of recomputing.
	existing, err := p.store.FindTransactionByOfferID(ctx, offer.ID)
	if err == nil {
		p.log.Debug().
			Str("trade_offer_id", offer.ID).
			Str("transaction_id", existing.ID).
			Msg("duplicate offer notification, re-emitting stored verdict")
		return domain.AcceptVerdict(), nil
	}
	if !domain.IsNotFound(err) {
		return domain.DeclineVerdict(domain.ReasonDependencyFailure),
			fmt.Errorf("failed to look up offer %s: %w", offer.ID, err)
	}

	if intent == domain.IntentSell {
		// We only ever give items away through offers we created, and
		// those are pre-registered as pending sell transactions.
		return domain.DeclineVerdict(domain.ReasonNotOurOffer), nil
	}

	return p.decideBuy(ctx, offer)
}

func (p *Policy) decideBuy(ctx context.Context, offer domain.Offer) (domain.Verdict, error) {
	if p.escrowDeclineDays > 0 && offer.EscrowDays > p.escrowDeclineDays {
		return domain.DeclineVerdict(domain.ReasonEscrowTooLong), nil
	}

	item := offer.ItemsReceived[0]
	if item.MarketHashName == "" {
		return domain.DeclineVerdict(domain.ReasonItemInfoUnavailable), nil
	}

	listPrice, known, err := p.oracle.GetUnitPrice(ctx, item.MarketHashName)
	if err != nil {
		return domain.DeclineVerdict(domain.ReasonDependencyFailure),
			fmt.Errorf("failed to price %q: %w", item.MarketHashName, err)
	}
	if !known || listPrice <= 0 {
		return domain.DeclineVerdict(domain.ReasonPriceUnavailable), nil
	}

	// Only the marked-down price is rounded; the commission and payout
	// carry the exact fraction through to the ledger.
	price := domain.Round2(listPrice * (1 - p.commissionRate))
	commission := price * p.commissionRate
	finalAmount := price - commission

	user, err := p.store.FindUserByExternalID(ctx, offer.CounterpartID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.DeclineVerdict(domain.ReasonUserNotEligible), nil
		}
		return domain.DeclineVerdict(domain.ReasonDependencyFailure),
			fmt.Errorf("failed to look up user %s: %w", offer.CounterpartID, err)
	}
	if !user.IsActive {
		return domain.DeclineVerdict(domain.ReasonUserNotEligible), nil
	}

	tx := domain.Transaction{
		ID:           uuid.NewString(),
		TradeOfferID: offer.ID,
		UserID:       user.ID,
		Kind:         domain.KindBuy,
		Status:       domain.StatusPending,
		ItemName:     item.MarketHashName,
		ItemAssetID:  item.AssetID,
		Price:        price,
		Commission:   commission,
		FinalAmount:  finalAmount,
	}
	if err := p.store.InsertPendingTransaction(ctx, &tx); err != nil {
		if domain.IsConflict(err) {
			// Lost a race with a duplicate notification; the stored
			// verdict is an accept either way.
			return domain.AcceptVerdict(), nil
		}
		return domain.DeclineVerdict(domain.ReasonDependencyFailure),
			fmt.Errorf("failed to record pending buy for offer %s: %w", offer.ID, err)
	}

	p.log.Info().
		Str("trade_offer_id", offer.ID).
		Str("transaction_id", tx.ID).
		Str("item", tx.ItemName).
		Float64("price", price).
		Float64("final_amount", finalAmount).
		Msg("buy offer accepted")

	return domain.AcceptVerdict(), nil
}
