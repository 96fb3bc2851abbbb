package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/events"
)

// CatalogReopener restores a catalog listing when a sell offer dies
// without completing (declined, canceled, expired).
type CatalogReopener interface {
	ReopenListing(ctx context.Context, assetID string) error
}

// Reconciler applies offer outcomes to the ledger exactly once. It consumes
// offer state-change events, which arrive without ordering guarantees and
// may be redelivered; the store's guarded status flip makes duplicates safe.
type Reconciler struct {
	store        domain.LedgerStore
	catalog      CatalogReopener
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewReconciler creates a reconciler. catalog may be nil when no catalog
// module is wired (sell listings then stay closed on failure).
func NewReconciler(store domain.LedgerStore, catalog CatalogReopener, eventManager *events.Manager, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:        store,
		catalog:      catalog,
		eventManager: eventManager,
		log:          log.With().Str("service", "reconciler").Logger(),
	}
}

// OnOfferStateChanged handles one state-change notification for an offer.
// Only the accepted state completes a transaction; dead terminal states
// fail the pending transaction; everything else is logged and ignored.
// The returned error means the transaction is still pending and the event
// should be retried.
func (r *Reconciler) OnOfferStateChanged(ctx context.Context, tradeOfferID string, newState domain.OfferState) error {
	log := r.log.With().Str("trade_offer_id", tradeOfferID).Str("new_state", string(newState)).Logger()

	if newState.IsTerminalCompleting() {
		return r.complete(ctx, tradeOfferID, newState, log)
	}

	switch newState {
	case domain.OfferStateDeclined, domain.OfferStateCanceled,
		domain.OfferStateExpired, domain.OfferStateInvalidItems:
		return r.fail(ctx, tradeOfferID, log)
	default:
		// Intermediate state, observability only
		log.Debug().Msg("Ignoring non-terminal offer state")
		return nil
	}
}

func (r *Reconciler) complete(ctx context.Context, tradeOfferID string, newState domain.OfferState, log zerolog.Logger) error {
	tx, err := r.store.FindTransactionByOfferID(ctx, tradeOfferID)
	if err != nil {
		if domain.IsNotFound(err) {
			// Not ours: no transaction was ever registered for this offer
			log.Debug().Msg("No transaction for offer, ignoring state change")
			return nil
		}
		return r.surface(tradeOfferID, newState, fmt.Errorf("failed to look up transaction: %w", err), log)
	}

	// Fast-path idempotency check; the store's conditional update is the
	// authoritative guard
	if tx.Status != domain.StatusPending {
		log.Debug().Str("status", string(tx.Status)).Msg("Transaction already settled, ignoring duplicate")
		return nil
	}

	switch tx.Kind {
	case domain.KindBuy:
		err = r.store.CompleteBuyTransaction(ctx, tx.ID, tx.FinalAmount, domain.AssetInfo{
			AssetID:   tx.ItemAssetID,
			ItemName:  tx.ItemName,
			AppID:     730,
			ContextID: "2",
			Price:     tx.Price,
		})
	case domain.KindSell:
		err = r.store.CompleteSellTransaction(ctx, tx.ID)
	default:
		log.Error().Str("kind", string(tx.Kind)).Msg("Transaction has unknown kind")
		return nil
	}

	if err != nil {
		if domain.IsConflict(err) {
			// Lost the race against another delivery of the same event
			log.Debug().Msg("Completion conflict, transaction already settled")
			return nil
		}
		return r.surface(tradeOfferID, newState, err, log)
	}

	log.Info().
		Str("transaction_id", tx.ID).
		Str("kind", string(tx.Kind)).
		Float64("final_amount", tx.FinalAmount).
		Msg("Transaction reconciled")

	if r.eventManager != nil {
		r.eventManager.Emit(events.TransactionCompleted, "ledger", map[string]interface{}{
			"transaction_id": tx.ID,
			"trade_offer_id": tx.TradeOfferID,
			"kind":           string(tx.Kind),
			"item_name":      tx.ItemName,
			"final_amount":   tx.FinalAmount,
		})
	}

	return nil
}

func (r *Reconciler) fail(ctx context.Context, tradeOfferID string, log zerolog.Logger) error {
	tx, err := r.store.FindTransactionByOfferID(ctx, tradeOfferID)
	if err != nil {
		if domain.IsNotFound(err) {
			log.Debug().Msg("No transaction for dead offer, ignoring")
			return nil
		}
		return fmt.Errorf("failed to look up transaction for dead offer: %w", err)
	}

	if tx.Status != domain.StatusPending {
		return nil
	}

	if err := r.store.MarkTransactionFailed(ctx, tx.ID); err != nil {
		if domain.IsConflict(err) {
			return nil
		}
		return fmt.Errorf("failed to fail transaction %s: %w", tx.ID, err)
	}

	// A dead sell offer means the item is still ours; put the listing back
	if tx.Kind == domain.KindSell && r.catalog != nil {
		if err := r.catalog.ReopenListing(ctx, tx.ItemAssetID); err != nil {
			log.Error().Err(err).Str("asset_id", tx.ItemAssetID).Msg("Failed to reopen catalog listing")
		}
	}

	log.Info().Str("transaction_id", tx.ID).Msg("Transaction failed with offer")
	return nil
}

// surface reports a reconciliation failure. The transaction stays pending;
// the event goes to the bus for alerting and retry, and the error is
// returned so the caller can also retry.
func (r *Reconciler) surface(tradeOfferID string, newState domain.OfferState, err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Reconciliation failed, transaction left pending")

	if r.eventManager != nil {
		r.eventManager.Emit(events.ReconciliationFailed, "ledger", map[string]interface{}{
			"trade_offer_id": tradeOfferID,
			"new_state":      string(newState),
			"error":          err.Error(),
		})
	}

	return err
}
