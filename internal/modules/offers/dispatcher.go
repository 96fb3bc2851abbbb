package offers

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/events"
	"github.com/skinflow/tradebot/internal/modules/ledger"
)

// Dispatcher is the single entry point for offer lifecycle notifications.
// All work for one trade offer id runs serialized, so a state change and a
// duplicate notification for the same offer can never interleave. Work for
// different offers proceeds concurrently.
type Dispatcher struct {
	policy       *Policy
	transport    domain.TransportCommands
	reconciler   *ledger.Reconciler
	eventManager *events.Manager
	log          zerolog.Logger

	mu    sync.Mutex
	locks map[string]*offerLock
}

type offerLock struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher wires the policy, transport commands and reconciler behind
// per-offer serialization. eventManager may be nil in tests.
func NewDispatcher(policy *Policy, transport domain.TransportCommands, reconciler *ledger.Reconciler, eventManager *events.Manager, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		policy:       policy,
		transport:    transport,
		reconciler:   reconciler,
		eventManager: eventManager,
		log:          log.With().Str("module", "offers").Str("component", "dispatcher").Logger(),
		locks:        make(map[string]*offerLock),
	}
}

// HandleOfferReceived runs the policy over a new (or re-notified) incoming
// offer and issues the verdict to the transport.
func (d *Dispatcher) HandleOfferReceived(ctx context.Context, offer domain.Offer) error {
	unlock := d.acquire(offer.ID)
	defer unlock()

	intent := Classify(offer.ItemsGiven, offer.ItemsReceived)
	d.emit(&events.OfferReceivedData{
		TradeOfferID:  offer.ID,
		CounterpartID: offer.CounterpartID,
		ItemsGiven:    len(offer.ItemsGiven),
		ItemsReceived: len(offer.ItemsReceived),
	})

	verdict, decideErr := d.policy.Decide(ctx, offer)
	if decideErr != nil {
		d.log.Error().Err(decideErr).
			Str("trade_offer_id", offer.ID).
			Msg("policy fell back to decline after dependency failure")
	}

	var actErr error
	if verdict.Accept {
		actErr = d.transport.Accept(ctx, offer.ID)
	} else {
		actErr = d.transport.Decline(ctx, offer.ID)
	}
	if actErr != nil {
		// The verdict is already durable for accepted buys; the offer
		// stays actionable on the transport side until a retry lands.
		return fmt.Errorf("failed to act on offer %s: %w", offer.ID, actErr)
	}

	d.emit(&events.VerdictIssuedData{
		TradeOfferID: offer.ID,
		Intent:       string(intent),
		Accepted:     verdict.Accept,
		Reason:       string(verdict.Reason),
	})
	return decideErr
}

// HandleOfferStateChanged feeds a transport-side state transition to the
// ledger reconciler under the same per-offer lock as verdict handling.
func (d *Dispatcher) HandleOfferStateChanged(ctx context.Context, tradeOfferID string, state domain.OfferState) error {
	unlock := d.acquire(tradeOfferID)
	defer unlock()

	d.emit(&events.OfferStateChangedData{
		TradeOfferID: tradeOfferID,
		NewState:     string(state),
	})
	return d.reconciler.OnOfferStateChanged(ctx, tradeOfferID, state)
}

func (d *Dispatcher) emit(data events.EventData) {
	if d.eventManager != nil {
		d.eventManager.EmitTyped("offers", data)
	}
}

// acquire takes the lock for one trade offer id and returns its release
// func. Lock entries are reference counted so the map only holds offers
// with in-flight work.
func (d *Dispatcher) acquire(tradeOfferID string) func() {
	d.mu.Lock()
	entry, ok := d.locks[tradeOfferID]
	if !ok {
		entry = &offerLock{}
		d.locks[tradeOfferID] = entry
	}
	entry.refs++
	d.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		d.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(d.locks, tradeOfferID)
		}
		d.mu.Unlock()
	}
}
