package offers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/modules/ledger"
	apptesting "github.com/skinflow/tradebot/internal/testing"
)

func newTestDispatcher() (*Dispatcher, *apptesting.MockLedgerStore, *apptesting.MockPriceOracle, *apptesting.MockTransport) {
	store := apptesting.NewMockLedgerStore()
	oracle := apptesting.NewMockPriceOracle()
	transport := apptesting.NewMockTransport()
	policy := NewPolicy(store, oracle, testCommissionRate, 0, zerolog.Nop())
	reconciler := ledger.NewReconciler(store, nil, nil, zerolog.Nop())
	dispatcher := NewDispatcher(policy, transport, reconciler, nil, zerolog.Nop())
	return dispatcher, store, oracle, transport
}

func TestDispatcherAcceptsBuyOffer(t *testing.T) {
	dispatcher, store, oracle, transport := newTestDispatcher()
	store.AddUser(apptesting.NewUserFixture())
	oracle.SetPrice("AK-47 | Redline (Field-Tested)", 20.00)

	err := dispatcher.HandleOfferReceived(context.Background(), apptesting.NewBuyOfferFixture("offer-1"))

	require.NoError(t, err)
	assert.Equal(t, []string{"offer-1"}, transport.Accepted())
	assert.Empty(t, transport.Declined())
	require.NotNil(t, store.Transaction("offer-1"))
}

func TestDispatcherDeclinesUnknownShape(t *testing.T) {
	dispatcher, _, _, transport := newTestDispatcher()

	err := dispatcher.HandleOfferReceived(context.Background(), domain.Offer{ID: "offer-2"})

	require.NoError(t, err)
	assert.Equal(t, []string{"offer-2"}, transport.Declined())
	assert.Empty(t, transport.Accepted())
}

func TestDispatcherSurfacesTransportFailure(t *testing.T) {
	dispatcher, store, oracle, transport := newTestDispatcher()
	store.AddUser(apptesting.NewUserFixture())
	oracle.SetPrice("AK-47 | Redline (Field-Tested)", 20.00)
	transport.SetAcceptError(errors.New("session expired"))

	err := dispatcher.HandleOfferReceived(context.Background(), apptesting.NewBuyOfferFixture("offer-3"))

	require.Error(t, err)
	// The verdict is already durable; a retried notification re-uses it.
	tx := store.Transaction("offer-3")
	require.NotNil(t, tx)
	assert.Equal(t, domain.StatusPending, tx.Status)

	transport.SetAcceptError(nil)
	require.NoError(t, dispatcher.HandleOfferReceived(context.Background(), apptesting.NewBuyOfferFixture("offer-3")))
	assert.Equal(t, []string{"offer-3"}, transport.Accepted())
}

func TestDispatcherRoutesStateChangesToReconciler(t *testing.T) {
	dispatcher, store, oracle, _ := newTestDispatcher()
	user := apptesting.NewUserFixture()
	store.AddUser(user)
	oracle.SetPrice("AK-47 | Redline (Field-Tested)", 20.00)

	require.NoError(t, dispatcher.HandleOfferReceived(context.Background(), apptesting.NewBuyOfferFixture("offer-4")))
	require.NoError(t, dispatcher.HandleOfferStateChanged(context.Background(), "offer-4", domain.OfferStateAccepted))

	tx := store.Transaction("offer-4")
	require.NotNil(t, tx)
	assert.Equal(t, domain.StatusCompleted, tx.Status)
	assert.InDelta(t, 100.00+18.818, store.User(user.ExternalID).Balance, 1e-9)
}

func TestDispatcherSerializesConcurrentDuplicates(t *testing.T) {
	dispatcher, store, oracle, transport := newTestDispatcher()
	store.AddUser(apptesting.NewUserFixture())
	oracle.SetPrice("AK-47 | Redline (Field-Tested)", 20.00)

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = dispatcher.HandleOfferReceived(context.Background(), apptesting.NewBuyOfferFixture("offer-5"))
		}()
	}
	wg.Wait()

	// Every notification accepts, but only one pending transaction exists.
	assert.Len(t, transport.Accepted(), workers)
	tx := store.Transaction("offer-5")
	require.NotNil(t, tx)
	assert.Equal(t, domain.StatusPending, tx.Status)
}

func TestDispatcherConcurrentStateChangesCompleteOnce(t *testing.T) {
	dispatcher, store, oracle, _ := newTestDispatcher()
	user := apptesting.NewUserFixture()
	store.AddUser(user)
	oracle.SetPrice("AK-47 | Redline (Field-Tested)", 20.00)
	require.NoError(t, dispatcher.HandleOfferReceived(context.Background(), apptesting.NewBuyOfferFixture("offer-6")))

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = dispatcher.HandleOfferStateChanged(context.Background(), "offer-6", domain.OfferStateAccepted)
		}()
	}
	wg.Wait()

	assert.InDelta(t, 100.00+18.818, store.User(user.ExternalID).Balance, 1e-9)
}
