package testing

import (
	"context"
	"sync"
	"time"

	"github.com/skinflow/tradebot/internal/domain"
)

// MockTransport is an in-memory implementation of domain.TransportCommands
// that records issued commands.
type MockTransport struct {
	mu         sync.Mutex
	accepted   []string
	declined   []string
	sent       []domain.Offer
	nextSendID string
	acceptErr  error
	declineErr error
	sendErr    error
}

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{nextSendID: "sent-offer-1"}
}

// SetAcceptError sets the error returned by Accept.
func (m *MockTransport) SetAcceptError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptErr = err
}

// SetDeclineError sets the error returned by Decline.
func (m *MockTransport) SetDeclineError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declineErr = err
}

// SetSendError sets the error returned by Send.
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetNextSendID sets the offer id returned by the next Send call.
func (m *MockTransport) SetNextSendID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSendID = id
}

// Accept records an accept command.
func (m *MockTransport) Accept(_ context.Context, offerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acceptErr != nil {
		return m.acceptErr
	}
	m.accepted = append(m.accepted, offerID)
	return nil
}

// Decline records a decline command.
func (m *MockTransport) Decline(_ context.Context, offerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.declineErr != nil {
		return m.declineErr
	}
	m.declined = append(m.declined, offerID)
	return nil
}

// Send records a send command and returns the configured offer id.
func (m *MockTransport) Send(_ context.Context, offer domain.Offer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, offer)
	return m.nextSendID, nil
}

// Accepted returns the offer ids accepted so far.
func (m *MockTransport) Accepted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.accepted...)
}

// Declined returns the offer ids declined so far.
func (m *MockTransport) Declined() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.declined...)
}

// Sent returns the offers sent so far.
func (m *MockTransport) Sent() []domain.Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Offer(nil), m.sent...)
}

// MockPriceOracle is a configurable implementation of domain.PriceOracle.
type MockPriceOracle struct {
	mu     sync.RWMutex
	prices map[string]float64
	err    error
}

// NewMockPriceOracle creates a mock oracle with no known prices.
func NewMockPriceOracle() *MockPriceOracle {
	return &MockPriceOracle{prices: make(map[string]float64)}
}

// SetPrice sets the price returned for an item key.
func (m *MockPriceOracle) SetPrice(itemKey string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[itemKey] = price
}

// SetError sets the error to return.
func (m *MockPriceOracle) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetUnitPrice returns the configured price, or unknown.
func (m *MockPriceOracle) GetUnitPrice(_ context.Context, itemKey string) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, false, m.err
	}
	price, ok := m.prices[itemKey]
	return price, ok, nil
}

// MockLedgerStore is an in-memory implementation of domain.LedgerStore with
// the same idempotency semantics as the SQL-backed store.
type MockLedgerStore struct {
	mu           sync.Mutex
	transactions map[string]*domain.Transaction // keyed by trade offer id
	users        map[string]*domain.User        // keyed by external id
	inventory    map[string]domain.BotInventoryItem
	failNext     error
}

// NewMockLedgerStore creates an empty mock store.
func NewMockLedgerStore() *MockLedgerStore {
	return &MockLedgerStore{
		transactions: make(map[string]*domain.Transaction),
		users:        make(map[string]*domain.User),
		inventory:    make(map[string]domain.BotInventoryItem),
	}
}

// AddUser registers a user.
func (m *MockLedgerStore) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ExternalID] = user
}

// AddTransaction registers a transaction directly.
func (m *MockLedgerStore) AddTransaction(tx *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.TradeOfferID] = tx
}

// FailNext makes the next store call return err once.
func (m *MockLedgerStore) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MockLedgerStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// FindTransactionByOfferID returns the transaction for an offer id.
func (m *MockLedgerStore) FindTransactionByOfferID(_ context.Context, tradeOfferID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	tx, ok := m.transactions[tradeOfferID]
	if !ok {
		return nil, domain.NewNotFoundError("transaction", tradeOfferID)
	}
	copied := *tx
	return &copied, nil
}

// InsertPendingTransaction records a new pending transaction.
func (m *MockLedgerStore) InsertPendingTransaction(_ context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, exists := m.transactions[tx.TradeOfferID]; exists {
		return domain.NewConflictError("transaction", tx.TradeOfferID)
	}
	copied := *tx
	copied.Status = domain.StatusPending
	m.transactions[tx.TradeOfferID] = &copied
	return nil
}

// CompleteBuyTransaction flips status, credits balance and inserts inventory.
func (m *MockLedgerStore) CompleteBuyTransaction(_ context.Context, transactionID string, finalAmount float64, asset domain.AssetInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	tx := m.findByID(transactionID)
	if tx == nil {
		return domain.NewNotFoundError("transaction", transactionID)
	}
	if tx.Status != domain.StatusPending {
		return domain.NewConflictError("transaction", transactionID)
	}
	now := time.Now().UTC()
	tx.Status = domain.StatusCompleted
	tx.CompletedAt = &now
	for _, user := range m.users {
		if user.ID == tx.UserID {
			user.Balance += finalAmount
		}
	}
	m.inventory[asset.AssetID] = domain.BotInventoryItem{
		AssetID:             asset.AssetID,
		ItemName:            asset.ItemName,
		AppID:               asset.AppID,
		ContextID:           asset.ContextID,
		Price:               asset.Price,
		SourceTransactionID: transactionID,
		AcquiredAt:          now,
	}
	return nil
}

// CompleteSellTransaction flips status and removes the inventory row.
func (m *MockLedgerStore) CompleteSellTransaction(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	tx := m.findByID(transactionID)
	if tx == nil {
		return domain.NewNotFoundError("transaction", transactionID)
	}
	if tx.Status != domain.StatusPending {
		return domain.NewConflictError("transaction", transactionID)
	}
	now := time.Now().UTC()
	tx.Status = domain.StatusCompleted
	tx.CompletedAt = &now
	delete(m.inventory, tx.ItemAssetID)
	return nil
}

// MarkTransactionFailed flips a pending transaction to failed.
func (m *MockLedgerStore) MarkTransactionFailed(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	tx := m.findByID(transactionID)
	if tx == nil {
		return domain.NewNotFoundError("transaction", transactionID)
	}
	if tx.Status != domain.StatusPending {
		return domain.NewConflictError("transaction", transactionID)
	}
	tx.Status = domain.StatusFailed
	return nil
}

// FindUserByExternalID returns the user for a platform account id.
func (m *MockLedgerStore) FindUserByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	user, ok := m.users[externalID]
	if !ok {
		return nil, domain.NewNotFoundError("user", externalID)
	}
	copied := *user
	return &copied, nil
}

// Transaction returns the stored transaction for an offer id, or nil.
func (m *MockLedgerStore) Transaction(tradeOfferID string) *domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[tradeOfferID]
	if !ok {
		return nil
	}
	copied := *tx
	return &copied
}

// User returns the stored user for an external id, or nil.
func (m *MockLedgerStore) User(externalID string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[externalID]
	if !ok {
		return nil
	}
	copied := *user
	return &copied
}

// InventoryItem returns the held item for an asset id, or nil.
func (m *MockLedgerStore) InventoryItem(assetID string) *domain.BotInventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.inventory[assetID]
	if !ok {
		return nil
	}
	return &item
}

func (m *MockLedgerStore) findByID(transactionID string) *domain.Transaction {
	for _, tx := range m.transactions {
		if tx.ID == transactionID {
			return tx
		}
	}
	return nil
}
