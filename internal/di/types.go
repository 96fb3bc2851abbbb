/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to handlers for access to services.
 */
package di

import (
	"github.com/skinflow/tradebot/internal/clientdata"
	"github.com/skinflow/tradebot/internal/clients/steamnet"
	"github.com/skinflow/tradebot/internal/database"
	"github.com/skinflow/tradebot/internal/events"
	"github.com/skinflow/tradebot/internal/modules/catalog"
	"github.com/skinflow/tradebot/internal/modules/ledger"
	ledgerhandlers "github.com/skinflow/tradebot/internal/modules/ledger/handlers"
	"github.com/skinflow/tradebot/internal/modules/offers"
	"github.com/skinflow/tradebot/internal/modules/outbound"
	"github.com/skinflow/tradebot/internal/modules/pricing"
	"github.com/skinflow/tradebot/internal/modules/users"
	"github.com/skinflow/tradebot/internal/queue"
	"github.com/skinflow/tradebot/internal/reliability"
)

/**
 * Container holds all dependencies for the application.
 *
 * This is the single source of truth for all service instances.
 * The container is created by Wire() and passed to handlers for access to services.
 *
 * Architecture:
 * - Databases: 2-database architecture (ledger, cache)
 * - Clients: trading network gateway (HTTP commands, WebSocket notifications)
 * - Repositories: Data access layer (transactions, users, catalog, price cache)
 * - Services: Business logic layer (classifier/policy, reconciler, oracle, outbound builder)
 * - Queue: Background job processor with persisted retries
 *
 * All dependencies are injected via constructor injection.
 */
type Container struct {
	// Databases
	LedgerDB *database.DB // Durable money/inventory audit trail (transactions, balances, catalog)
	CacheDB  *database.DB // Ephemeral operational data (price cache, job retries)

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Clients - trading network gateway
	TransportCommands  *steamnet.Commands
	NotificationStream *steamnet.NotificationStream

	// Repositories - data access layer
	LedgerStore    *ledger.Store
	UserRepo       *users.Repository
	CatalogRepo    *catalog.Repository
	ClientDataRepo *clientdata.Repository
	PriceHistory   *pricing.HistoryRepository

	// Services - business logic layer
	PriceClient     *pricing.Client
	PriceCache      *pricing.BoundedCache
	PriceOracle     *pricing.Oracle
	Policy          *offers.Policy
	Dispatcher      *offers.Dispatcher
	Reconciler      *ledger.Reconciler
	OutboundBuilder *outbound.Builder

	// Queue - background job processing
	QueueManager *queue.Manager
	RetryStore   *queue.RetryStore

	// Reliability - backups (CloudBackupService is nil when no bucket is configured)
	BackupService      *reliability.BackupService
	CloudBackupService *reliability.R2BackupService

	// HTTP handlers
	UsersHandler    *users.Handler
	CatalogHandler  *catalog.Handler
	PricingHandler  *pricing.Handler
	LedgerHandler   *ledgerhandlers.Handler
	OutboundHandler *outbound.Handler
}
