package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/clients/steamnet"
	"github.com/skinflow/tradebot/internal/config"
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

// InitializeServices wires the business logic layer: events, pricing,
// the offer pipeline, the outbound builder, the job queue and backups.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Events
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Pricing stack: HTTP client with a durable cache in the cache DB,
	// a bounded in-memory cache in front, and the price history behind.
	container.PriceClient = pricing.NewClient(
		cfg.PriceAPIURL,
		cfg.RubUsdDivisor,
		cfg.PriceHTTPTimeout,
		container.ClientDataRepo,
		log,
	)
	container.PriceCache = pricing.NewBoundedCache(cfg.PriceCacheSize, cfg.PriceCacheTTL)
	container.PriceOracle = pricing.NewOracle(
		container.PriceClient,
		container.PriceCache,
		container.PriceHistory,
		container.EventManager,
		log,
	)

	// Offer pipeline: policy decides, dispatcher executes and serializes
	// per trade offer, reconciler applies outcomes to the ledger.
	container.Policy = offers.NewPolicy(container.LedgerStore, container.PriceOracle, cfg.CommissionRate, cfg.EscrowDeclineDays, log)
	container.Reconciler = ledger.NewReconciler(container.LedgerStore, container.CatalogRepo, container.EventManager, log)

	container.TransportCommands = steamnet.NewCommands(
		cfg.TransportAPIURL,
		cfg.TransportAPIKey,
		cfg.TransportTimeout,
		log,
	)
	container.Dispatcher = offers.NewDispatcher(
		container.Policy,
		container.TransportCommands,
		container.Reconciler,
		container.EventManager,
		log,
	)

	// Notification stream is optional: without a WS URL the engine only
	// serves the API and outbound offers must be reconciled by sweep.
	if cfg.TransportWSURL != "" {
		container.NotificationStream = steamnet.NewNotificationStream(
			cfg.TransportWSURL,
			cfg.TransportAPIKey,
			container.Dispatcher,
			container.EventManager,
			log,
		)
	}

	container.OutboundBuilder = outbound.NewBuilder(
		container.LedgerStore,
		container.CatalogRepo,
		container.TransportCommands,
		container.EventManager,
		cfg.CommissionRate,
		log,
	)

	// Job queue with persisted retries
	container.RetryStore = queue.NewRetryStore(container.CacheDB.Conn(), log)
	container.QueueManager = queue.NewManager(container.RetryStore, container.EventManager, log)

	// Backups: local snapshots always, cloud upload only when configured
	container.BackupService = reliability.NewBackupService(
		map[string]*database.DB{
			"ledger": container.LedgerDB,
			"cache":  container.CacheDB,
		},
		filepath.Join(cfg.DataDir, "backups"),
		log,
	)
	if cfg.BackupBucket != "" {
		r2Client, err := reliability.NewR2Client(
			cfg.BackupEndpoint,
			cfg.BackupAccessKey,
			cfg.BackupSecretKey,
			cfg.BackupBucket,
			log,
		)
		if err != nil {
			return fmt.Errorf("failed to create backup storage client: %w", err)
		}
		container.CloudBackupService = reliability.NewR2BackupService(r2Client, container.BackupService, cfg.DataDir, log)
	}

	// HTTP handlers
	container.UsersHandler = users.NewHandler(container.UserRepo, log)
	container.CatalogHandler = catalog.NewHandler(container.CatalogRepo, log)
	container.PricingHandler = pricing.NewHandler(container.PriceOracle, container.PriceHistory, log)
	container.LedgerHandler = ledgerhandlers.NewHandler(container.LedgerStore, log)
	container.OutboundHandler = outbound.NewHandler(container.OutboundBuilder, log)

	log.Debug().Msg("Services initialized")
	return nil
}
