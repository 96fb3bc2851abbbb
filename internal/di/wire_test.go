package di

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinflow/tradebot/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:           t.TempDir(),
		Port:              0,
		LogLevel:          "error",
		TransportAPIURL:   "http://127.0.0.1:1",
		TransportTimeout:  time.Second,
		PriceAPIURL:       "http://127.0.0.1:1",
		PriceCacheTTL:     time.Hour,
		PriceCacheSize:    100,
		RubUsdDivisor:     90,
		CommissionRate:    0.03,
		PriceHTTPTimeout:  time.Second,
		StalePendingAfter: 24 * time.Hour,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.CloseDatabases()

	// Databases open and migrated
	require.NotNil(t, container.LedgerDB)
	require.NotNil(t, container.CacheDB)

	// Repositories
	assert.NotNil(t, container.LedgerStore)
	assert.NotNil(t, container.UserRepo)
	assert.NotNil(t, container.CatalogRepo)
	assert.NotNil(t, container.ClientDataRepo)
	assert.NotNil(t, container.PriceHistory)

	// Services
	assert.NotNil(t, container.EventBus)
	assert.NotNil(t, container.EventManager)
	assert.NotNil(t, container.PriceOracle)
	assert.NotNil(t, container.Policy)
	assert.NotNil(t, container.Dispatcher)
	assert.NotNil(t, container.Reconciler)
	assert.NotNil(t, container.OutboundBuilder)
	assert.NotNil(t, container.TransportCommands)
	assert.NotNil(t, container.QueueManager)
	assert.NotNil(t, container.BackupService)

	// No WS URL configured, so no notification stream
	assert.Nil(t, container.NotificationStream)

	// No bucket configured, so no cloud backups
	assert.Nil(t, container.CloudBackupService)

	// Handlers
	assert.NotNil(t, container.UsersHandler)
	assert.NotNil(t, container.CatalogHandler)
	assert.NotNil(t, container.PricingHandler)
	assert.NotNil(t, container.LedgerHandler)
	assert.NotNil(t, container.OutboundHandler)

	// Jobs
	require.NotNil(t, jobs)
	assert.NotNil(t, jobs.StalePendingSweep)
	assert.NotNil(t, jobs.ClientDataCleanup)
	assert.NotNil(t, jobs.PriceHistoryCleanup)
	assert.NotNil(t, jobs.CheckCoreDatabases)
	assert.NotNil(t, jobs.CheckWALCheckpoints)
	assert.NotNil(t, jobs.NightlyBackup)
	assert.Nil(t, jobs.BackupRotation)
}

func TestWireWithNotificationStream(t *testing.T) {
	cfg := testConfig(t)
	cfg.TransportWSURL = "ws://127.0.0.1:1/stream"

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.CloseDatabases()

	assert.NotNil(t, container.NotificationStream)
	assert.False(t, container.NotificationStream.IsConnected())
}

func TestWireIncompleteBackupCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackupBucket = "tradebot-backups"
	// No access keys: wiring must fail closed instead of running with a
	// half-configured uploader.

	_, _, err := Wire(cfg, zerolog.Nop())
	require.Error(t, err)
}
