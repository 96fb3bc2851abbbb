package di

import (
	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/clientdata"
	"github.com/skinflow/tradebot/internal/modules/catalog"
	"github.com/skinflow/tradebot/internal/modules/ledger"
	"github.com/skinflow/tradebot/internal/modules/pricing"
	"github.com/skinflow/tradebot/internal/modules/users"
)

// InitializeRepositories creates the data access layer on top of the
// open databases.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.LedgerStore = ledger.NewStore(container.LedgerDB.Conn(), log)
	container.UserRepo = users.NewRepository(container.LedgerDB.Conn(), log)
	container.CatalogRepo = catalog.NewRepository(container.LedgerDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.PriceHistory = pricing.NewHistoryRepository(container.CacheDB.Conn(), log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
