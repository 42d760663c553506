package components

import (
	"time"

	"loyalty-core/internal/domain/reward"
	"loyalty-core/internal/infra/db"
	"loyalty-core/internal/infra/readstore"
	"loyalty-core/internal/infra/rewards"
	"loyalty-core/internal/infra/uow"
	"loyalty-core/internal/pkg/config"
	"loyalty-core/internal/usecase/queries"
	"loyalty-core/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		NewDBTX,
		NewUnitOfWork,
		// Read stores
		fx.Annotate(
			readstore.NewBalanceReadStore,
			fx.As(new(queries.BalanceViewRepo)),
		),
		fx.Annotate(
			readstore.NewWalletReadStore,
			fx.As(new(queries.InstanceViewRepo)),
		),
		fx.Annotate(
			readstore.NewLedgerReadStore,
			fx.As(new(queries.LedgerViewRepo)),
		),
		// Static reward reference data
		fx.Annotate(
			NewRewardCatalog,
			fx.As(new(reward.Catalog)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) db.DBTX {
	return pool
}

func NewUnitOfWork(pool *pgxpool.Pool, cfg config.Config) shared.UnitOfWork {
	return uow.NewPostgresUoW(pool, cfg.Redemption.TxMaxRetries)
}

func NewRewardCatalog() *rewards.StaticCatalog {
	return rewards.NewStaticCatalog(rewards.DefaultDefinitions(time.Now()))
}
