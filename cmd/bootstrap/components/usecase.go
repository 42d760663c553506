package components

import (
	"loyalty-core/internal/domain/reward"
	"loyalty-core/internal/pkg/clock"
	"loyalty-core/internal/pkg/config"
	"loyalty-core/internal/usecase/commands"
	"loyalty-core/internal/usecase/queries"
	"loyalty-core/internal/usecase/shared"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseCommandsModule,
	usecaseQueriesModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		NewRedemptionCommands,
		NewCouponCommands,
		commands.NewTransferUseCase,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewBalanceQueries,
		queries.NewWalletQueries,
		NewHistoryQueries,
	),
)

func NewRedemptionCommands(
	catalog reward.Catalog,
	uow shared.UnitOfWork,
	clk clock.Clock,
	cfg config.Config,
) commands.RedemptionCommands {
	return commands.NewRedemptionUseCase(catalog, uow, clk, cfg.Redemption.ActivationWindow)
}

func NewCouponCommands(uow shared.UnitOfWork, clk clock.Clock, cfg config.Config) commands.CouponCommands {
	return commands.NewCouponUseCase(uow, clk, cfg.Redemption.ActivationWindow)
}

func NewHistoryQueries(repo queries.LedgerViewRepo, cfg config.Config) queries.HistoryQueries {
	return queries.NewHistoryQueries(repo, cfg.Redemption.HistoryPageSize)
}
