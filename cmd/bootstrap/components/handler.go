package components

import (
	"loyalty-core/internal/handler"
	"loyalty-core/internal/handler/api"
	"loyalty-core/internal/handler/middleware"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewRedemptionHandler,
		api.NewCouponHandler,
		api.NewBalanceHandler,
		api.NewHistoryHandler,
		middleware.NewAuthMiddleware,
	),
	fx.Invoke(handler.NewRouter),
)
