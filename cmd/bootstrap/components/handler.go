package components

import (
	"loans-service/internal/handler"
	"loans-service/internal/handler/api"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewLoanHandler,
	),
	fx.Invoke(handler.NewRouter),
)
