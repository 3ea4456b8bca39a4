package components

import (
	"loans-service/internal/pkg/clock"
	"loans-service/internal/usecase/commands"
	"loans-service/internal/usecase/queries"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	fx.Provide(
		clock.NewRealClock,
		commands.NewLoanCommands,
		queries.NewLoanQueries,
	),
)
