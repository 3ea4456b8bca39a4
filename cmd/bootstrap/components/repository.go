package components

import (
	"loans-service/internal/infra/catalog"
	repo_impl "loans-service/internal/infra/repository"
	"loans-service/internal/usecase/commands"
	"loans-service/internal/usecase/queries"
	"loans-service/internal/usecase/resilience"

	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		// Loan repository serves the strategies, commands and queries.
		fx.Annotate(
			repo_impl.NewLoanRepository,
			fx.As(new(resilience.LoanStore)),
		),
		fx.Annotate(
			repo_impl.NewLoanRepository,
			fx.As(new(commands.LoanReturnStore)),
		),
		fx.Annotate(
			repo_impl.NewLoanRepository,
			fx.As(new(queries.LoanReadStore)),
		),
		// Outbox
		fx.Annotate(
			repo_impl.NewOutboxRepository,
			fx.As(new(resilience.OutboxStore)),
		),
		// Books-service collaborator
		catalog.NewClient,
		fx.Annotate(
			catalog.NewClient,
			fx.As(new(resilience.Catalog)),
		),
		fx.Annotate(
			catalog.NewClient,
			fx.As(new(commands.ReturnNotifier)),
		),
	),
)
