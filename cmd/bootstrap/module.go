package bootstrap

import (
	"loans-service/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	DBModule,
	BrokerModule,
	components.RepositoryModule,
	components.ResilienceModule,
	components.UseCaseModule,
	components.HandlerModule,
)
