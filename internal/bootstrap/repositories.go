package bootstrap

import (
	"github.com/orchestrahq/platform-api/internal/platform/database"
	"github.com/orchestrahq/platform-api/internal/saga"
	"github.com/orchestrahq/platform-api/internal/saga/persistence"
	"github.com/orchestrahq/platform-api/internal/workflows/handler"
)

type Repositories struct {
	postgres                *database.PostgresDB
	SagaInstanceRepository  saga.InstanceRepository
	WorkflowQueryRepository handler.WorkflowQueryRepository
}

func NewRepositories(postgres *database.PostgresDB) Repositories {
	instanceRepo := persistence.NewSagaInstancePostgresRepository(postgres)
	return Repositories{
		postgres:                postgres,
		SagaInstanceRepository:  instanceRepo,
		WorkflowQueryRepository: instanceRepo,
	}
}
