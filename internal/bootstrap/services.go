package bootstrap

import (
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/orchestrahq/platform-api/internal/platform/eventstore"
	"github.com/orchestrahq/platform-api/internal/platform/messaging"
	"github.com/orchestrahq/platform-api/internal/saga"
	"github.com/orchestrahq/platform-api/internal/workflows/application"
	"github.com/orchestrahq/platform-api/internal/workflows/cache"
	"github.com/orchestrahq/platform-api/internal/workflows/handler"
	"github.com/redis/go-redis/v9"
)

type Services struct {
	WorkflowService handler.WorkflowCommandService
}

func NewServices(
	repositories Repositories, natsConn *nats.Conn, rdb *redis.Client, logger *slog.Logger,
) Services {
	publisher := messaging.NewNatsPublisher(natsConn, logger)
	store := eventstore.NewPostgresStore(repositories.postgres.Pool)
	orchestrator := saga.NewOrchestrator(store, repositories.SagaInstanceRepository, logger)
	states := cache.NewWorkflowStateStore(rdb)

	workflowService := application.NewWorkflowService(orchestrator, states, publisher, logger)

	return Services{
		WorkflowService: workflowService,
	}
}
