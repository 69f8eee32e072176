package main

import (
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/orchestrahq/platform-api/internal/bootstrap"
	"github.com/orchestrahq/platform-api/internal/platform/messaging"
	workflowHandler "github.com/orchestrahq/platform-api/internal/workflows/handler"
)

// Subscribers holds the dependencies required for message processing.
type Subscribers struct {
	natsConn *nats.Conn
	services bootstrap.Services
	logger   *slog.Logger
}

func NewSubscribers(natsConn *nats.Conn, services bootstrap.Services, logger *slog.Logger) *Subscribers {
	return &Subscribers{
		natsConn: natsConn,
		services: services,
		logger:   logger,
	}
}

// Start begins listening for messages on all configured subjects.
// It should be run as a goroutine.
func (s *Subscribers) Start() {
	router := messaging.NewMessageRouter(s.logger)

	eventHandler := workflowHandler.NewWorkflowEventHandler(s.services.WorkflowService, s.logger)
	router.RegisterHandler("app.workflow.start", eventHandler)

	natsSubscriber := messaging.NewNatsSubscriber(
		s.natsConn,
		router,
		"app.workflow.*",
		"platform-api-group",
		s.logger,
	)

	s.logger.Info("starting NATS subscribers with router")
	natsSubscriber.StartListening()
}
