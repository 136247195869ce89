package config

import (
	"context"
	"fmt"
	"log"

	"github.com/draftea/saga-orchestrator/order-service/application"
	"github.com/draftea/saga-orchestrator/order-service/handlers"
	"github.com/draftea/saga-orchestrator/order-service/infrastructure"
	"github.com/draftea/saga-orchestrator/order-service/steps"
	sharedinfra "github.com/draftea/saga-orchestrator/shared/infrastructure"
	"github.com/draftea/saga-orchestrator/shared/saga"
	"github.com/draftea/saga-orchestrator/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Saga engine
	Registry   *saga.Registry
	SagaStore  saga.StateStore
	Executor   *saga.Executor
	Supervisor *saga.Supervisor

	// Repositories
	OrderRepository *infrastructure.PostgresOrderRepository

	// Use Cases
	PlaceOrder         *application.PlaceOrder
	GetSaga            *application.GetSaga
	CancelOrder        *application.CancelOrder
	ResumeCompensation *application.ResumeCompensation
	FinalizeOrder      *application.FinalizeOrder

	// HTTP Handlers
	OrderHandlers *handlers.OrderHandlers

	// Event Handlers
	OrderEventHandlers *handlers.OrderEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.OrchestratorServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			log.Printf("Failed to initialize telemetry: %v", err)
			// Continue without telemetry rather than failing
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	// Initialize collaborator clients
	inventory := infrastructure.NewHTTPInventoryClient(config.Collaborators.InventoryURL, config.Collaborators.Timeout)
	payments := infrastructure.NewHTTPPaymentGateway(config.Collaborators.PaymentURL, config.Collaborators.Timeout)
	shipments := infrastructure.NewHTTPShipmentClient(config.Collaborators.ShippingURL, config.Collaborators.Timeout)

	// Initialize the saga engine
	definition, err := steps.NewPlaceOrderDefinition(inventory, payments, shipments,
		saga.LoggingMiddleware(), saga.TelemetryMiddleware())
	if err != nil {
		return nil, fmt.Errorf("failed to build place-order definition: %w", err)
	}

	deps.Registry = saga.NewRegistry()
	if err := deps.Registry.Register(definition); err != nil {
		return nil, fmt.Errorf("failed to register place-order definition: %w", err)
	}

	deps.SagaStore = sharedinfra.NewPostgresSagaStore(db)
	deps.Executor = saga.NewExecutor(deps.Registry, deps.SagaStore, eventPublisher)
	deps.Supervisor = saga.NewSupervisor(deps.SagaStore, deps.Executor, saga.SupervisorConfig{
		ScanInterval:              config.Saga.ScanInterval,
		LeaseTimeout:              config.Saga.LeaseTimeout,
		MaxConcurrent:             config.Saga.MaxConcurrent,
		RedriveCompensationFailed: config.Saga.RedriveCompensationFailed,
	})

	// Initialize repositories
	deps.OrderRepository = infrastructure.NewPostgresOrderRepository(db)

	// Initialize use cases
	deps.PlaceOrder = application.NewPlaceOrder(deps.OrderRepository, deps.SagaStore, definition, deps.Executor)
	deps.GetSaga = application.NewGetSaga(deps.SagaStore, deps.Registry)
	deps.CancelOrder = application.NewCancelOrder(deps.Executor)
	deps.ResumeCompensation = application.NewResumeCompensation(deps.Executor)
	deps.FinalizeOrder = application.NewFinalizeOrder(deps.OrderRepository, deps.SagaStore, eventPublisher)

	// Initialize handlers
	deps.OrderHandlers = handlers.NewOrderHandlers(deps.PlaceOrder, deps.GetSaga, deps.CancelOrder, deps.ResumeCompensation)
	deps.OrderEventHandlers = handlers.NewOrderEventHandlers(deps.FinalizeOrder, deps.CancelOrder)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.Supervisor != nil {
		d.Supervisor.Stop()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
