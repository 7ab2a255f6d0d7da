package services

import (
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	container.Balance = NewBalanceService(
		repos.LedgerRepo,
		repos.ReferenceRepo,
		WithMutationTimeout(cfg.MutationTimeout),
	)
	container.Passenger = NewPassengerService(repos.LedgerRepo, repos.ReferenceRepo)
	container.Reporting = NewReportingService(repos.ReportingRepo, WithReportLocation(cfg.ReportTimezone))
	container.Reference = NewReferenceService(repos.ReferenceRepo)
	container.Sync = NewSyncStatusService(repos.LedgerRepo)
	container.Verifier = NewLedgerVerifier(repos.LedgerRepo)

	return container
}

// NewAgentContainer wires the conductor agent around its local queue and the path to the ledger.
func NewAgentContainer(cfg *config.AgentConfig, queueRepo portsrepo.QueueRepositoryFacade, gateway portssvc.LedgerGateway) *portssvc.AgentContainer {
	queue := NewOfflineQueueService(queueRepo, WithQueueMaxLength(cfg.QueueMaxLength))
	reconciler := NewReconciler(queueRepo, gateway, ReconcilerConfig{
		Interval:    cfg.SyncInterval,
		MaxAttempts: cfg.SyncMaxAttempts,
		BackoffBase: cfg.SyncBackoffBase,
		BackoffMax:  cfg.SyncBackoffMax,
		PingTimeout: cfg.ConnectivityTimeout,
	})

	return &portssvc.AgentContainer{
		Queue:      queue,
		Executor:   NewFallbackExecutor(gateway, queue, WithReplayTrigger(reconciler.Trigger)),
		Reconciler: reconciler,
	}
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.PassengerSvcFacade = (*passengerService)(nil)
	_ portssvc.ReportingService   = (*reportingService)(nil)
)
