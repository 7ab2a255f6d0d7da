package services

// ServiceContainer holds instances of all the ledger server's services.
// This is the main entry point for accessing service functionality and
// is used throughout the application, particularly in the handlers.
type ServiceContainer struct {
	Balance   BalanceMutatorSvc
	Passenger PassengerSvcFacade
	Reporting ReportingService
	Reference ReferenceSvc
	Sync      SyncStatusSvc
	Verifier  LedgerVerifierSvc
}

// AgentContainer holds the services run by the conductor agent next to the offline queue.
type AgentContainer struct {
	Executor   OperationExecutor
	Queue      OfflineQueueSvc
	Reconciler ReconcilerSvc
}
