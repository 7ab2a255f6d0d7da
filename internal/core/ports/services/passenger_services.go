package services

import (
	"context"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/SscSPs/fare_collection_app/internal/dto"
)

// PassengerReaderSvc defines read operations for passengers and their ledger
type PassengerReaderSvc interface {
	GetPassenger(ctx context.Context, passengerID string) (*domain.Passenger, error)
	FindPassengerByLegacyID(ctx context.Context, legacyID string) (*domain.Passenger, error)
	GetTransactionsByPassenger(ctx context.Context, passengerID string, limit int) ([]domain.Transaction, error)
	GetTransactionsByConductor(ctx context.Context, conductorID string, limit int) ([]domain.Transaction, error)
}

// PassengerLifecycleSvc defines registration and soft deletion of passengers
type PassengerLifecycleSvc interface {
	RegisterPassenger(ctx context.Context, req dto.RegisterPassengerRequest) (*domain.Passenger, error)
	DeactivatePassenger(ctx context.Context, passengerID string) error
	RestorePassenger(ctx context.Context, passengerID string) error
}

// PassengerSvcFacade combines all passenger-related service interfaces
type PassengerSvcFacade interface {
	PassengerReaderSvc
	PassengerLifecycleSvc
}
