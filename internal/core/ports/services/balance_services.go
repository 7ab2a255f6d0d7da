package services

import (
	"context"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// BalanceMutatorSvc defines every operation that changes a passenger's balance or route.
// An empty operationID is replaced with a fresh one; callers that may retry must supply
// their own so a retry is recognised as the same operation.
type BalanceMutatorSvc interface {
	// DeductFare charges a boarding fare. It never lets the balance go below zero.
	DeductFare(ctx context.Context, operationID, passengerID string, fareAmount decimal.Decimal, conductorID, routeID string) (*domain.MutationResult, error)

	// AddBalance credits a top-up.
	AddBalance(ctx context.Context, operationID, passengerID string, amount decimal.Decimal, conductorID, routeID, notes string) (*domain.MutationResult, error)

	// AdjustBalance sets the balance to targetBalance and records why.
	AdjustBalance(ctx context.Context, operationID, passengerID string, targetBalance decimal.Decimal, conductorID, routeID, reason string) (*domain.MutationResult, error)

	// TransferRoute moves a passenger to another route. A failed audit write is
	// reported through MutationResult.AuditWarning, not as an error.
	TransferRoute(ctx context.Context, operationID, passengerID, newRouteID, conductorID string) (*domain.MutationResult, error)

	// Apply executes a serialized operation of any type.
	Apply(ctx context.Context, op domain.Operation) (*domain.MutationResult, error)
}
