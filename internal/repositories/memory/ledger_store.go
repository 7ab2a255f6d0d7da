// Package memory holds an in-process ledger store with the same locking contract as
// the Postgres store. It backs the service tests and local tooling.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// LedgerStore keeps passengers, ledger entries and reference data in memory.
// One mutex serializes every write, which gives each mutation the isolation
// of the Postgres row lock.
type LedgerStore struct {
	mu           sync.Mutex
	passengers   map[string]domain.Passenger
	transactions []domain.Transaction
	index        map[string]int
	routes       map[string]domain.Route
	conductors   map[string]domain.Conductor
	failures     map[string]error
	now          func() time.Time
}

var (
	_ portsrepo.LedgerRepositoryFacade = (*LedgerStore)(nil)
	_ portsrepo.ReferenceReader        = (*LedgerStore)(nil)
	_ portsrepo.ReportingRepository    = (*LedgerStore)(nil)
)

// NewLedgerStore creates an empty store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		passengers: make(map[string]domain.Passenger),
		index:      make(map[string]int),
		routes:     make(map[string]domain.Route),
		conductors: make(map[string]domain.Conductor),
		failures:   make(map[string]error),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used to stamp entries.
func (s *LedgerStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next call of the named method return err.
func (s *LedgerStore) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *LedgerStore) takeFailure(method string) error {
	err, ok := s.failures[method]
	if ok {
		delete(s.failures, method)
	}
	return err
}

// PutRoute inserts or replaces a route.
func (s *LedgerStore) PutRoute(route domain.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[route.RouteID] = route
}

// PutConductor inserts or replaces a conductor.
func (s *LedgerStore) PutConductor(conductor domain.Conductor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conductors[conductor.ConductorID] = conductor
}

// SetSnapshotBalance overwrites a passenger's snapshot without writing a ledger entry.
// It exists to simulate drift.
func (s *LedgerStore) SetSnapshotBalance(passengerID string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.passengers[passengerID]; ok {
		p.CurrentBalance = balance
		s.passengers[passengerID] = p
	}
}

func (s *LedgerStore) FindRouteByID(ctx context.Context, routeID string) (*domain.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	route, ok := s.routes[routeID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &route, nil
}

func (s *LedgerStore) FindConductorByID(ctx context.Context, conductorID string) (*domain.Conductor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conductor, ok := s.conductors[conductorID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &conductor, nil
}

func (s *LedgerStore) SavePassenger(ctx context.Context, passenger domain.Passenger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.passengers[passenger.PassengerID]; exists {
		return apperrors.ErrDuplicate
	}
	if passenger.LegacyID != nil {
		for _, p := range s.passengers {
			if p.LegacyID != nil && *p.LegacyID == *passenger.LegacyID {
				return apperrors.ErrDuplicate
			}
		}
	}
	s.passengers[passenger.PassengerID] = passenger
	return nil
}

func (s *LedgerStore) SetPassengerActive(ctx context.Context, passengerID string, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passengers[passengerID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.IsActive = active
	p.UpdatedAt = now
	s.passengers[passengerID] = p
	return nil
}

func (s *LedgerStore) FindPassengerByID(ctx context.Context, passengerID string) (*domain.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passengers[passengerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (s *LedgerStore) FindPassengerByLegacyID(ctx context.Context, legacyID string) (*domain.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.passengers {
		if p.LegacyID != nil && *p.LegacyID == legacyID {
			return &p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// RecordMutation mirrors the Postgres store: lock, replay check, rule, append, snapshot.
func (s *LedgerStore) RecordMutation(ctx context.Context, passengerID string, draft domain.TransactionDraft, rule domain.BalanceRule) (*domain.MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("RecordMutation"); err != nil {
		return nil, err
	}
	return s.recordLocked(ctx, passengerID, draft, rule)
}

func (s *LedgerStore) recordLocked(ctx context.Context, passengerID string, draft domain.TransactionDraft, rule domain.BalanceRule) (*domain.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("mutation cancelled", err)
	}

	p, ok := s.passengers[passengerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	if i, exists := s.index[draft.TransactionID]; exists {
		existing := s.transactions[i]
		return &domain.MutationResult{Passenger: p, Transaction: &existing, Replayed: true}, nil
	}

	amount, err := rule(p)
	if err != nil {
		return nil, err
	}

	after := p.CurrentBalance.Add(amount)
	if after.IsNegative() {
		return nil, apperrors.NewValidationError("", "violates passengers_balance_non_negative")
	}

	now := s.now()
	txn := domain.Transaction{
		TransactionID:   draft.TransactionID,
		PassengerID:     passengerID,
		ConductorID:     draft.ConductorID,
		RouteID:         draft.RouteID,
		TransactionType: draft.TransactionType,
		Amount:          amount,
		BalanceBefore:   p.CurrentBalance,
		BalanceAfter:    after,
		Notes:           draft.Notes,
		IsOffline:       draft.IsOffline,
		SyncStatus:      draft.InitialSyncStatus(),
		TransactionDate: now,
		RecordedAt:      draft.RecordedAt,
		CreatedAt:       now,
	}
	s.index[txn.TransactionID] = len(s.transactions)
	s.transactions = append(s.transactions, txn)

	p.CurrentBalance = after
	p.UpdatedAt = now
	s.passengers[passengerID] = p

	return &domain.MutationResult{Passenger: p, Transaction: &txn}, nil
}

func (s *LedgerStore) AppendTransferAudit(ctx context.Context, passengerID string, draft domain.TransactionDraft) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("AppendTransferAudit"); err != nil {
		return nil, err
	}
	res, err := s.recordLocked(ctx, passengerID, draft, func(domain.Passenger) (decimal.Decimal, error) {
		return decimal.Zero, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Transaction, nil
}

func (s *LedgerStore) UpdatePassengerRoute(ctx context.Context, passengerID, routeID string, now time.Time) (*domain.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("UpdatePassengerRoute"); err != nil {
		return nil, err
	}
	p, ok := s.passengers[passengerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if !p.IsActive {
		return nil, apperrors.NewValidationError("passengerId", "passenger is inactive")
	}
	p.RouteID = &routeID
	p.UpdatedAt = now
	s.passengers[passengerID] = p
	return &p, nil
}

func (s *LedgerStore) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[transactionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	txn := s.transactions[i]
	return &txn, nil
}

func (s *LedgerStore) ListTransactionsByPassenger(ctx context.Context, passengerID string, limit int) ([]domain.Transaction, error) {
	return s.listNewestFirst(limit, func(t domain.Transaction) bool { return t.PassengerID == passengerID }), nil
}

func (s *LedgerStore) ListTransactionsByConductor(ctx context.Context, conductorID string, limit int) ([]domain.Transaction, error) {
	return s.listNewestFirst(limit, func(t domain.Transaction) bool { return t.ConductorID == conductorID }), nil
}

// listNewestFirst walks entries in reverse insertion order, which matches transaction_date DESC, seq DESC.
func (s *LedgerStore) listNewestFirst(limit int, match func(domain.Transaction) bool) []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if match(s.transactions[i]) {
			out = append(out, s.transactions[i])
		}
	}
	return out
}

func (s *LedgerStore) UpdateSyncStatus(ctx context.Context, transactionID string, from, to domain.SyncStatus) (domain.SyncStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[transactionID]
	if !ok {
		return "", false, apperrors.ErrNotFound
	}
	if s.transactions[i].SyncStatus != from {
		return s.transactions[i].SyncStatus, false, nil
	}
	s.transactions[i].SyncStatus = to
	return to, true, nil
}

func (s *LedgerStore) ListBalanceChecks(ctx context.Context, passengerID string) ([]domain.BalanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checks := make(map[string]*domain.BalanceCheck)
	for id, p := range s.passengers {
		if passengerID != "" && id != passengerID {
			continue
		}
		checks[id] = &domain.BalanceCheck{
			PassengerID:     id,
			SnapshotBalance: p.CurrentBalance,
			OpeningBalance:  p.OpeningBalance,
		}
	}
	for _, t := range s.transactions {
		c, ok := checks[t.PassengerID]
		if !ok {
			continue
		}
		id, after := t.TransactionID, t.BalanceAfter
		c.LatestTransactionID, c.LatestBalanceAfter = &id, &after
		if !t.IsBalanced() {
			c.UnbalancedTransactionIDs = append(c.UnbalancedTransactionIDs, t.TransactionID)
		}
	}

	out := make([]domain.BalanceCheck, 0, len(checks))
	for _, c := range checks {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PassengerID < out[j].PassengerID })
	return out, nil
}

// CorruptTransaction overwrites an entry's balance_after to simulate a tampered ledger.
func (s *LedgerStore) CorruptTransaction(transactionID string, balanceAfter decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[transactionID]; ok {
		s.transactions[i].BalanceAfter = balanceAfter
	}
}

func (s *LedgerStore) GetConductorAggregates(ctx context.Context, conductorID string, from, to time.Time, loc *time.Location) ([]domain.LedgerAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type bucketKey struct {
		day  time.Time
		hour int
		typ  domain.TransactionType
	}
	buckets := make(map[bucketKey]*domain.LedgerAggregate)
	var keys []bucketKey

	for _, t := range s.transactions {
		if t.ConductorID != conductorID {
			continue
		}
		at := t.TransactionDate
		if t.RecordedAt != nil {
			at = *t.RecordedAt
		}
		if at.Before(from) || !at.Before(to) {
			continue
		}
		local := at.In(loc)
		key := bucketKey{
			day:  time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			hour: local.Hour(),
			typ:  t.TransactionType,
		}
		agg, ok := buckets[key]
		if !ok {
			agg = &domain.LedgerAggregate{Day: key.day, Hour: key.hour, TransactionType: key.typ}
			buckets[key] = agg
			keys = append(keys, key)
		}
		agg.Count++
		agg.Total = agg.Total.Add(t.Amount)
		if t.IsOffline {
			agg.OfflineCount++
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].day.Equal(keys[j].day) {
			return keys[i].day.Before(keys[j].day)
		}
		if keys[i].hour != keys[j].hour {
			return keys[i].hour < keys[j].hour
		}
		return keys[i].typ < keys[j].typ
	})
	out := make([]domain.LedgerAggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, *buckets[k])
	}
	return out, nil
}
