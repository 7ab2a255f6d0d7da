package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerAggregate is one (day, hour, type) bucket of a conductor's ledger entries.
type LedgerAggregate struct {
	Day             time.Time
	Hour            int
	TransactionType TransactionType
	Count           int
	Total           decimal.Decimal // Sum of signed amounts
	OfflineCount    int
}

// SummaryTotals are the counters shared by every report granularity.
type SummaryTotals struct {
	TransactionCount int             `json:"transactionCount"`
	BoardingCount    int             `json:"boardingCount"`
	TopupCount       int             `json:"topupCount"`
	AdjustmentCount  int             `json:"adjustmentCount"`
	TransferCount    int             `json:"transferCount"`
	OfflineCount     int             `json:"offlineCount"`
	FareCollected    decimal.Decimal `json:"fareCollected"`  // Positive total of boarding fares
	TopupCollected   decimal.Decimal `json:"topupCollected"` // Total credited by top-ups
	NetAdjustment    decimal.Decimal `json:"netAdjustment"`
}

// Add folds an aggregate bucket into the totals.
func (t *SummaryTotals) Add(a LedgerAggregate) {
	t.TransactionCount += a.Count
	t.OfflineCount += a.OfflineCount
	switch a.TransactionType {
	case TransactionBoarding:
		t.BoardingCount += a.Count
		t.FareCollected = t.FareCollected.Add(a.Total.Neg())
	case TransactionTopup:
		t.TopupCount += a.Count
		t.TopupCollected = t.TopupCollected.Add(a.Total)
	case TransactionAdjustment:
		t.AdjustmentCount += a.Count
		t.NetAdjustment = t.NetAdjustment.Add(a.Total)
	case TransactionTransfer:
		t.TransferCount += a.Count
	}
}

// HourlyBucket is one hour of a daily summary.
type HourlyBucket struct {
	Hour int `json:"hour"`
	SummaryTotals
}

// DailySummary is a conductor's activity for one calendar day.
type DailySummary struct {
	ConductorID string         `json:"conductorId"`
	Date        time.Time      `json:"date"`
	Totals      SummaryTotals  `json:"totals"`
	Hourly      []HourlyBucket `json:"hourly"` // Always 24 buckets
}

// DailyRow is one day of a range summary.
type DailyRow struct {
	Date time.Time `json:"date"`
	SummaryTotals
}

// DateRangeSummary is a conductor's activity over an inclusive range of days.
type DateRangeSummary struct {
	ConductorID string        `json:"conductorId"`
	StartDate   time.Time     `json:"startDate"`
	EndDate     time.Time     `json:"endDate"`
	Totals      SummaryTotals `json:"totals"`
	Days        []DailyRow    `json:"days"` // One row per day, zero-filled
}
