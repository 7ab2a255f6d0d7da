package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by every monetary amount.
const MoneyScale = 2

// Timestamps holds standard audit times for mutable entities.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasMoneyScale reports whether d fits in MoneyScale fractional digits without rounding.
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}
