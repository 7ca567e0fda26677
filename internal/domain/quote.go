package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single market observation for one ticker, produced fresh each
// run. ChangePct is nil when the satisfying provider cannot supply it, which
// is accepted only from the lowest-priority fallback.
type Quote struct {
	Ticker     string
	Price      decimal.Decimal
	ChangePct  *decimal.Decimal
	SourceUsed string
	AsOf       time.Time
}
