package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	Count  int64           `json:"count"`
}

// Closes returns the close prices of bars as floats, in order.
func Closes(bars []Bar) []float64 {
	res := make([]float64, len(bars))
	for i, b := range bars {
		res[i] = b.Close.InexactFloat64()
	}
	return res
}
