package indicator

import (
	"time"

	"github.com/shopspring/decimal"
)

type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
	Width  float64 `json:"width"`
}

type StochRSI struct {
	Value float64 `json:"value"`
	K     float64 `json:"k"`
	D     float64 `json:"d"`
}

type MACD struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Record holds the indicator values of a single bar. A field is absent while
// its indicator has not accumulated enough history.
type Record struct {
	Time      time.Time                 `json:"time"`
	Price     decimal.Decimal           `json:"price"`
	EMA       map[int]Optional[float64] `json:"ema"`
	Bollinger Optional[Bands]           `json:"bollinger"`
	StochRSI  Optional[StochRSI]        `json:"stoch_rsi"`
	MACD      Optional[MACD]            `json:"macd"`
}

func (r Record) Close() float64 {
	return r.Price.InexactFloat64()
}
