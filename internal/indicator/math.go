package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Every function here returns a series right-aligned to its input and
// shorter than it by the indicator warm-up. An input too short to produce a
// single value yields an empty series.

// MovingAverage is a smoothing function with the same alignment contract.
type MovingAverage func(values []float64, period int) []float64

func EMAWarmup(period int) int {
	return period - 1
}

func SMAWarmup(period int) int {
	return period - 1
}

func BollingerWarmup(period int) int {
	return period - 1
}

func RSIWarmup(period int) int {
	return period
}

func StochRSIWarmup(rsiPeriod, stochPeriod, kPeriod, dPeriod int) int {
	return RSIWarmup(rsiPeriod) + (stochPeriod - 1) + SMAWarmup(kPeriod) + SMAWarmup(dPeriod)
}

func MACDWarmup(slow, signal int) int {
	return (slow - 1) + (signal - 1)
}

// SeedDecay is the weight still carried by the seed of a recursive average
// once it counts as stable.
const SeedDecay = 1e-9

// EMAStabilization is the number of leading bars after which an EMA no longer
// depends on where its input started.
func EMAStabilization(period int) int {
	return stabilization(2/float64(period+1), EMAWarmup(period))
}

// RSIStabilization is EMAStabilization for the Wilder smoothing of RSI.
func RSIStabilization(period int) int {
	return stabilization(1/float64(period), RSIWarmup(period))
}

func stabilization(alpha float64, warmup int) int {
	if alpha >= 1 {
		return warmup
	}
	return warmup + int(math.Ceil(math.Log(SeedDecay)/math.Log(1-alpha)))
}

func EMA(values []float64, period int) []float64 {
	return windowed(values, period, EMAWarmup(period), talib.Ema)
}

func SMA(values []float64, period int) []float64 {
	return windowed(values, period, SMAWarmup(period), talib.Sma)
}

func RSI(values []float64, period int) []float64 {
	if len(values) <= RSIWarmup(period) {
		return []float64{}
	}
	return talib.Rsi(values, period)[RSIWarmup(period):]
}

func Bollinger(values []float64, period int, stdDev float64) []Bands {
	w := BollingerWarmup(period)
	if len(values) <= w {
		return []Bands{}
	}

	upper, middle, lower := talib.BBands(values, period, stdDev, stdDev, talib.SMA)
	res := make([]Bands, len(values)-w)
	for i := range res {
		b := Bands{
			Upper:  upper[w+i],
			Middle: middle[w+i],
			Lower:  lower[w+i],
		}
		if b.Middle != 0 {
			b.Width = (b.Upper - b.Lower) / b.Middle * 100
		}
		res[i] = b
	}

	return res
}

// StochasticRSI applies the stochastic oscillator to the RSI series and
// smooths it into %K and %D. A flat RSI window has a stochastic of zero.
func StochasticRSI(values []float64, rsiPeriod, stochPeriod, kPeriod, dPeriod int) []StochRSI {
	rsi := RSI(values, rsiPeriod)
	hi := windowed(rsi, stochPeriod, stochPeriod-1, talib.Max)
	lo := windowed(rsi, stochPeriod, stochPeriod-1, talib.Min)

	stoch := make([]float64, len(hi))
	for i := range stoch {
		v := rsi[i+stochPeriod-1]
		if r := hi[i] - lo[i]; r > 0 {
			stoch[i] = clamp((v-lo[i])/r*100, 0, 100)
		}
	}

	k := SMA(stoch, kPeriod)
	d := SMA(k, dPeriod)

	res := make([]StochRSI, len(d))
	sOff := len(stoch) - len(d)
	kOff := len(k) - len(d)
	for i := range res {
		res[i] = StochRSI{
			Value: stoch[sOff+i],
			K:     clamp(k[kOff+i], 0, 100),
			D:     clamp(d[i], 0, 100),
		}
	}

	return res
}

// MACDSeries computes the difference of a fast and a slow average, its signal line
// and the histogram between them.
func MACDSeries(values []float64, fast, slow, signal int, oscillator, signalMA MovingAverage) []MACD {
	f := oscillator(values, fast)
	s := oscillator(values, slow)

	diff := make([]float64, len(s))
	off := len(f) - len(s)
	for i := range diff {
		diff[i] = f[off+i] - s[i]
	}

	sig := signalMA(diff, signal)
	res := make([]MACD, len(sig))
	off = len(diff) - len(sig)
	for i := range res {
		m := diff[off+i]
		res[i] = MACD{
			MACD:      m,
			Signal:    sig[i],
			Histogram: m - sig[i],
		}
	}

	return res
}

func windowed(values []float64, period, warmup int, fn func([]float64, int) []float64) []float64 {
	if len(values) <= warmup {
		return []float64{}
	}

	if period == 1 {
		res := make([]float64, len(values))
		copy(res, values)
		return res
	}

	return fn(values, period)[warmup:]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
