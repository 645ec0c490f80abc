package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average series for the given period.
// Entries before the period-th close are undefined and returned as nil
// pointers so callers can distinguish "no value yet" from zero.
func SMA(closes []float64, period int) []*float64 {
	out := make([]*float64, len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}

	sma := talib.Sma(closes, period)
	for i := period - 1; i < len(sma); i++ {
		if !isNaN(sma[i]) {
			v := sma[i]
			out[i] = &v
		}
	}

	return out
}

func isNaN(f float64) bool {
	return f != f
}
