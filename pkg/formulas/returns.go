package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily series
const TradingDaysPerYear = 252

// LogReturns converts a price series to daily log returns. Non-positive
// prices are skipped since log is undefined there.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}

	return returns
}

// AnnualizedReturn is the mean daily log return scaled to a year
func AnnualizedReturn(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return stat.Mean(dailyReturns, nil) * TradingDaysPerYear
}

// AnnualizedVolatility is the std dev of daily returns scaled by
// sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	return stat.StdDev(dailyReturns, nil) * math.Sqrt(TradingDaysPerYear)
}
