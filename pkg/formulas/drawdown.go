package formulas

// MaxDrawdown is the largest peak-to-trough loss in a price series,
// as a positive fraction (0.25 = 25% below the peak). Nil when fewer
// than two prices exist.
func MaxDrawdown(prices []float64) *float64 {
	if len(prices) < 2 {
		return nil
	}

	peak := prices[0]
	maxDD := 0.0

	for _, price := range prices[1:] {
		if price > peak {
			peak = price
			continue
		}
		if peak > 0 {
			dd := (peak - price) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return &maxDD
}
