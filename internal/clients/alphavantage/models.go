package alphavantage

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyClose is one point of a daily close series
type DailyClose struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// dailyResponse is the TIME_SERIES_DAILY payload. The series is keyed
// by date string; everything else only appears on error responses.
type dailyResponse struct {
	Series       map[string]dailyEntry `json:"Time Series (Daily)"`
	Note         string                `json:"Note"`
	Information  string                `json:"Information"`
	ErrorMessage string                `json:"Error Message"`
}

type dailyEntry struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}
