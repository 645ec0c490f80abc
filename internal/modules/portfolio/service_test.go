package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockfolio/internal/clients/alphavantage"
	"stockfolio/internal/domain"
	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/prices"
	"stockfolio/internal/modules/valuation"
)

// stubFetcher serves fixed prices per symbol
type stubFetcher struct {
	prices map[string]decimal.Decimal
}

func (f *stubFetcher) LatestClose(ctx context.Context, symbol string) (alphavantage.DailyClose, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return alphavantage.DailyClose{}, errors.New("unknown symbol")
	}
	return alphavantage.DailyClose{Date: time.Now(), Close: price}, nil
}

type testEnv struct {
	service *Service
	userID  int64
}

func setupService(t *testing.T, fetcher prices.Fetcher) testEnv {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(db))
	require.NoError(t, ledger.InitSchema(db))

	log := zerolog.Nop()
	portfolioRepo := NewRepository(db, log)

	const userID = int64(1)
	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = portfolioRepo.CreateTx(tx, userID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	priceSvc := prices.NewService(fetcher, nil, prices.Config{
		TTL:          time.Minute,
		FetchTimeout: time.Second,
		RetryBackoff: time.Millisecond,
	}, log)

	svc := NewService(
		portfolioRepo,
		ledger.NewRepository(db, log),
		priceSvc,
		valuation.NewEngine(log),
		log,
	)

	return testEnv{service: svc, userID: userID}
}

func TestBuy_RecordsTransaction(t *testing.T) {
	env := setupService(t, &stubFetcher{})

	txn, err := env.service.Buy(context.Background(), env.userID, "aapl", decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", txn.Symbol)
	assert.Equal(t, domain.KindBuy, txn.Kind)

	positions, err := env.service.Positions(env.userID)
	require.NoError(t, err)
	assert.True(t, positions["AAPL"].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestBuy_Validation(t *testing.T) {
	env := setupService(t, &stubFetcher{})

	_, err := env.service.Buy(context.Background(), env.userID, "AAPL", decimal.Zero, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(-1), decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(1), decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestBuy_UnknownUser(t *testing.T) {
	env := setupService(t, &stubFetcher{})

	_, err := env.service.Buy(context.Background(), 999, "AAPL", decimal.NewFromInt(1), decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSell_UsesMarketPrice(t *testing.T) {
	env := setupService(t, &stubFetcher{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(130),
	}})

	_, err := env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)

	txn, err := env.service.Sell(context.Background(), env.userID, "AAPL", decimal.NewFromInt(4))
	require.NoError(t, err)

	assert.Equal(t, domain.KindSell, txn.Kind)
	assert.True(t, txn.Price.Equal(decimal.NewFromInt(130)), "sell priced at market, got %s", txn.Price)
	assert.True(t, txn.Quantity.Equal(decimal.NewFromInt(-4)))

	positions, err := env.service.Positions(env.userID)
	require.NoError(t, err)
	assert.True(t, positions["AAPL"].Quantity.Equal(decimal.NewFromInt(6)))
	assert.True(t, positions["AAPL"].AvgCost.Equal(decimal.NewFromInt(100)), "avg cost unchanged by sell")
}

func TestSell_OversellRejectedWhole(t *testing.T) {
	env := setupService(t, &stubFetcher{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(130),
	}})

	_, err := env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(5), decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = env.service.Sell(context.Background(), env.userID, "AAPL", decimal.NewFromInt(8))
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)

	// No partial fill
	positions, err := env.service.Positions(env.userID)
	require.NoError(t, err)
	assert.True(t, positions["AAPL"].Quantity.Equal(decimal.NewFromInt(5)))
}

func TestSell_AbortsWhenUnpriceable(t *testing.T) {
	env := setupService(t, &stubFetcher{})

	_, err := env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(5), decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = env.service.Sell(context.Background(), env.userID, "AAPL", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	txns, err := env.service.GetTransactions(env.userID)
	require.NoError(t, err)
	assert.Len(t, txns, 1, "failed sell must write nothing")
}

func TestGetValuation_Scenario(t *testing.T) {
	env := setupService(t, &stubFetcher{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(110),
	}})

	// 10 @ 100 + 5 @ 120 -> 15 held, cost basis 1600
	_, err := env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(5), decimal.NewFromInt(120))
	require.NoError(t, err)

	v, err := env.service.GetValuation(context.Background(), env.userID)
	require.NoError(t, err)

	// 15 * 110 = 1650
	assert.True(t, v.TotalValue.Equal(decimal.NewFromInt(1650)), "total = %s", v.TotalValue)
	assert.True(t, v.CostBasis.Equal(decimal.NewFromInt(1600)))
	assert.Equal(t, "0.03125", v.ROI.String())

	require.Len(t, v.Positions, 1)
	assert.Equal(t, "106.67", v.Positions[0].AvgCost.Round(2).String())
}

func TestGetValuation_UnpriceablePositionExcluded(t *testing.T) {
	env := setupService(t, &stubFetcher{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(110),
	}})

	_, err := env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = env.service.Buy(context.Background(), env.userID, "GHOST", decimal.NewFromInt(1), decimal.NewFromInt(50))
	require.NoError(t, err)

	v, err := env.service.GetValuation(context.Background(), env.userID)
	require.NoError(t, err)

	assert.True(t, v.TotalValue.Equal(decimal.NewFromInt(1100)))
	require.Len(t, v.Excluded, 1)
	assert.Equal(t, "GHOST", v.Excluded[0].Symbol)
}

func TestGetValuation_SoldOutSymbolNotValued(t *testing.T) {
	env := setupService(t, &stubFetcher{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(110),
	}})

	_, err := env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(3), decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = env.service.Sell(context.Background(), env.userID, "AAPL", decimal.NewFromInt(3))
	require.NoError(t, err)

	v, err := env.service.GetValuation(context.Background(), env.userID)
	require.NoError(t, err)

	assert.True(t, v.TotalValue.IsZero())
	assert.Empty(t, v.Positions)
}

func TestGetTransactions_LedgerOrder(t *testing.T) {
	env := setupService(t, &stubFetcher{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(120),
	}})

	_, err := env.service.Buy(context.Background(), env.userID, "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = env.service.Sell(context.Background(), env.userID, "AAPL", decimal.NewFromInt(2))
	require.NoError(t, err)

	txns, err := env.service.GetTransactions(env.userID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, domain.KindBuy, txns[0].Kind)
	assert.Equal(t, domain.KindSell, txns[1].Kind)
}
