package price

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straitwatch/strait_radar/pkg/config"
)

func testSymbol() config.SymbolConfig {
	return config.SymbolConfig{
		BasePrice:  2650,
		Volatility: 0.02,
		MinSane:    1000,
		Currency:   "USD",
		Unit:       "盎司",
	}
}

func TestSimulatedQuoteDeterministic(t *testing.T) {
	day := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	p1, c1 := SimulatedQuote(2650, 0.02, day)
	// 同一天不同時刻也要得到一模一樣的值
	p2, c2 := SimulatedQuote(2650, 0.02, day.Add(9*time.Hour))

	assert.Equal(t, p1, p2)
	assert.Equal(t, c1, c2)
}

func TestSimulatedQuoteVariesByDay(t *testing.T) {
	d1 := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

	p1, _ := SimulatedQuote(2650, 0.02, d1)
	p2, _ := SimulatedQuote(2650, 0.02, d2)

	assert.NotEqual(t, p1, p2)
}

func TestSimulatedQuoteWithinVolatility(t *testing.T) {
	base, vol := 550.0, 0.02
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 60; i++ {
		p, c := SimulatedQuote(base, vol, day.AddDate(0, 0, i))
		assert.InDelta(t, base, p, base*vol+0.01)
		assert.InDelta(t, 0, c, base*vol+0.01)
	}
}

func TestNormalizeRealQuote(t *testing.T) {
	s := NewService(config.PriceConfig{})

	got := s.Normalize(&RawQuote{Price: 2701.105, Change: -3.2}, testSymbol(), "yahoo")

	assert.Equal(t, "2701.10", got.Price)
	assert.Equal(t, "-3.20", got.Change)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "盎司", got.Unit)
	assert.Equal(t, "yahoo", got.Source)
	assert.NotEmpty(t, got.LastUpdate)
}

func TestNormalizeNilFallsBackToSimulated(t *testing.T) {
	s := NewService(config.PriceConfig{})
	day := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }

	got := s.Normalize(nil, testSymbol(), "simulated")

	wantPrice, _ := SimulatedQuote(2650, 0.02, day)
	assert.Equal(t, "simulated", got.Source)
	assert.Equal(t, formatted(wantPrice), got.Price)
}

func TestNormalizeInsanePriceFallsBackToSimulated(t *testing.T) {
	s := NewService(config.PriceConfig{})

	// 低於健全下限的價格視同來源失效
	got := s.Normalize(&RawQuote{Price: 12.34}, testSymbol(), "investing.com")

	assert.Equal(t, "simulated", got.Source)
}

func TestFetchYahoo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":2650.5,"previousClose":2640.0}}]}}`))
	}))
	defer ts.Close()

	s := NewService(config.PriceConfig{FetchTimeout: 3, ScrapeTimeout: 10})

	got, err := s.fetchYahoo(context.Background(), ts.URL)

	require.NoError(t, err)
	assert.InDelta(t, 2650.5, got.Price, 0.001)
	assert.InDelta(t, 10.5, got.Change, 0.001)
}

func TestFetchYahooEmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[]}}`))
	}))
	defer ts.Close()

	s := NewService(config.PriceConfig{ScrapeTimeout: 10})

	_, err := s.fetchYahoo(context.Background(), ts.URL)
	assert.Error(t, err)
}

func TestFetchYahooUsesPreviousCloseWhenMarketPriceZero(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":0,"previousClose":2640.0}}]}}`))
	}))
	defer ts.Close()

	s := NewService(config.PriceConfig{ScrapeTimeout: 10})

	got, err := s.fetchYahoo(context.Background(), ts.URL)

	require.NoError(t, err)
	assert.InDelta(t, 2640.0, got.Price, 0.001)
}

func TestScrapePage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<span data-test="instrument-price-last">2,650.35</span>` +
			`<span data-test="instrument-price-change">-12.50</span>`))
	}))
	defer ts.Close()

	s := NewService(config.PriceConfig{ScrapeTimeout: 10})
	sym := testSymbol()
	sym.PageURL = ts.URL

	got, err := s.scrapePage(context.Background(), sym)

	require.NoError(t, err)
	assert.InDelta(t, 2650.35, got.Price, 0.001)
	assert.InDelta(t, -12.50, got.Change, 0.001)
}

func TestFetchAllSourcesDownUsesSimulated(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	sym := testSymbol()
	sym.YahooURL = down.URL
	sym.PageURL = down.URL
	s := NewService(config.PriceConfig{
		FetchTimeout:  1,
		ScrapeTimeout: 1,
		Gold:          sym,
		Wheat:         sym,
	})
	day := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }

	got := s.Fetch(context.Background())

	assert.Equal(t, "simulated", got.Gold.Source)
	assert.Equal(t, "simulated", got.Wheat.Source)
	// 同日模擬值可重現
	again := s.Fetch(context.Background())
	assert.Equal(t, got.Gold.Price, again.Gold.Price)
}

func formatted(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
