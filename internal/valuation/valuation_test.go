package valuation

import (
    "testing"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fullQuote(code, last, prev string) quote.Quote {
    return quote.Quote{
        Code:      code,
        Last:      dec(last),
        PrevClose: decimal.NewNullDecimal(dec(prev)),
    }
}

func TestValuate_SingleResolvedHolding(t *testing.T) {
    holdings := []Holding{{Code: "600000", Name: "浦发银行", Shares: dec("100"), Cost: dec("10.0")}}
    quotes := map[string]quote.Quote{"600000": fullQuote("600000", "12.0", "11.0")}

    rows, totals := Valuate(holdings, quotes, dec("2000"))
    require.Len(t, rows, 1)
    r := rows[0]

    require.True(t, r.MarketValue.Valid)
    assert.True(t, r.MarketValue.Decimal.Equal(dec("1200")), "market_value = %s", r.MarketValue.Decimal)
    require.True(t, r.TodayPnL.Valid)
    assert.True(t, r.TodayPnL.Decimal.Equal(dec("100")))
    require.True(t, r.TodayReturn.Valid)
    assert.True(t, r.TodayReturn.Decimal.Sub(dec("0.0909")).Abs().LessThan(dec("0.0001")), "today_return = %s", r.TodayReturn.Decimal)
    require.True(t, r.TotalPnL.Valid)
    assert.True(t, r.TotalPnL.Decimal.Equal(dec("200")))
    require.True(t, r.TotalReturn.Valid)
    assert.True(t, r.TotalReturn.Decimal.Equal(dec("0.2")))

    assert.True(t, totals.MarketValue.Equal(dec("1200")))
    assert.True(t, totals.CashEstimate.Equal(dec("800")))
    require.True(t, totals.OverallReturn.Valid)
    assert.True(t, totals.OverallReturn.Decimal.Equal(dec("0.2")))
}

func TestValuate_UnresolvedHoldingStaysAbsentNotZero(t *testing.T) {
    holdings := []Holding{
        {Code: "600000", Shares: dec("100"), Cost: dec("10.0")},
        {Code: "000001", Shares: dec("50"), Cost: dec("8.0")},
    }
    quotes := map[string]quote.Quote{"600000": fullQuote("600000", "12.0", "11.0")}

    rows, totals := Valuate(holdings, quotes, dec("2000"))
    require.Len(t, rows, 2)

    missing := rows[1]
    assert.False(t, missing.Last.Valid)
    assert.False(t, missing.MarketValue.Valid)
    assert.False(t, missing.TodayPnL.Valid)
    assert.False(t, missing.TotalPnL.Valid)
    assert.False(t, missing.TotalReturn.Valid)

    // totals only sum present values
    assert.True(t, totals.MarketValue.Equal(dec("1200")))
    assert.True(t, totals.TotalPnL.Equal(dec("200")))
    // ...but the cost basis covers ALL holdings
    assert.True(t, totals.CostBasis.Equal(dec("1400")))
    require.True(t, totals.OverallReturn.Valid)
    assert.True(t, totals.OverallReturn.Decimal.Equal(dec("200").Div(dec("1400"))))
}

func TestValuate_LastOnlyQuoteSkipsTodayFields(t *testing.T) {
    holdings := []Holding{{Code: "600000", Shares: dec("100"), Cost: dec("10.0")}}
    quotes := map[string]quote.Quote{"600000": {Code: "600000", Last: dec("12.0")}}

    rows, _ := Valuate(holdings, quotes, dec("2000"))
    r := rows[0]
    assert.True(t, r.MarketValue.Valid)
    assert.True(t, r.TotalPnL.Valid)
    assert.False(t, r.TodayPnL.Valid)
    assert.False(t, r.TodayReturn.Valid)
}

func TestValuate_ZeroCostMeansNoTotalReturn(t *testing.T) {
    holdings := []Holding{{Code: "600000", Shares: dec("100"), Cost: decimal.Zero}}
    quotes := map[string]quote.Quote{"600000": fullQuote("600000", "12.0", "11.0")}

    rows, totals := Valuate(holdings, quotes, dec("2000"))
    assert.False(t, rows[0].TotalReturn.Valid)
    // zero aggregate cost basis leaves overall return undefined too
    assert.False(t, totals.OverallReturn.Valid)
    assert.True(t, rows[0].TotalPnL.Valid)
}

func TestValuate_CashEstimateFloorsAtZero(t *testing.T) {
    holdings := []Holding{{Code: "600000", Shares: dec("1000"), Cost: dec("10.0")}}
    quotes := map[string]quote.Quote{"600000": fullQuote("600000", "12.0", "11.0")}

    _, totals := Valuate(holdings, quotes, dec("2000"))
    assert.True(t, totals.MarketValue.Equal(dec("12000")))
    assert.True(t, totals.CashEstimate.IsZero())
}

func TestValuate_NoQuotesAtAll(t *testing.T) {
    holdings := []Holding{{Code: "600000", Shares: dec("100"), Cost: dec("10.0")}}

    rows, totals := Valuate(holdings, map[string]quote.Quote{}, dec("2000"))
    require.Len(t, rows, 1)
    assert.True(t, totals.MarketValue.IsZero())
    assert.True(t, totals.TotalPnL.IsZero())
    assert.True(t, totals.CashEstimate.Equal(dec("2000")))
    // positive cost basis but nothing resolved: absent, not 0/basis
    assert.True(t, totals.CostBasis.Equal(dec("1000")))
    assert.False(t, totals.OverallReturn.Valid)
}

func TestValuate_PrefixedHoldingCodeStillResolves(t *testing.T) {
    holdings := []Holding{{Code: "sh600000", Shares: dec("100"), Cost: dec("10.0")}}
    quotes := map[string]quote.Quote{"600000": fullQuote("600000", "12.0", "11.0")}

    rows, _ := Valuate(holdings, quotes, dec("2000"))
    assert.True(t, rows[0].MarketValue.Valid)
}

func TestValuate_Idempotent(t *testing.T) {
    holdings := []Holding{
        {Code: "600000", Shares: dec("100"), Cost: dec("10.0")},
        {Code: "000001", Shares: dec("50"), Cost: dec("8.0")},
    }
    quotes := map[string]quote.Quote{"600000": fullQuote("600000", "12.0", "11.0")}

    rows1, totals1 := Valuate(holdings, quotes, dec("2000"))
    rows2, totals2 := Valuate(holdings, quotes, dec("2000"))
    assert.Equal(t, rows1, rows2)
    assert.Equal(t, totals1, totals2)
}
