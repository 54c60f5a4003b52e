package valuation

import (
    "github.com/shopspring/decimal"

    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
)

// Holding is one position as loaded from the holdings file: code, name,
// share count and per-share cost. Read-only input for a whole cycle.
type Holding struct {
    Code   string          `json:"code"`
    Name   string          `json:"name"`
    Shares decimal.Decimal `json:"shares"`
    Cost   decimal.Decimal `json:"cost"`
}

// Row carries the derived metrics for one holding. Every derived field
// is a NullDecimal: an unresolved quote leaves the field invalid rather
// than zero, so "unknown" and "worth nothing" stay distinguishable all
// the way to the rendered output.
type Row struct {
    Code        string              `json:"code"`
    Name        string              `json:"name"`
    Shares      decimal.Decimal     `json:"shares"`
    Cost        decimal.Decimal     `json:"cost"`
    Last        decimal.NullDecimal `json:"last"`
    PrevClose   decimal.NullDecimal `json:"prev_close"`
    MarketValue decimal.NullDecimal `json:"market_value"`
    TodayPnL    decimal.NullDecimal `json:"today_pnl"`
    TodayReturn decimal.NullDecimal `json:"today_return"`
    TotalPnL    decimal.NullDecimal `json:"total_pnl"`
    TotalReturn decimal.NullDecimal `json:"total_return"`
}

// Totals aggregates present row values only; absent fields contribute
// nothing (they are never coerced to zero). CostBasis covers ALL
// holdings, resolved or not, which is also the denominator of
// OverallReturn.
type Totals struct {
    MarketValue   decimal.Decimal     `json:"market_value"`
    TodayPnL      decimal.Decimal     `json:"today_pnl"`
    TotalPnL      decimal.Decimal     `json:"total_pnl"`
    CostBasis     decimal.Decimal     `json:"cost_basis"`
    CashEstimate  decimal.Decimal     `json:"cash_estimate"`
    OverallReturn decimal.NullDecimal `json:"overall_return"`
}

var one = decimal.NewFromInt(1)

// Valuate derives per-holding rows and portfolio totals from one fetch
// cycle's quotes. Pure: no I/O, inputs untouched, identical inputs give
// identical outputs.
func Valuate(holdings []Holding, quotes map[string]quote.Quote, totalAssets decimal.Decimal) ([]Row, Totals) {
    rows := make([]Row, 0, len(holdings))
    var totals Totals

    resolved := 0
    for _, h := range holdings {
        r := Row{Code: h.Code, Name: h.Name, Shares: h.Shares, Cost: h.Cost}
        totals.CostBasis = totals.CostBasis.Add(h.Cost.Mul(h.Shares))

        code, err := quote.Normalize(h.Code)
        if err == nil {
            if q, ok := quotes[code]; ok {
                last := q.Last
                r.Last = decimal.NewNullDecimal(last)
                r.PrevClose = q.PrevClose
                if r.Name == "" { r.Name = q.Name }

                r.MarketValue = decimal.NewNullDecimal(last.Mul(h.Shares))
                r.TotalPnL = decimal.NewNullDecimal(last.Sub(h.Cost).Mul(h.Shares))
                if h.Cost.IsPositive() {
                    r.TotalReturn = decimal.NewNullDecimal(last.Div(h.Cost).Sub(one))
                }
                if q.PrevClose.Valid && q.PrevClose.Decimal.IsPositive() {
                    prev := q.PrevClose.Decimal
                    r.TodayPnL = decimal.NewNullDecimal(last.Sub(prev).Mul(h.Shares))
                    r.TodayReturn = decimal.NewNullDecimal(last.Div(prev).Sub(one))
                }
            }
        }

        if r.MarketValue.Valid {
            resolved++
            totals.MarketValue = totals.MarketValue.Add(r.MarketValue.Decimal)
        }
        if r.TodayPnL.Valid {
            totals.TodayPnL = totals.TodayPnL.Add(r.TodayPnL.Decimal)
        }
        if r.TotalPnL.Valid {
            totals.TotalPnL = totals.TotalPnL.Add(r.TotalPnL.Decimal)
        }
        rows = append(rows, r)
    }

    // Negative cash means total_assets is stale, not a fetch bug; clamp.
    totals.CashEstimate = totalAssets.Sub(totals.MarketValue)
    if totals.CashEstimate.IsNegative() {
        totals.CashEstimate = decimal.Zero
    }
    // A positive basis with zero resolved prices says nothing about the
    // return, so leave it absent instead of reporting a hard 0.
    if totals.CostBasis.IsPositive() && resolved > 0 {
        totals.OverallReturn = decimal.NewNullDecimal(totals.TotalPnL.Div(totals.CostBasis))
    }
    return rows, totals
}
