package brief

import (
    "context"
    "fmt"
    "time"

    "github.com/shopspring/decimal"

    "github.com/yaoheng0611/portfolio-dashboard/internal/fetch"
    "github.com/yaoheng0611/portfolio-dashboard/internal/holdings"
    "github.com/yaoheng0611/portfolio-dashboard/internal/overnight"
    "github.com/yaoheng0611/portfolio-dashboard/internal/valuation"
)

// Advisory rule set over a holding's total return.
var (
    // drawdownThreshold triggers a stop-loss reminder.
    drawdownThreshold = decimal.NewFromFloat(-0.08)
    // takeProfitThreshold triggers a take-profit consideration.
    takeProfitThreshold = decimal.NewFromFloat(0.12)
)

// maxRiskTips caps the advisory list per snapshot.
const maxRiskTips = 6

// Brief timestamps follow the exchange's clock.
var shanghaiTZ = time.FixedZone("CST", 8*60*60)

// PortfolioSummary mirrors the original brief's portfolio block.
type PortfolioSummary struct {
    TotalAssets   decimal.Decimal     `json:"total_assets_rmb"`
    Cash          decimal.Decimal     `json:"cash_rmb"`
    MarketValue   decimal.Decimal     `json:"market_value_rmb"`
    TodayPnL      decimal.Decimal     `json:"today_pnl_rmb"`
    TotalPnL      decimal.Decimal     `json:"total_pnl_rmb"`
    OverallReturn decimal.NullDecimal `json:"overall_return"`
}

// Snapshot is one generated daily brief. Immutable once built; it is
// the unit handed to whatever persists or ships it.
type Snapshot struct {
    GeneratedAt  time.Time          `json:"generated_at"`
    ProviderUsed string             `json:"provider_used,omitempty"`
    Errors       []string           `json:"errors,omitempty"`
    Portfolio    PortfolioSummary   `json:"portfolio"`
    Holdings     []valuation.Row    `json:"holdings"`
    Overnight    overnight.Snapshot `json:"overnight"`
    RiskTips     []string           `json:"risk_tips"`
    Strategy     []string           `json:"strategy"`
}

// ContextLookup supplies the optional overseas market-context block.
type ContextLookup interface {
    Fetch(ctx context.Context) (overnight.Snapshot, error)
}

// Aggregator builds daily-brief snapshots. Context may be nil; a failed
// context lookup yields an empty block and never fails the brief.
type Aggregator struct {
    Context ContextLookup
    // Now is overridable for tests. Defaults to time.Now.
    Now func() time.Time
}

func (a *Aggregator) Build(ctx context.Context, port *holdings.Portfolio, outcome fetch.Outcome) Snapshot {
    rows, totals := valuation.Valuate(port.Holdings, outcome.Quotes, port.TotalAssets)

    ov := overnight.Snapshot{}
    if a.Context != nil {
        if snap, err := a.Context.Fetch(ctx); err == nil && snap != nil {
            ov = snap
        }
    }

    now := time.Now
    if a.Now != nil { now = a.Now }

    return Snapshot{
        GeneratedAt:  now().In(shanghaiTZ),
        ProviderUsed: outcome.ProviderUsed,
        Errors:       outcome.Errors,
        Portfolio: PortfolioSummary{
            TotalAssets:   port.TotalAssets,
            Cash:          totals.CashEstimate,
            MarketValue:   totals.MarketValue,
            TodayPnL:      totals.TodayPnL,
            TotalPnL:      totals.TotalPnL,
            OverallReturn: totals.OverallReturn,
        },
        Holdings: rows,
        Overnight: ov,
        RiskTips: riskTips(rows),
        Strategy: strategy(totals),
    }
}

// riskTips applies the advisory rules to each row's total return.
// Rows without a resolved total return produce no advice.
func riskTips(rows []valuation.Row) []string {
    tips := make([]string, 0, maxRiskTips)
    for _, r := range rows {
        if !r.TotalReturn.Valid { continue }
        ret := r.TotalReturn.Decimal
        if ret.LessThanOrEqual(drawdownThreshold) {
            tips = append(tips, fmt.Sprintf("%s is down %s; review position size and stop-loss discipline.", r.Name, fmtPct(ret.Neg())))
        }
        if ret.GreaterThanOrEqual(takeProfitThreshold) {
            tips = append(tips, fmt.Sprintf("%s is up %s; consider taking partial profit or raising the protective line.", r.Name, fmtPct(ret)))
        }
    }
    if len(tips) > maxRiskTips {
        tips = tips[:maxRiskTips]
    }
    return tips
}

func strategy(totals valuation.Totals) []string {
    return []string{
        fmt.Sprintf("Estimated cash %s, market value %s.", fmtMoney(totals.CashEstimate), fmtMoney(totals.MarketValue)),
        "Watch overnight risk appetite (US indexes, oil, gold, USD/CNY) for spillover into A-share sentiment.",
        "Control drawdown first; add to strength only afterwards, never all-in within one day.",
    }
}

func fmtMoney(d decimal.Decimal) string {
    return "¥" + d.StringFixed(2)
}

func fmtPct(d decimal.Decimal) string {
    return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
