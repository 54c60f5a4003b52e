package overnight

import (
    "context"
    "encoding/json"
    "fmt"
    "net/url"
    "strings"
    "time"

    "github.com/shopspring/decimal"

    "github.com/yaoheng0611/portfolio-dashboard/internal/httpx"
)

// DefaultSymbols are the overseas indexes, commodities and FX pairs the
// daily brief watches: S&P 500, Nasdaq, Dow, WTI crude, gold, USD/CNY.
var DefaultSymbols = []string{"^GSPC", "^IXIC", "^DJI", "CL=F", "GC=F", "USDCNY=X"}

type Config struct {
    URL     string
    Symbols []string
    // TimeoutSec bounds the lookup. Defaults to 10.
    TimeoutSec int
}

// IndexQuote is one market-context entry.
type IndexQuote struct {
    Price         decimal.NullDecimal `json:"price"`
    Change        decimal.NullDecimal `json:"change"`
    ChangePercent decimal.NullDecimal `json:"change_percent"`
    Time          int64               `json:"time,omitempty"`
}

// Snapshot maps symbol to its latest context entry. Empty when the
// lookup failed; the brief includes it as-is either way.
type Snapshot map[string]IndexQuote

// Client fetches broad market context from the Yahoo batch quote API.
// Strictly best-effort: callers treat any error as "no context today".
type Client struct {
    cfg    Config
    client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Client {
    if cfg.URL == "" { cfg.URL = "https://query1.finance.yahoo.com/v7/finance/quote" }
    if len(cfg.Symbols) == 0 { cfg.Symbols = DefaultSymbols }
    if cfg.TimeoutSec <= 0 { cfg.TimeoutSec = 10 }
    return &Client{cfg: cfg, client: hc}
}

func (c *Client) Fetch(ctx context.Context) (Snapshot, error) {
    ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSec)*time.Second)
    defer cancel()

    q := url.Values{}
    q.Set("symbols", strings.Join(c.cfg.Symbols, ","))
    resp, err := c.client.Get(ctx, c.cfg.URL+"?"+q.Encode())
    if err != nil { return nil, err }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return nil, fmt.Errorf("GET %s -> %d", c.cfg.URL, resp.StatusCode)
    }

    var body struct {
        QuoteResponse struct {
            Result []struct {
                Symbol        string              `json:"symbol"`
                Price         decimal.NullDecimal `json:"regularMarketPrice"`
                Change        decimal.NullDecimal `json:"regularMarketChange"`
                ChangePercent decimal.NullDecimal `json:"regularMarketChangePercent"`
                Time          int64               `json:"regularMarketTime"`
            } `json:"result"`
        } `json:"quoteResponse"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return nil, fmt.Errorf("decode: %w", err)
    }

    out := make(Snapshot, len(body.QuoteResponse.Result))
    for _, r := range body.QuoteResponse.Result {
        if r.Symbol == "" { continue }
        out[r.Symbol] = IndexQuote{
            Price:         r.Price,
            Change:        r.Change,
            ChangePercent: r.ChangePercent,
            Time:          r.Time,
        }
    }
    return out, nil
}
