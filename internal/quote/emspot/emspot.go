package emspot

import (
    "context"
    "encoding/json"
    "fmt"
    "net/url"
    "strconv"
    "sync"
    "time"

    "github.com/shopspring/decimal"
    "golang.org/x/sync/singleflight"

    "github.com/yaoheng0611/portfolio-dashboard/internal/httpx"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
)

// Config controls the Eastmoney full-market snapshot provider.
type Config struct {
    Name string
    URL  string
    // TimeoutSec bounds one snapshot call. Defaults to 10.
    TimeoutSec int
    // SnapshotTTLSeconds caches the full table for this long. Defaults to 15.
    SnapshotTTLSeconds int
    // PageSize is the number of rows requested; large enough to cover
    // the whole A-share list in one page. Defaults to 6000.
    PageSize int
}

// Provider pulls the entire A-share spot table in one call and filters
// it by the requested codes. The table only carries the current price,
// so previous close is always absent from its quotes.
type Provider struct {
    cfg    Config
    client *httpx.Client

    cacheMu sync.RWMutex
    table   map[string]row
    until   time.Time

    // coalesce concurrent refreshes
    sf singleflight.Group
}

type row struct {
    name string
    last decimal.Decimal
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "EastmoneySpot" }
    if cfg.URL == "" { cfg.URL = "https://push2.eastmoney.com/api/qt/clist/get" }
    if cfg.TimeoutSec <= 0 { cfg.TimeoutSec = 10 }
    if cfg.SnapshotTTLSeconds <= 0 { cfg.SnapshotTTLSeconds = 15 }
    if cfg.PageSize <= 0 { cfg.PageSize = 6000 }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, codes []string) (map[string]quote.Quote, error) {
    table, err := p.snapshot(ctx)
    if err != nil {
        return nil, quote.Unavailable(p.cfg.Name, err)
    }
    out := make(map[string]quote.Quote, len(codes))
    for _, c := range codes {
        n, err := quote.Normalize(c)
        if err != nil { continue }
        if r, ok := table[n]; ok {
            out[n] = quote.Quote{Code: n, Name: r.name, Last: r.last}
        }
    }
    return out, nil
}

// snapshot returns the cached table when fresh, refreshing it otherwise.
// Concurrent refreshes collapse into one upstream call.
func (p *Provider) snapshot(ctx context.Context) (map[string]row, error) {
    p.cacheMu.RLock()
    table, until := p.table, p.until
    p.cacheMu.RUnlock()
    if table != nil && time.Now().Before(until) {
        return table, nil
    }

    v, err, _ := p.sf.Do("snapshot", func() (any, error) {
        callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSec)*time.Second)
        defer cancel()
        fresh, err := p.fetchTable(callCtx)
        if err != nil { return nil, err }
        p.cacheMu.Lock()
        p.table = fresh
        p.until = time.Now().Add(time.Duration(p.cfg.SnapshotTTLSeconds) * time.Second)
        p.cacheMu.Unlock()
        return fresh, nil
    })
    if err != nil { return nil, err }
    return v.(map[string]row), nil
}

func (p *Provider) fetchTable(ctx context.Context) (map[string]row, error) {
    q := url.Values{}
    q.Set("pn", "1")
    q.Set("pz", strconv.Itoa(p.cfg.PageSize))
    q.Set("po", "1")
    q.Set("np", "1")
    q.Set("fltt", "2")
    q.Set("invt", "2")
    q.Set("fid", "f3")
    // All Shanghai and Shenzhen A-share boards.
    q.Set("fs", "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23")
    q.Set("fields", "f2,f12,f14")

    resp, err := p.client.Get(ctx, p.cfg.URL+"?"+q.Encode())
    if err != nil { return nil, err }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return nil, fmt.Errorf("GET %s -> %d", p.cfg.URL, resp.StatusCode)
    }

    var body struct {
        Data *struct {
            Total int `json:"total"`
            Diff  []struct {
                F2  scalar `json:"f2"`
                F12 string `json:"f12"`
                F14 string `json:"f14"`
            } `json:"diff"`
        } `json:"data"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return nil, fmt.Errorf("decode: %w", err)
    }
    if body.Data == nil || len(body.Data.Diff) == 0 {
        return nil, fmt.Errorf("empty snapshot table")
    }

    table := make(map[string]row, len(body.Data.Diff))
    for _, d := range body.Data.Diff {
        code, err := quote.Normalize(d.F12)
        if err != nil { continue }
        // Suspended instruments report "-" for the price; skip them.
        if !d.F2.dec.Valid || !d.F2.dec.Decimal.IsPositive() { continue }
        table[code] = row{name: d.F14, last: d.F2.dec.Decimal}
    }
    return table, nil
}

// scalar decodes push2 numeric fields, which are plain numbers normally
// and the string "-" when no value exists.
type scalar struct {
    dec decimal.NullDecimal
}

func (s *scalar) UnmarshalJSON(b []byte) error {
    switch string(b) {
    case "null", `"-"`, `""`:
        return nil
    }
    var d decimal.Decimal
    if err := d.UnmarshalJSON(b); err != nil { return err }
    s.dec = decimal.NewNullDecimal(d)
    return nil
}
