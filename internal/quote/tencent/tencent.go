package tencent

import (
    "context"
    "fmt"
    "io"
    "regexp"
    "strings"
    "time"

    "github.com/shopspring/decimal"
    "golang.org/x/text/encoding/simplifiedchinese"
    "golang.org/x/text/transform"

    "github.com/yaoheng0611/portfolio-dashboard/internal/httpx"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
)

type Config struct {
    Name string
    // URL is the batch endpoint prefix; the comma-joined symbol list is
    // appended directly (the endpoint uses "q=" as part of the path).
    URL string
    // TimeoutSec bounds one batch call. Defaults to 8.
    TimeoutSec int
}

// Provider resolves many codes in a single round trip against the
// Tencent gtimg quote endpoint. The payload is GBK-encoded text with
// one record per symbol and '~'-delimited positional fields.
type Provider struct {
    cfg    Config
    client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "Tencent" }
    if cfg.URL == "" { cfg.URL = "https://qt.gtimg.cn/q=" }
    if cfg.TimeoutSec <= 0 { cfg.TimeoutSec = 8 }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// recordRe matches one quote record, e.g. v_sh600000="1~浦发银行~600000~...".
var recordRe = regexp.MustCompile(`v_(sh|sz)(\d{6})="([^"]*)"`)

// Positional fields inside one record payload.
const (
    fieldName      = 1
    fieldLast      = 3
    fieldPrevClose = 4
)

func (p *Provider) Fetch(ctx context.Context, codes []string) (map[string]quote.Quote, error) {
    symbols := make([]string, 0, len(codes))
    for _, c := range codes {
        n, err := quote.Normalize(c)
        if err != nil { continue }
        symbols = append(symbols, symbol(n))
    }
    if len(symbols) == 0 {
        return map[string]quote.Quote{}, nil
    }

    ctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSec)*time.Second)
    defer cancel()

    resp, err := p.client.Get(ctx, p.cfg.URL+strings.Join(symbols, ","))
    if err != nil {
        return nil, quote.Unavailable(p.cfg.Name, err)
    }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return nil, quote.Unavailable(p.cfg.Name, fmt.Errorf("GET %s -> %d", p.cfg.URL, resp.StatusCode))
    }

    // The endpoint answers in GBK regardless of Accept-Charset.
    body, err := io.ReadAll(transform.NewReader(io.LimitReader(resp.Body, 4<<20), simplifiedchinese.GBK.NewDecoder()))
    if err != nil {
        return nil, quote.Unavailable(p.cfg.Name, fmt.Errorf("decode body: %w", err))
    }

    matches := recordRe.FindAllStringSubmatch(string(body), -1)
    if len(matches) == 0 {
        return nil, quote.Unavailable(p.cfg.Name, fmt.Errorf("no quote records in response"))
    }

    out := make(map[string]quote.Quote, len(matches))
    for _, m := range matches {
        code := m[2]
        fields := strings.Split(m[3], "~")
        if len(fields) <= fieldPrevClose { continue }
        last, err := decimal.NewFromString(strings.TrimSpace(fields[fieldLast]))
        if err != nil || !last.IsPositive() { continue }
        q := quote.Quote{Code: code, Name: strings.TrimSpace(fields[fieldName]), Last: last}
        if prev, err := decimal.NewFromString(strings.TrimSpace(fields[fieldPrevClose])); err == nil && prev.IsPositive() {
            q.PrevClose = decimal.NewNullDecimal(prev)
        }
        out[code] = q
    }
    return out, nil
}

// symbol prefixes a normalized code with its exchange: Shanghai for
// codes starting with 6 or 9, Shenzhen otherwise.
func symbol(code string) string {
    if strings.HasPrefix(code, "6") || strings.HasPrefix(code, "9") {
        return "sh" + code
    }
    return "sz" + code
}
