package fetch

import (
    "context"
    "fmt"

    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
)

// Canonical provider labels used by policies and wiring.
const (
    ProviderTencent       = "Tencent"
    ProviderEastmoney     = "Eastmoney"
    ProviderEastmoneySpot = "EastmoneySpot"
)

// Policy names a fixed provider preference order. Policies are a closed
// set; there is no free-form ordering at call sites.
type Policy string

const (
    // PolicySpotFirst tries the full-snapshot source before Tencent,
    // the interactive dashboard order.
    PolicySpotFirst Policy = "spot-first"
    // PolicyTencentFirst prefers sources that carry previous close,
    // the daily-brief order.
    PolicyTencentFirst Policy = "tencent-first"
    // PolicyTencentOnly uses Tencent with no fallback.
    PolicyTencentOnly Policy = "tencent-only"
)

var orders = map[Policy][]string{
    PolicySpotFirst:    {ProviderEastmoneySpot, ProviderTencent},
    PolicyTencentFirst: {ProviderTencent, ProviderEastmoney, ProviderEastmoneySpot},
    PolicyTencentOnly:  {ProviderTencent},
}

// Outcome is the single return value of one resolve cycle. Quotes come
// entirely from the provider named in ProviderUsed; when every provider
// failed or resolved nothing, Quotes is empty and ProviderUsed is ""
// while Errors keeps one diagnostic per skipped provider. An empty
// ProviderUsed means "no price data", not a failure of the cycle.
type Outcome struct {
    Quotes       map[string]quote.Quote `json:"quotes"`
    ProviderUsed string                 `json:"provider_used,omitempty"`
    Errors       []string               `json:"errors,omitempty"`
}

// Fetcher walks an ordered provider list until one yields at least one
// resolved code. Partial results are never merged across providers:
// mixing previous-close semantics from heterogeneous sources would
// corrupt today's P&L within one table.
type Fetcher struct {
    byName map[string]quote.Provider
}

func New(providers ...quote.Provider) *Fetcher {
    byName := make(map[string]quote.Provider, len(providers))
    for _, p := range providers {
        byName[p.Name()] = p
    }
    return &Fetcher{byName: byName}
}

// Resolve runs one fetch cycle. It returns an error only for input
// validation (malformed codes, unknown policy); provider failures are
// absorbed into the outcome.
func (f *Fetcher) Resolve(ctx context.Context, codes []string, policy Policy) (Outcome, error) {
    normalized, err := quote.NormalizeAll(codes)
    if err != nil {
        return Outcome{}, err
    }
    order, ok := orders[policy]
    if !ok {
        return Outcome{}, fmt.Errorf("unknown fetch policy %q", policy)
    }

    out := Outcome{Quotes: map[string]quote.Quote{}}
    if len(normalized) == 0 {
        return out, nil
    }

    for _, name := range order {
        p, ok := f.byName[name]
        if !ok {
            out.Errors = append(out.Errors, fmt.Sprintf("%s: not configured", name))
            continue
        }
        qs, err := p.Fetch(ctx, normalized)
        if err != nil {
            out.Errors = append(out.Errors, err.Error())
            continue
        }
        if len(qs) == 0 {
            out.Errors = append(out.Errors, fmt.Sprintf("%s: no codes resolved", name))
            continue
        }
        out.Quotes = qs
        out.ProviderUsed = name
        break
    }
    return out, nil
}
