package eastmoney

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yaoheng0611/portfolio-dashboard/internal/quote"
)

type Config struct {
	Name string
	// MaxConcurrency bounds parallel per-code requests. Defaults to 4.
	MaxConcurrency int
	// TimeoutSec bounds each per-code call. Defaults to 8.
	TimeoutSec int
}

// Provider issues one stock/get call per code. Calls are independent,
// so they run under a bounded worker pool; the result map is assembled
// under a lock and handed out only once every worker has finished.
type Provider struct {
	cfg    Config
	client *Client
}

func NewProvider(cfg Config, client *Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Eastmoney"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 8
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, codes []string) (map[string]quote.Quote, error) {
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		n, err := quote.Normalize(c)
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	if len(normalized) == 0 {
		return map[string]quote.Quote{}, nil
	}

	var (
		mu       sync.Mutex
		out      = make(map[string]quote.Quote, len(normalized))
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrency)
	for _, code := range normalized {
		code := code
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, time.Duration(p.cfg.TimeoutSec)*time.Second)
			defer cancel()
			sq, err := p.client.GetStockQuote(callCtx, secid(code))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// One code failing must not sink the batch.
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			if sq == nil || !sq.Last.Valid || !sq.Last.Decimal.IsPositive() {
				return nil
			}
			q := quote.Quote{Code: code, Name: sq.Name, Last: sq.Last.Decimal}
			if sq.PrevClose.Valid && sq.PrevClose.Decimal.IsPositive() {
				q.PrevClose = sq.PrevClose
			}
			out[code] = q
			return nil
		})
	}
	_ = g.Wait()

	if len(out) == 0 && firstErr != nil {
		return nil, quote.Unavailable(p.cfg.Name, firstErr)
	}
	return out, nil
}

// secid maps a normalized code to the push2 market-qualified id:
// market 1 for Shanghai (codes starting with 6 or 9), 0 for Shenzhen.
func secid(code string) string {
	if strings.HasPrefix(code, "6") || strings.HasPrefix(code, "9") {
		return "1." + code
	}
	return "0." + code
}
