package cache

import (
    "context"
    "sync"
    "time"

    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
)

// entry stores one cached quote with expiry.
type entry struct {
    expiresAt time.Time
    q         quote.Quote
}

// Provider caches resolved quotes per code for a TTL. It requests only
// missing codes from the underlying provider and combines cached and
// fresh results. Unresolved codes are never cached, so a code that a
// source starts pricing shows up on the next cycle.
type Provider struct {
    P        quote.Provider
    TTL      time.Duration
    MaxItems int

    mu    sync.RWMutex
    items map[string]entry // key: normalized code
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) Fetch(ctx context.Context, codes []string) (map[string]quote.Quote, error) {
    if c.P == nil || c.TTL <= 0 {
        return c.P.Fetch(ctx, codes)
    }

    now := time.Now()
    cached := make(map[string]quote.Quote, len(codes))
    missing := make([]string, 0, len(codes))

    c.mu.RLock()
    for _, raw := range codes {
        code, err := quote.Normalize(raw)
        if err != nil { continue }
        if e, ok := c.items[code]; ok && now.Before(e.expiresAt) {
            cached[code] = e.q
            continue
        }
        missing = append(missing, code)
    }
    c.mu.RUnlock()

    if len(missing) == 0 {
        return cached, nil
    }

    fresh, err := c.P.Fetch(ctx, missing)
    if err != nil {
        // Partial cached data beats failing the whole call.
        if len(cached) > 0 {
            return cached, nil
        }
        return nil, err
    }

    expiry := now.Add(c.TTL)
    c.mu.Lock()
    if c.items == nil {
        c.items = make(map[string]entry, len(fresh))
    }
    for code, q := range fresh {
        c.items[code] = entry{expiresAt: expiry, q: q}
    }
    // best-effort size cap: evict expired first, then arbitrary keys
    if c.MaxItems > 0 && len(c.items) > c.MaxItems {
        for k, v := range c.items {
            if now.After(v.expiresAt) { delete(c.items, k) }
            if len(c.items) <= c.MaxItems { break }
        }
        for k := range c.items {
            if len(c.items) <= c.MaxItems { break }
            delete(c.items, k)
        }
    }
    c.mu.Unlock()

    out := make(map[string]quote.Quote, len(cached)+len(fresh))
    for code, q := range cached { out[code] = q }
    for code, q := range fresh { out[code] = q }
    return out, nil
}
