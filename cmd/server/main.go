package main

import (
    "compress/gzip"
    "context"
    "encoding/json"
    "io"
    "log"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "sync"
    "syscall"
    "time"

    "github.com/yaoheng0611/portfolio-dashboard/internal/config"
    "github.com/yaoheng0611/portfolio-dashboard/internal/fetch"
    "github.com/yaoheng0611/portfolio-dashboard/internal/holdings"
    "github.com/yaoheng0611/portfolio-dashboard/internal/httpx"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote/cache"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote/eastmoney"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote/emspot"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote/ratelimit"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote/tencent"
    "github.com/yaoheng0611/portfolio-dashboard/internal/valuation"
)

type portfolioResponse struct {
    AsOf         time.Time        `json:"as_of"`
    ProviderUsed string           `json:"provider_used,omitempty"`
    Errors       []string         `json:"errors,omitempty"`
    Totals       valuation.Totals `json:"totals"`
    Rows         []valuation.Row  `json:"rows"`
}

func main() {
    cfgPath := os.Getenv("CONFIG_FILE")
    cfg, err := config.Load(cfgPath)
    if err != nil { log.Fatalf("config: %v", err) }

    httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

    providers := buildProviders(cfg, httpClient)
    if len(providers) == 0 {
        log.Fatal("no quote providers enabled; check config.json or env overrides")
    }
    fetcher := fetch.New(providers...)
    policy := fetch.Policy(cfg.Server.Policy)

    // Holdings are loaded once per process; a malformed file is fatal.
    port, err := holdings.Load(cfg.HoldingsPath)
    if err != nil { log.Fatalf("holdings: %v", err) }
    log.Printf("loaded %d holdings from %s", len(port.Holdings), cfg.HoldingsPath)

    mux := http.NewServeMux()
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.HandleFunc("/api/portfolio", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet {
            http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
            return
        }
        writePortfolio(w, r.Context(), fetcher, port, policy)
    })

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           withJSONHeaders(withGzip(recoverPanic(mux))),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      30 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        log.Printf("server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server: %v", err)
        }
    }()

    // graceful shutdown
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}

// writePortfolio runs one fetch cycle and renders rows plus totals.
// Provider failures degrade to absent fields; only malformed input is a
// client error.
func writePortfolio(w http.ResponseWriter, rctx context.Context, fetcher *fetch.Fetcher, port *holdings.Portfolio, policy fetch.Policy) {
    ctx, cancel := context.WithTimeout(rctx, 30*time.Second)
    defer cancel()

    outcome, err := fetcher.Resolve(ctx, port.Codes(), policy)
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }
    rows, totals := valuation.Valuate(port.Holdings, outcome.Quotes, port.TotalAssets)
    resp := portfolioResponse{
        AsOf:         time.Now().UTC(),
        ProviderUsed: outcome.ProviderUsed,
        Errors:       outcome.Errors,
        Totals:       totals,
        Rows:         rows,
    }
    w.WriteHeader(http.StatusOK)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(resp)
}

func buildProviders(cfg config.Config, hc *httpx.Client) []quote.Provider {
    var out []quote.Provider
    if cfg.Spot.Enabled {
        p := emspot.New(emspot.Config{
            URL:                cfg.Spot.Endpoint,
            TimeoutSec:         cfg.Spot.TimeoutSec,
            SnapshotTTLSeconds: cfg.Spot.SnapshotTTLSeconds,
            PageSize:           cfg.Spot.PageSize,
        }, hc)
        out = append(out, decorate(p, cfg.Spot.MaxRequestsPerMinute, cfg.Spot.Burst, cfg.Spot.MinRequestIntervalSec, cfg.Spot.CacheTTLSeconds, cfg.Spot.CacheMaxItems))
    }
    if cfg.Tencent.Enabled {
        p := tencent.New(tencent.Config{
            URL:        cfg.Tencent.Endpoint,
            TimeoutSec: cfg.Tencent.TimeoutSec,
        }, hc)
        out = append(out, decorate(p, cfg.Tencent.MaxRequestsPerMinute, cfg.Tencent.Burst, cfg.Tencent.MinRequestIntervalSec, cfg.Tencent.CacheTTLSeconds, cfg.Tencent.CacheMaxItems))
    }
    if cfg.Eastmoney.Enabled {
        opts := []eastmoney.ClientOption{eastmoney.WithHTTPClient(hc.HTTP)}
        if cfg.Eastmoney.Endpoint != "" {
            opts = append(opts, eastmoney.WithBaseURL(cfg.Eastmoney.Endpoint))
        }
        p := eastmoney.NewProvider(eastmoney.Config{
            MaxConcurrency: cfg.Eastmoney.MaxConcurrency,
            TimeoutSec:     cfg.Eastmoney.TimeoutSec,
        }, eastmoney.NewClient(opts...))
        out = append(out, decorate(p, cfg.Eastmoney.MaxRequestsPerMinute, cfg.Eastmoney.Burst, cfg.Eastmoney.MinRequestIntervalSec, cfg.Eastmoney.CacheTTLSeconds, cfg.Eastmoney.CacheMaxItems))
    }
    return out
}

// decorate layers the rate limiter and per-code cache over a provider
// when configured. Token bucket wins over min-interval when both are set.
func decorate(p quote.Provider, rpm, burst, minIntervalSec, cacheTTLSec, cacheMaxItems int) quote.Provider {
    if rpm > 0 {
        if burst <= 0 { burst = 1 }
        p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(float64(rpm)/60.0, burst)}
    } else if minIntervalSec > 0 {
        p = &ratelimit.MinInterval{P: p, Interval: time.Duration(minIntervalSec) * time.Second}
    }
    if cacheTTLSec > 0 {
        p = &cache.Provider{P: p, TTL: time.Duration(cacheTTLSec) * time.Second, MaxItems: cacheMaxItems}
    }
    return p
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                http.Error(w, "internal server error", http.StatusInternalServerError)
            }
        }()
        next.ServeHTTP(w, r)
    })
}
