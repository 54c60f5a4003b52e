package main

import (
    "encoding/json"
    "fmt"
    "log"
    "os"
    "time"

    "github.com/spf13/cobra"

    "github.com/yaoheng0611/portfolio-dashboard/internal/brief"
    "github.com/yaoheng0611/portfolio-dashboard/internal/config"
    "github.com/yaoheng0611/portfolio-dashboard/internal/fetch"
    "github.com/yaoheng0611/portfolio-dashboard/internal/holdings"
    "github.com/yaoheng0611/portfolio-dashboard/internal/httpx"
    "github.com/yaoheng0611/portfolio-dashboard/internal/overnight"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote/eastmoney"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote/emspot"
    "github.com/yaoheng0611/portfolio-dashboard/internal/quote/tencent"
)

var (
    flagConfig   string
    flagHoldings string
    flagOut      string
    flagPolicy   string
)

var rootCmd = &cobra.Command{
    Use:   "brief",
    Short: "Generate the daily portfolio brief",
    Long: `brief runs one quote fetch cycle over the configured holdings,
values the portfolio, applies the advisory rule set and writes a
timestamped daily_brief.json snapshot. Meant to run from a scheduler
(cron or CI), once per trading day.`,
    RunE:          run,
    SilenceUsage:  true,
    SilenceErrors: true,
}

func init() {
    rootCmd.Flags().StringVar(&flagConfig, "config", os.Getenv("CONFIG_FILE"), "path to config.json")
    rootCmd.Flags().StringVar(&flagHoldings, "holdings", "", "holdings file (overrides config)")
    rootCmd.Flags().StringVar(&flagOut, "out", "", "output path (overrides config)")
    rootCmd.Flags().StringVar(&flagPolicy, "policy", "", "fetch policy (overrides config)")
}

func run(cmd *cobra.Command, args []string) error {
    cfg, err := config.Load(flagConfig)
    if err != nil { return fmt.Errorf("config: %w", err) }
    if flagHoldings != "" { cfg.HoldingsPath = flagHoldings }
    if flagOut != "" { cfg.Brief.OutPath = flagOut }
    if flagPolicy != "" { cfg.Brief.Policy = flagPolicy }

    httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

    providers := buildProviders(cfg, httpClient)
    if len(providers) == 0 {
        return fmt.Errorf("no quote providers enabled")
    }
    fetcher := fetch.New(providers...)

    port, err := holdings.Load(cfg.HoldingsPath)
    if err != nil { return fmt.Errorf("holdings: %w", err) }

    ctx := cmd.Context()
    outcome, err := fetcher.Resolve(ctx, port.Codes(), fetch.Policy(cfg.Brief.Policy))
    if err != nil { return err }
    if outcome.ProviderUsed == "" {
        log.Printf("warning: no provider returned quotes: %v", outcome.Errors)
    }

    agg := &brief.Aggregator{
        Context: overnight.New(overnight.Config{
            URL:     cfg.Brief.OvernightEndpoint,
            Symbols: cfg.Brief.OvernightSymbols,
        }, httpClient),
    }
    snap := agg.Build(ctx, port, outcome)

    b, err := json.MarshalIndent(snap, "", "  ")
    if err != nil { return fmt.Errorf("encode brief: %w", err) }
    if err := os.WriteFile(cfg.Brief.OutPath, append(b, '\n'), 0644); err != nil {
        return fmt.Errorf("write brief: %w", err)
    }
    log.Printf("daily brief written to %s (provider=%s, %d risk tips)", cfg.Brief.OutPath, outcome.ProviderUsed, len(snap.RiskTips))
    return nil
}

// buildProviders wires the enabled providers in their canonical order.
// The brief path skips the rate limiter and cache layers: it runs once
// per schedule, not per request.
func buildProviders(cfg config.Config, hc *httpx.Client) []quote.Provider {
    var out []quote.Provider
    if cfg.Tencent.Enabled {
        out = append(out, tencent.New(tencent.Config{
            URL:        cfg.Tencent.Endpoint,
            TimeoutSec: cfg.Tencent.TimeoutSec,
        }, hc))
    }
    if cfg.Eastmoney.Enabled {
        opts := []eastmoney.ClientOption{eastmoney.WithHTTPClient(hc.HTTP)}
        if cfg.Eastmoney.Endpoint != "" {
            opts = append(opts, eastmoney.WithBaseURL(cfg.Eastmoney.Endpoint))
        }
        out = append(out, eastmoney.NewProvider(eastmoney.Config{
            MaxConcurrency: cfg.Eastmoney.MaxConcurrency,
            TimeoutSec:     cfg.Eastmoney.TimeoutSec,
        }, eastmoney.NewClient(opts...)))
    }
    if cfg.Spot.Enabled {
        out = append(out, emspot.New(emspot.Config{
            URL:                cfg.Spot.Endpoint,
            TimeoutSec:         cfg.Spot.TimeoutSec,
            SnapshotTTLSeconds: cfg.Spot.SnapshotTTLSeconds,
            PageSize:           cfg.Spot.PageSize,
        }, hc))
    }
    return out
}

func main() {
    if err := rootCmd.Execute(); err != nil {
        log.Fatalf("brief: %v", err)
    }
}
