package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "strings"
)

type Server struct {
    Port              string `json:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec"`
    Policy            string `json:"policy"`
}

type Tencent struct {
    Enabled               bool   `json:"enabled"`
    Endpoint              string `json:"endpoint"`
    TimeoutSec            int    `json:"timeout_sec"`
    MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
    MinRequestIntervalSec int    `json:"min_request_interval_sec"`
    Burst                 int    `json:"burst"`
    CacheTTLSeconds       int    `json:"cache_ttl_sec"`
    CacheMaxItems         int    `json:"cache_max_items"`
}

type Eastmoney struct {
    Enabled               bool   `json:"enabled"`
    Endpoint              string `json:"endpoint"`
    TimeoutSec            int    `json:"timeout_sec"`
    MaxConcurrency        int    `json:"max_concurrency"`
    MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
    MinRequestIntervalSec int    `json:"min_request_interval_sec"`
    Burst                 int    `json:"burst"`
    CacheTTLSeconds       int    `json:"cache_ttl_sec"`
    CacheMaxItems         int    `json:"cache_max_items"`
}

type Spot struct {
    Enabled               bool   `json:"enabled"`
    Endpoint              string `json:"endpoint"`
    TimeoutSec            int    `json:"timeout_sec"`
    SnapshotTTLSeconds    int    `json:"snapshot_ttl_sec"`
    PageSize              int    `json:"page_size"`
    MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
    MinRequestIntervalSec int    `json:"min_request_interval_sec"`
    Burst                 int    `json:"burst"`
    CacheTTLSeconds       int    `json:"cache_ttl_sec"`
    CacheMaxItems         int    `json:"cache_max_items"`
}

type Brief struct {
    OutPath           string   `json:"out_path"`
    Policy            string   `json:"policy"`
    OvernightEndpoint string   `json:"overnight_endpoint"`
    OvernightSymbols  []string `json:"overnight_symbols"`
}

type Config struct {
    Server       Server    `json:"server"`
    HoldingsPath string    `json:"holdings_path"`
    Tencent      Tencent   `json:"tencent"`
    Eastmoney    Eastmoney `json:"eastmoney"`
    Spot         Spot      `json:"spot"`
    Brief        Brief     `json:"brief"`
}

func Default() Config {
    return Config{
        Server: Server{
            Port:              "8080",
            RequestTimeoutSec: 15,
            Policy:            "spot-first",
        },
        HoldingsPath: "holdings.json",
        Tencent: Tencent{
            Enabled:    true,
            Endpoint:   "https://qt.gtimg.cn/q=",
            TimeoutSec: 8,
            CacheTTLSeconds: 3,
            CacheMaxItems:   1000,
        },
        Eastmoney: Eastmoney{
            Enabled:        true,
            TimeoutSec:     8,
            MaxConcurrency: 4,
            CacheTTLSeconds: 3,
            CacheMaxItems:   1000,
        },
        Spot: Spot{
            Enabled:            true,
            Endpoint:           "https://push2.eastmoney.com/api/qt/clist/get",
            TimeoutSec:         10,
            SnapshotTTLSeconds: 15,
            PageSize:           6000,
        },
        Brief: Brief{
            OutPath: "daily_brief.json",
            Policy:  "tencent-first",
        },
    }
}

// Load reads JSON config from path. If path is empty or the file does
// not exist, it returns defaults. A few env variables override fields
// so deployments can reconfigure without editing the file.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := json.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("SERVER_POLICY"); v != "" { cfg.Server.Policy = v }
    if v := os.Getenv("HOLDINGS_FILE"); v != "" { cfg.HoldingsPath = v }
    if v := os.Getenv("TENCENT_ENDPOINT"); v != "" { cfg.Tencent.Endpoint = v }
    if v := os.Getenv("TENCENT_ENABLED"); v != "" { cfg.Tencent.Enabled = parseBool(v, cfg.Tencent.Enabled) }
    if v := os.Getenv("EASTMONEY_ENDPOINT"); v != "" { cfg.Eastmoney.Endpoint = v }
    if v := os.Getenv("EASTMONEY_ENABLED"); v != "" { cfg.Eastmoney.Enabled = parseBool(v, cfg.Eastmoney.Enabled) }
    if v := os.Getenv("EASTMONEY_MAX_CONCURRENCY"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Eastmoney.MaxConcurrency = x }
    }
    if v := os.Getenv("SPOT_ENDPOINT"); v != "" { cfg.Spot.Endpoint = v }
    if v := os.Getenv("SPOT_ENABLED"); v != "" { cfg.Spot.Enabled = parseBool(v, cfg.Spot.Enabled) }
    if v := os.Getenv("SPOT_SNAPSHOT_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Spot.SnapshotTTLSeconds = x }
    }
    if v := os.Getenv("BRIEF_POLICY"); v != "" { cfg.Brief.Policy = v }
    if v := os.Getenv("BRIEF_OUT"); v != "" { cfg.Brief.OutPath = v }
    if v := os.Getenv("OVERNIGHT_SYMBOLS"); v != "" { cfg.Brief.OvernightSymbols = splitCSV(v) }
}

func parseBool(v string, def bool) bool {
    switch strings.ToLower(v) {
    case "1", "true", "yes", "y":
        return true
    case "0", "false", "no", "n":
        return false
    }
    return def
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
