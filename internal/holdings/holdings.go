package holdings

import (
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/shopspring/decimal"
    "gopkg.in/yaml.v3"

    "github.com/yaoheng0611/portfolio-dashboard/internal/quote"
    "github.com/yaoheng0611/portfolio-dashboard/internal/valuation"
)

// Portfolio is the validated content of a holdings file.
type Portfolio struct {
    TotalAssets   decimal.Decimal
    PositionRatio decimal.Decimal
    Holdings      []valuation.Holding
}

// Codes returns the normalized instrument codes in file order.
func (p *Portfolio) Codes() []string {
    out := make([]string, 0, len(p.Holdings))
    for _, h := range p.Holdings {
        out = append(out, h.Code)
    }
    return out
}

// raw mirrors the file shape. Numeric fields go through json.Number so
// the same struct decodes from both JSON and YAML before conversion to
// decimals.
type rawFile struct {
    TotalAssetsRMB json.Number  `json:"total_assets_rmb" yaml:"total_assets_rmb"`
    PositionRatio  json.Number  `json:"position_ratio" yaml:"position_ratio"`
    Holdings       []rawHolding `json:"holdings" yaml:"holdings"`
}

type rawHolding struct {
    Code   string      `json:"code" yaml:"code"`
    Name   string      `json:"name" yaml:"name"`
    Shares json.Number `json:"shares" yaml:"shares"`
    Cost   json.Number `json:"cost" yaml:"cost"`
}

// Load reads and validates a holdings file. The format follows the
// extension: .yaml/.yml is YAML, anything else JSON. A malformed record
// fails the load; it is never silently skipped.
func Load(path string) (*Portfolio, error) {
    b, err := os.ReadFile(path)
    if err != nil {
        return nil, fmt.Errorf("read holdings: %w", err)
    }

    var raw rawFile
    switch strings.ToLower(filepath.Ext(path)) {
    case ".yaml", ".yml":
        if err := yaml.Unmarshal(b, &raw); err != nil {
            return nil, fmt.Errorf("parse holdings: %w", err)
        }
    default:
        if err := json.Unmarshal(b, &raw); err != nil {
            return nil, fmt.Errorf("parse holdings: %w", err)
        }
    }

    p := &Portfolio{}
    if p.TotalAssets, err = parseAmount(raw.TotalAssetsRMB); err != nil {
        return nil, fmt.Errorf("total_assets_rmb: %w", err)
    }
    if p.PositionRatio, err = parseAmount(raw.PositionRatio); err != nil {
        return nil, fmt.Errorf("position_ratio: %w", err)
    }

    p.Holdings = make([]valuation.Holding, 0, len(raw.Holdings))
    for i, rh := range raw.Holdings {
        code, err := quote.Normalize(rh.Code)
        if err != nil {
            return nil, fmt.Errorf("holding #%d: %w", i+1, err)
        }
        shares, err := parseAmount(rh.Shares)
        if err != nil {
            return nil, fmt.Errorf("holding #%d (%s): shares: %w", i+1, code, err)
        }
        cost, err := parseAmount(rh.Cost)
        if err != nil {
            return nil, fmt.Errorf("holding #%d (%s): cost: %w", i+1, code, err)
        }
        p.Holdings = append(p.Holdings, valuation.Holding{
            Code:   code,
            Name:   rh.Name,
            Shares: shares,
            Cost:   cost,
        })
    }
    return p, nil
}

// parseAmount converts a raw numeric field to a non-negative decimal.
// An omitted field counts as zero.
func parseAmount(n json.Number) (decimal.Decimal, error) {
    s := strings.TrimSpace(n.String())
    if s == "" {
        return decimal.Zero, nil
    }
    d, err := decimal.NewFromString(s)
    if err != nil {
        return decimal.Zero, fmt.Errorf("not a number: %q", s)
    }
    if d.IsNegative() {
        return decimal.Zero, fmt.Errorf("must not be negative: %s", s)
    }
    return d, nil
}
