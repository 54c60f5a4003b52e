package quote

import (
    "context"
    "fmt"
    "strings"

    "github.com/shopspring/decimal"
)

// Quote is the normalized shape returned by all providers.
// Last is always strictly positive; providers drop codes they cannot
// price instead of emitting zero. PrevClose stays invalid for sources
// that only carry the current price.
type Quote struct {
    Code      string              `json:"code"`
    Name      string              `json:"name,omitempty"`
    Last      decimal.Decimal     `json:"last"`
    PrevClose decimal.NullDecimal `json:"prev_close"`
}

//go:generate mockgen -package=fetch_test -destination=../fetch/mock_provider_test.go -source=quote.go Provider

type Provider interface {
    Name() string
    // Fetch resolves whatever subset of codes the source can price.
    // A missing key means "unresolved", not an error.
    Fetch(ctx context.Context, codes []string) (map[string]Quote, error)
}

// UnavailableError marks a transport or envelope failure inside one
// provider call. The failover fetcher absorbs it and moves on; it is
// never surfaced raw to callers.
type UnavailableError struct {
    Provider string
    Err      error
}

func (e *UnavailableError) Error() string {
    return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as an UnavailableError for the named provider.
func Unavailable(provider string, err error) error {
    return &UnavailableError{Provider: provider, Err: err}
}

// Normalize converts a raw instrument code to the fixed 6-digit exchange
// form: optional sh/sz prefix stripped, digits zero-padded on the left.
// Anything else is rejected.
func Normalize(code string) (string, error) {
    s := strings.TrimSpace(code)
    ls := strings.ToLower(s)
    if strings.HasPrefix(ls, "sh") || strings.HasPrefix(ls, "sz") {
        s = s[2:]
    }
    if s == "" || len(s) > 6 {
        return "", fmt.Errorf("invalid instrument code %q", code)
    }
    for _, r := range s {
        if r < '0' || r > '9' {
            return "", fmt.Errorf("invalid instrument code %q", code)
        }
    }
    for len(s) < 6 {
        s = "0" + s
    }
    return s, nil
}

// NormalizeAll normalizes every code, dropping duplicates while keeping
// first-seen order. Any malformed code fails the whole batch.
func NormalizeAll(codes []string) ([]string, error) {
    out := make([]string, 0, len(codes))
    seen := make(map[string]struct{}, len(codes))
    for _, c := range codes {
        n, err := Normalize(c)
        if err != nil { return nil, err }
        if _, dup := seen[n]; dup { continue }
        seen[n] = struct{}{}
        out = append(out, n)
    }
    return out, nil
}
