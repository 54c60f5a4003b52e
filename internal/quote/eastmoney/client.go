package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://push2.eastmoney.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=eastmoney_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Eastmoney push2 quote API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the Eastmoney client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new Eastmoney push2 client.
func NewClient(options ...ClientOption) *Client {
	var client = &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// StockQuote is the subset of stock/get fields the dashboard needs.
type StockQuote struct {
	Code      string
	Name      string
	Last      decimal.NullDecimal
	PrevClose decimal.NullDecimal
}

// GetStockQuote retrieves a single instrument snapshot by secid
// (e.g. "1.600000" for Shanghai, "0.000001" for Shenzhen).
func (c *Client) GetStockQuote(ctx context.Context, secid string) (*StockQuote, error) {
	query := url.Values{}
	query.Set("invt", "2")
	query.Set("fltt", "2")
	query.Set("fields", "f43,f57,f58,f60")
	query.Set("secid", secid)

	endpoint := fmt.Sprintf("%s/api/qt/stock/get?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body struct {
		Data *struct {
			F43 scalar `json:"f43"`
			F57 string `json:"f57"`
			F58 string `json:"f58"`
			F60 scalar `json:"f60"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if body.Data == nil {
		// Unknown secid; the API answers with a null data block.
		return nil, nil
	}
	return &StockQuote{
		Code:      body.Data.F57,
		Name:      body.Data.F58,
		Last:      body.Data.F43.dec,
		PrevClose: body.Data.F60.dec,
	}, nil
}

// scalar decodes push2 numeric fields, which are plain numbers normally
// and the string "-" when no value exists (suspended instruments).
type scalar struct {
	dec decimal.NullDecimal
}

func (s *scalar) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null", `"-"`, `""`:
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	s.dec = decimal.NewNullDecimal(d)
	return nil
}
