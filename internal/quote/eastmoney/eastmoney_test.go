package eastmoney_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/yaoheng0611/portfolio-dashboard/internal/quote"
	eastmoney "github.com/yaoheng0611/portfolio-dashboard/internal/quote/eastmoney"
)

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestGetStockQuote_ParsesNamedFields(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "1.600000", req.URL.Query().Get("secid"))
			require.Equal(t, "f43,f57,f58,f60", req.URL.Query().Get("fields"))
			return jsonResponse(`{"data":{"f43":12.34,"f57":"600000","f58":"浦发银行","f60":11.90}}`), nil
		}).
		Times(1)

	client := eastmoney.NewClient(eastmoney.WithHTTPClient(httpClient))
	sq, err := client.GetStockQuote(t.Context(), "1.600000")
	require.NoError(t, err)
	require.NotNil(t, sq)
	assert.Equal(t, "600000", sq.Code)
	assert.Equal(t, "浦发银行", sq.Name)
	require.True(t, sq.Last.Valid)
	assert.True(t, sq.Last.Decimal.Equal(decimal.RequireFromString("12.34")))
	require.True(t, sq.PrevClose.Valid)
	assert.True(t, sq.PrevClose.Decimal.Equal(decimal.RequireFromString("11.90")))
}

func TestGetStockQuote_NilOnUnknownSecid(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(`{"data":null}`), nil).
		Times(1)

	client := eastmoney.NewClient(eastmoney.WithHTTPClient(httpClient))
	sq, err := client.GetStockQuote(t.Context(), "1.999999")
	require.NoError(t, err)
	assert.Nil(t, sq)
}

func TestGetStockQuote_SuspendedPriceIsAbsent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(`{"data":{"f43":"-","f57":"600000","f58":"停牌","f60":11.90}}`), nil).
		Times(1)

	client := eastmoney.NewClient(eastmoney.WithHTTPClient(httpClient))
	sq, err := client.GetStockQuote(t.Context(), "1.600000")
	require.NoError(t, err)
	require.NotNil(t, sq)
	assert.False(t, sq.Last.Valid)
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	baseURL := "http://localhost:8080"
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return jsonResponse(`{"data":null}`), nil
		}).
		Times(1)

	client := eastmoney.NewClient(eastmoney.WithHTTPClient(httpClient), eastmoney.WithBaseURL(baseURL))
	_, err := client.GetStockQuote(t.Context(), "0.000001")
	require.NoError(t, err)
}

func TestProviderFetch_MergesPerCodeResults(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	var mu sync.Mutex
	seen := map[string]bool{}
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			secid := req.URL.Query().Get("secid")
			mu.Lock()
			seen[secid] = true
			mu.Unlock()
			switch secid {
			case "1.600000":
				return jsonResponse(`{"data":{"f43":12.0,"f57":"600000","f58":"A","f60":11.0}}`), nil
			case "0.000001":
				return jsonResponse(`{"data":{"f43":10.5,"f57":"000001","f58":"B","f60":"-"}}`), nil
			default:
				return jsonResponse(`{"data":null}`), nil
			}
		}).
		Times(3)

	p := eastmoney.NewProvider(eastmoney.Config{MaxConcurrency: 2}, eastmoney.NewClient(eastmoney.WithHTTPClient(httpClient)))
	got, err := p.Fetch(t.Context(), []string{"sh600000", "000001", "300999"})
	require.NoError(t, err)

	assert.True(t, seen["1.600000"] && seen["0.000001"] && seen["0.300999"], "unexpected secids: %v", seen)
	require.Len(t, got, 2)
	assert.True(t, got["600000"].PrevClose.Valid)
	assert.False(t, got["000001"].PrevClose.Valid)
}

func TestProviderFetch_UnavailableOnlyWhenNothingResolves(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, fmt.Errorf("connection refused")).
		Times(2)

	p := eastmoney.NewProvider(eastmoney.Config{MaxConcurrency: 1}, eastmoney.NewClient(eastmoney.WithHTTPClient(httpClient)))
	_, err := p.Fetch(t.Context(), []string{"600000", "000001"})
	require.Error(t, err)
	var ue *quote.UnavailableError
	assert.True(t, errors.As(err, &ue))
}

func TestProviderFetch_ToleratesPartialFailures(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("secid") == "1.600000" {
				return jsonResponse(`{"data":{"f43":12.0,"f57":"600000","f58":"A","f60":11.0}}`), nil
			}
			return nil, fmt.Errorf("connection refused")
		}).
		Times(2)

	p := eastmoney.NewProvider(eastmoney.Config{MaxConcurrency: 1}, eastmoney.NewClient(eastmoney.WithHTTPClient(httpClient)))
	got, err := p.Fetch(t.Context(), []string{"600000", "000001"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got, "600000")
}
