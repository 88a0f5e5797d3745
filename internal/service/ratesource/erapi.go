package ratesource

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"FxPredict/internal/domain/models"
	domrepo "FxPredict/internal/domain/repository"
	pkghttp "FxPredict/pkg/http"
)

const DefaultBaseURL = "https://open.er-api.com/v6/latest"

var (
	errUpstreamResult = errors.New("upstream did not report success")
	errNoRates        = errors.New("upstream response has no rates")
	errBaseMismatch   = errors.New("upstream base currency mismatch")
	errMissingRate    = errors.New("currency missing from upstream rates")
	errBadRate        = errors.New("upstream rate is not positive")
)

// erapiResponse is the subset of the open.er-api.com latest-rates payload we read.
type erapiResponse struct {
	Result    string             `json:"result"`
	BaseCode  string             `json:"base_code"`
	ErrorType string             `json:"error-type"`
	Rates     map[string]float64 `json:"rates"`
}

// ERAPIClient reads live rates from an open.er-api.com compatible endpoint.
type ERAPIClient struct {
	baseURL string
	base    string
	http    *pkghttp.Client
}

// NewERAPIClient creates a client that quotes every rate against base.
func NewERAPIClient(baseURL, base string, client *pkghttp.Client) *ERAPIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = pkghttp.NewClient()
	}
	return &ERAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    base,
		http:    client,
	}
}

// LatestRates fetches the full rate table quoted against base.
func (c *ERAPIClient) LatestRates(ctx context.Context, base string) (map[string]float64, error) {
	var resp erapiResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/"+base, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s rates: %w", base, err)
	}
	if resp.Result != "success" {
		if resp.ErrorType != "" {
			return nil, fmt.Errorf("%w: %s", errUpstreamResult, resp.ErrorType)
		}
		return nil, errUpstreamResult
	}
	if len(resp.Rates) == 0 {
		return nil, errNoRates
	}
	if resp.BaseCode != "" && resp.BaseCode != base {
		return nil, fmt.Errorf("%w: want %s got %s", errBaseMismatch, base, resp.BaseCode)
	}
	return resp.Rates, nil
}

// GetBaseRate returns the rate of currency against the configured base.
func (c *ERAPIClient) GetBaseRate(ctx context.Context, currency string) (float64, error) {
	return lookupRate(ctx, c, c.base, currency)
}

func lookupRate(ctx context.Context, table domrepo.RateTable, base, currency string) (float64, error) {
	rates, err := table.LatestRates(ctx, base)
	if err != nil {
		return 0, models.NewDataSourceError(currency, err)
	}
	rate, ok := rates[currency]
	if !ok {
		return 0, models.NewDataSourceError(currency, errMissingRate)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, models.NewComputationError(currency, "upstream rate is not finite")
	}
	if rate <= 0 {
		return 0, models.NewDataSourceError(currency, errBadRate)
	}
	return rate, nil
}

var (
	_ domrepo.RateSource = (*ERAPIClient)(nil)
	_ domrepo.RateTable  = (*ERAPIClient)(nil)
)
