package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
)

// ProviderClient is an HTTP client for the OHLCV data provider.
type ProviderClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewProviderClient creates a new provider client.
func NewProviderClient(baseURL, apiKey string, log zerolog.Logger) *ProviderClient {
	return &ProviderClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "provider").Logger(),
	}
}

// providerBar mirrors one OHLCV row in the provider response.
type providerBar struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// providerResponse mirrors the provider's series payload.
type providerResponse struct {
	Symbol    string        `json:"symbol"`
	Name      string        `json:"name"`
	AssetType string        `json:"asset_type"`
	Currency  string        `json:"currency"`
	Bars      []providerBar `json:"bars"`
	Error     *string       `json:"error"`
}

// FetchSeries downloads the full history for symbol at interval.
// Bars are returned oldest first regardless of provider ordering.
func (c *ProviderClient) FetchSeries(ctx context.Context, symbol string, interval domain.Interval) (domain.Asset, []domain.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/v1/ohlcv?%s", c.baseURL, url.Values{
		"symbol":   {symbol},
		"interval": {string(interval)},
		"apikey":   {c.apiKey},
	}.Encode())

	c.log.Debug().Str("symbol", symbol).Str("interval", string(interval)).Msg("Fetching bars from provider")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Asset{}, nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Asset{}, nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Asset{}, nil, fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Asset{}, nil, fmt.Errorf("provider returned status %d for %s", resp.StatusCode, symbol)
	}

	var payload providerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Asset{}, nil, fmt.Errorf("failed to parse provider response: %w", err)
	}
	if payload.Error != nil {
		return domain.Asset{}, nil, fmt.Errorf("provider error for %s: %s", symbol, *payload.Error)
	}

	points := make([]domain.PricePoint, 0, len(payload.Bars))
	for _, bar := range payload.Bars {
		ts, err := time.Parse(time.RFC3339, bar.Timestamp)
		if err != nil {
			return domain.Asset{}, nil, fmt.Errorf("unparseable bar timestamp %q for %s: %w", bar.Timestamp, symbol, err)
		}
		points = append(points, domain.PricePoint{
			Timestamp: ts.UTC(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	assetType := domain.AssetType(payload.AssetType)
	if assetType == "" {
		assetType = domain.AssetTypeStock
	}
	currency := payload.Currency
	if currency == "" {
		currency = "USD"
	}

	asset := domain.Asset{
		Symbol:    symbol,
		Name:      payload.Name,
		AssetType: assetType,
		Currency:  currency,
	}
	return asset, points, nil
}
