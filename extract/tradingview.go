package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Omntg/tv-supabase-integration/config"
)

// ErrNoData marks a well-formed provider response that simply contains no
// bars for the requested symbol. Callers must not treat it as a fetch fault.
var ErrNoData = errors.New("no data for symbol")

// Series is the raw UDF-style history payload: parallel arrays indexed by
// bar, with nullable numeric entries. Timestamps are UNIX seconds.
type Series struct {
	Status     string     `json:"s"`
	ErrMsg     string     `json:"errmsg"`
	Timestamps []int64    `json:"t"`
	Opens      []*float64 `json:"o"`
	Highs      []*float64 `json:"h"`
	Lows       []*float64 `json:"l"`
	Closes     []*float64 `json:"c"`
	Volumes    []*float64 `json:"v"`
}

type TVClient struct {
	HTTPClient *retryablehttp.Client
	Logger     *slog.Logger
	TVConfig   *config.TVConfig
}

func NewTVClient(cfg *config.Config, logger *slog.Logger) *TVClient {
	client := &TVClient{
		HTTPClient: retryablehttp.NewClient(),
		Logger:     logger,
		TVConfig:   &cfg.TV,
	}

	client.HTTPClient.RetryWaitMin = cfg.Extract.Backoff.RetryWaitMin
	client.HTTPClient.RetryWaitMax = cfg.Extract.Backoff.RetryWaitMax
	client.HTTPClient.RetryMax = cfg.Extract.Backoff.RetryMax
	client.HTTPClient.Logger = logger

	if cfg.TV.Username == "" {
		logger.Warn("No TradingView credentials configured, running in guest mode")
	}

	return client
}

// GetHistory fetches the last nBars daily bars for a symbol on the configured
// exchange. Transport errors and 5xx responses are retried by the underlying
// client according to the backoff config; exhaustion surfaces here.
func (c *TVClient) GetHistory(symbol string, nBars int) (*Series, error) {
	historyURL, err := c.historyURL(symbol, nBars)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequest(http.MethodGet, historyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history request: %w", err)
	}
	if c.TVConfig.Username != "" {
		req.SetBasicAuth(c.TVConfig.Username, c.TVConfig.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch history for %s, status: %s, body: %s", symbol, resp.Status, string(body))
	}

	var series Series
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("failed to decode history for %s: %w", symbol, err)
	}

	switch series.Status {
	case "ok":
		if len(series.Timestamps) == 0 {
			return nil, ErrNoData
		}
		return &series, nil
	case "no_data":
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("provider error for %s: %s", symbol, series.ErrMsg)
	}
}

func (c *TVClient) historyURL(symbol string, nBars int) (string, error) {
	parsedURL, err := url.Parse(c.TVConfig.BaseURL + "/history")
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := parsedURL.Query()
	query.Set("symbol", fmt.Sprintf("%s:%s", c.TVConfig.Exchange, symbol))
	query.Set("resolution", "D")
	query.Set("countback", fmt.Sprintf("%d", nBars))
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}
