package load

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Omntg/tv-supabase-integration/config"
	"github.com/Omntg/tv-supabase-integration/models"
)

// SupabaseStore talks to the trading_data table through the PostgREST API of
// a Supabase project.
type SupabaseStore struct {
	HTTPClient *retryablehttp.Client
	Logger     *slog.Logger
	baseURL    string
	key        string
	table      string
}

func NewSupabaseStore(cfg *config.Config, logger *slog.Logger) *SupabaseStore {
	store := &SupabaseStore{
		HTTPClient: retryablehttp.NewClient(),
		Logger:     logger,
		baseURL:    fmt.Sprintf("%s/rest/v1/%s", cfg.Store.URL, cfg.Store.Table),
		key:        cfg.Store.Key,
		table:      cfg.Store.Table,
	}

	store.HTTPClient.RetryWaitMin = cfg.Extract.Backoff.RetryWaitMin
	store.HTTPClient.RetryWaitMax = cfg.Extract.Backoff.RetryWaitMax
	store.HTTPClient.RetryMax = cfg.Extract.Backoff.RetryMax
	store.HTTPClient.Logger = logger

	return store
}

func (s *SupabaseStore) HasDate(code, date string) (bool, error) {
	rows, err := s.selectDates(url.Values{
		"select": {"date"},
		"code":   {"eq." + code},
		"date":   {"eq." + date},
		"limit":  {"1"},
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *SupabaseStore) LatestDate(code string) (string, error) {
	rows, err := s.selectDates(url.Values{
		"select": {"date"},
		"code":   {"eq." + code},
		"order":  {"date.desc"},
		"limit":  {"1"},
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0], nil
}

func (s *SupabaseStore) ExistingDates(code string) (map[string]bool, error) {
	rows, err := s.selectDates(url.Values{
		"select": {"date"},
		"code":   {"eq." + code},
	})
	if err != nil {
		return nil, err
	}

	dates := make(map[string]bool, len(rows))
	for _, date := range rows {
		dates[date] = true
	}
	return dates, nil
}

func (s *SupabaseStore) DeleteCode(code string) error {
	query := url.Values{"code": {"eq." + code}}
	_, err := s.do(http.MethodDelete, query, nil, "")
	if err != nil {
		return fmt.Errorf("failed to delete rows for %s: %w", code, err)
	}
	return nil
}

func (s *SupabaseStore) InsertBars(bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	_, err := s.do(http.MethodPost, nil, bars, "return=minimal")
	if err != nil {
		return fmt.Errorf("failed to insert %d rows: %w", len(bars), err)
	}
	return nil
}

func (s *SupabaseStore) UpsertBars(bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	query := url.Values{"on_conflict": {"code,date"}}
	_, err := s.do(http.MethodPost, query, bars, "resolution=ignore-duplicates,return=minimal")
	if err != nil {
		return fmt.Errorf("failed to upsert %d rows: %w", len(bars), err)
	}
	return nil
}

func (s *SupabaseStore) Close() error {
	return nil
}

// selectDates runs a GET against the table and unpacks the single-column
// date projection PostgREST returns.
func (s *SupabaseStore) selectDates(query url.Values) ([]string, error) {
	body, err := s.do(http.MethodGet, query, nil, "")
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode store response: %w", err)
	}

	dates := make([]string, len(rows))
	for i, row := range rows {
		dates[i] = row.Date
	}
	return dates, nil
}

func (s *SupabaseStore) do(method string, query url.Values, payload any, prefer string) ([]byte, error) {
	reqURL := s.baseURL
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", s.baseURL, query.Encode())
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build store request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("store request %s %s failed, status: %s, body: %s", method, s.table, resp.Status, string(body))
	}

	return body, nil
}
