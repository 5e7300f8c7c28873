package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omntg/tv-supabase-integration/config"
)

func getTestConfig(baseURL string) *config.Config {
	return &config.Config{
		TV: config.TVConfig{
			BaseURL:  baseURL,
			Exchange: "BIST",
		},
		Extract: config.ExtractConfig{
			Backoff: config.BackoffConfig{
				RetryWaitMin: time.Millisecond,
				RetryWaitMax: 5 * time.Millisecond,
				RetryMax:     2,
			},
		},
	}
}

func getTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

const okBody = `{"s":"ok","t":[1736121600,1736208000],"o":[10.0,10.1],"h":[10.5,10.6],"l":[9.8,9.9],"c":[10.1,10.2],"v":[1000,2000]}`

func TestGetHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history", r.URL.Path)
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		assert.Equal(t, "100", r.URL.Query().Get("countback"))

		switch r.URL.Query().Get("symbol") {
		case "BIST:THYAO":
			fmt.Fprint(w, okBody)
		case "BIST:EMPTY":
			fmt.Fprint(w, `{"s":"no_data"}`)
		case "BIST:BROKEN":
			fmt.Fprint(w, `{"s":"error","errmsg":"unknown symbol"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewTVClient(getTestConfig(server.URL), getTestLogger())

	t.Run("valid series", func(t *testing.T) {
		series, err := client.GetHistory("THYAO", 100)
		require.NoError(t, err)
		assert.Equal(t, "ok", series.Status)
		assert.Len(t, series.Timestamps, 2)
		assert.Len(t, series.Volumes, 2)
	})

	t.Run("no data is a sentinel, not a fault", func(t *testing.T) {
		_, err := client.GetHistory("EMPTY", 100)
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("provider error surfaces errmsg", func(t *testing.T) {
		_, err := client.GetHistory("BROKEN", 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown symbol")
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		_, err := client.GetHistory("MISSING", 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestGetHistory_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, okBody)
	}))
	defer server.Close()

	client := NewTVClient(getTestConfig(server.URL), getTestLogger())

	series, err := client.GetHistory("THYAO", 100)
	require.NoError(t, err)
	assert.Len(t, series.Timestamps, 2)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestGetHistory_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewTVClient(getTestConfig(server.URL), getTestLogger())

	_, err := client.GetHistory("THYAO", 100)
	assert.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestGetHistory_Credentials(t *testing.T) {
	var sawAuth atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		sawAuth.Store(ok)
		fmt.Fprint(w, okBody)
	}))
	defer server.Close()

	cfg := getTestConfig(server.URL)
	client := NewTVClient(cfg, getTestLogger())
	_, err := client.GetHistory("THYAO", 100)
	require.NoError(t, err)
	assert.False(t, sawAuth.Load(), "guest mode must not send credentials")

	cfg.TV.Username = "someone"
	cfg.TV.Password = "secret"
	client = NewTVClient(cfg, getTestLogger())
	_, err = client.GetHistory("THYAO", 100)
	require.NoError(t, err)
	assert.True(t, sawAuth.Load())
}
