package load

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/Omntg/tv-supabase-integration/config"
	"github.com/Omntg/tv-supabase-integration/models"
)

// DuckDBStore keeps a local (or MotherDuck-hosted) copy of trading_data with
// the same (code, date) uniqueness as the Supabase table.
type DuckDBStore struct {
	Logger    *slog.Logger
	DB        *sql.DB
	Connector *duckdb.Connector
	table     string
}

func NewDuckDBStore(cfg *config.Config, logger *slog.Logger) (*DuckDBStore, error) {
	var path string
	switch {
	case strings.HasPrefix(cfg.Store.URL, "md:"):
		motherduckToken := os.Getenv("MOTHERDUCK_TOKEN")
		if motherduckToken == "" {
			return nil, fmt.Errorf("MOTHERDUCK_TOKEN env variable is not set")
		}
		path = fmt.Sprintf("%s?motherduck_token=%s", cfg.Store.URL, motherduckToken)
		logger.Info("Connecting to MotherDuck database")
	case cfg.Store.URL == ":memory:":
		path = ""
		logger.Info("Connecting to DuckDB in-memory database")
	default:
		path = cfg.Store.URL
		logger.Info(fmt.Sprintf("Connecting to local DuckDB database at %s", path))
	}

	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, err
	}

	store := &DuckDBStore{
		Logger:    logger,
		DB:        sql.OpenDB(connector),
		Connector: connector,
		table:     cfg.Store.Table,
	}

	if err := store.ensureTable(); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

func (s *DuckDBStore) ensureTable() error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		code VARCHAR NOT NULL,
		date VARCHAR NOT NULL,
		high_tl DOUBLE NOT NULL,
		low_tl DOUBLE NOT NULL,
		closing_tl DOUBLE NOT NULL,
		volume_t BIGINT NOT NULL,
		PRIMARY KEY (code, date)
	);`, s.table)

	if _, err := s.DB.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

func (s *DuckDBStore) HasDate(code, date string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE code = ? AND date = ? LIMIT 1", s.table)
	row := s.DB.QueryRowContext(context.Background(), query, code, date)

	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check date for %s: %w", code, err)
	}
	return true, nil
}

func (s *DuckDBStore) LatestDate(code string) (string, error) {
	query := fmt.Sprintf("SELECT max(date) FROM %s WHERE code = ?", s.table)
	row := s.DB.QueryRowContext(context.Background(), query, code)

	var latest sql.NullString
	if err := row.Scan(&latest); err != nil {
		return "", fmt.Errorf("failed to get latest date for %s: %w", code, err)
	}
	if !latest.Valid {
		return "", nil
	}
	return latest.String, nil
}

func (s *DuckDBStore) ExistingDates(code string) (map[string]bool, error) {
	query := fmt.Sprintf("SELECT date FROM %s WHERE code = ?", s.table)
	rows, err := s.DB.QueryContext(context.Background(), query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing dates for %s: %w", code, err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan date row: %w", err)
		}
		dates[date] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over date rows: %w", err)
	}

	return dates, nil
}

func (s *DuckDBStore) DeleteCode(code string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE code = ?", s.table)
	if _, err := s.DB.ExecContext(context.Background(), query, code); err != nil {
		return fmt.Errorf("failed to delete rows for %s: %w", code, err)
	}
	return nil
}

func (s *DuckDBStore) InsertBars(bars []models.Bar) error {
	query := fmt.Sprintf("INSERT INTO %s (code, date, high_tl, low_tl, closing_tl, volume_t) VALUES (?, ?, ?, ?, ?, ?)", s.table)
	return s.writeBars(query, bars)
}

func (s *DuckDBStore) UpsertBars(bars []models.Bar) error {
	query := fmt.Sprintf("INSERT INTO %s (code, date, high_tl, low_tl, closing_tl, volume_t) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (code, date) DO NOTHING", s.table)
	return s.writeBars(query, bars)
}

// writeBars runs one prepared statement per bar inside a single transaction,
// so a partial batch never survives a write failure.
func (s *DuckDBStore) writeBars(query string, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(context.Background(), query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.ExecContext(context.Background(), bar.Code, bar.Date, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to write bar %s/%s: %w", bar.Code, bar.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bars: %w", err)
	}
	return nil
}

func (s *DuckDBStore) Close() error {
	if err := s.DB.Close(); err != nil {
		return err
	}
	return s.Connector.Close()
}
