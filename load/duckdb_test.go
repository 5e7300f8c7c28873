package load

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omntg/tv-supabase-integration/models"
)

func setupTestStore(t *testing.T) *DuckDBStore {
	cfg := getTestConfig(":memory:")
	store, err := NewDuckDBStore(cfg, getTestLogger())
	if err != nil {
		t.Fatalf("Failed to create DuckDB store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testBars() []models.Bar {
	return []models.Bar{
		{Code: "THYAO", Date: "2025-01-02", High: 10.5, Low: 9.8, Close: 10.1, Volume: 1000},
		{Code: "THYAO", Date: "2025-01-03", High: 10.9, Low: 10.0, Close: 10.7, Volume: 1500},
	}
}

func TestDuckDBStore_EmptyTable(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.LatestDate("THYAO")
	require.NoError(t, err)
	assert.Equal(t, "", latest)

	has, err := store.HasDate("THYAO", "2025-01-02")
	require.NoError(t, err)
	assert.False(t, has)

	dates, err := store.ExistingDates("THYAO")
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestDuckDBStore_InsertAndRead(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.InsertBars(testBars()))

	latest, err := store.LatestDate("THYAO")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", latest)

	has, err := store.HasDate("THYAO", "2025-01-02")
	require.NoError(t, err)
	assert.True(t, has)

	dates, err := store.ExistingDates("THYAO")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"2025-01-02": true, "2025-01-03": true}, dates)

	// Other codes are unaffected by THYAO rows.
	dates, err = store.ExistingDates("GARAN")
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestDuckDBStore_InsertConflictFails(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.InsertBars(testBars()))
	assert.Error(t, store.InsertBars(testBars()))
}

func TestDuckDBStore_UpsertIgnoresDuplicates(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.InsertBars(testBars()))

	// Re-upserting the same rows plus one new one only adds the new row.
	bars := append(testBars(), models.Bar{
		Code: "THYAO", Date: "2025-01-06", High: 11.0, Low: 10.2, Close: 10.9, Volume: 900,
	})
	require.NoError(t, store.UpsertBars(bars))

	dates, err := store.ExistingDates("THYAO")
	require.NoError(t, err)
	assert.Len(t, dates, 3)
}

func TestDuckDBStore_DeleteCode(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.InsertBars(testBars()))
	require.NoError(t, store.InsertBars([]models.Bar{
		{Code: "GARAN", Date: "2025-01-02", High: 5.5, Low: 5.1, Close: 5.3, Volume: 700},
	}))

	require.NoError(t, store.DeleteCode("THYAO"))

	dates, err := store.ExistingDates("THYAO")
	require.NoError(t, err)
	assert.Empty(t, dates)

	dates, err = store.ExistingDates("GARAN")
	require.NoError(t, err)
	assert.Len(t, dates, 1)
}
