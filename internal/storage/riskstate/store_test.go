package riskstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	state := domain.RiskState{
		Day:                    "2026-05-01",
		DailyLossAccumulated:   decimal.RequireFromString("42.5"),
		DailyTradeCount:        3,
		EmergencyStopTriggered: true,
	}
	require.NoError(t, store.Save(state))

	loaded, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "2026-05-01", loaded.Day)
	assert.True(t, state.DailyLossAccumulated.Equal(loaded.DailyLossAccumulated))
	assert.Equal(t, 3, loaded.DailyTradeCount)
	assert.True(t, loaded.EmergencyStopTriggered)

	_, err = os.Stat(store.path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("{not json"), 0o644))

	_, err = store.Load()
	assert.Error(t, err)
}

func TestNilStore(t *testing.T) {
	var store *Store

	loaded, err := store.Load()
	assert.NoError(t, err)
	assert.Nil(t, loaded)
	assert.NoError(t, store.Save(domain.RiskState{}))
}
