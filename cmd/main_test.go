package main

import (
	"os"
	"path/filepath"
	"testing"

	"housing_features/internal/config"
	"housing_features/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRecords(t *testing.T) {
	input := config.InputConfig{IDColumn: "ID", XColumn: "lng", YColumn: "lat"}

	t.Run("geographic input is projected", func(t *testing.T) {
		cfg := &config.Config{Input: input}
		cfg.Input.CRS = string(model.CRSWGS84)
		path := writeCSV(t, "ID,lng,lat\nr1,121.5645,25.0340\nr2,121,25\n")

		records, err := loadRecords(cfg, path)
		require.NoError(t, err)
		assert.Equal(t, model.CRSTWD97, records.CRS)
		assert.InDelta(t, 306965.533, records.Points[0].X, 1.0)
		assert.InDelta(t, 2769662.224, records.Points[0].Y, 1.0)
		assert.InDelta(t, 250000, records.Points[1].X, 1.0)
	})

	t.Run("projected input is kept", func(t *testing.T) {
		cfg := &config.Config{Input: input}
		cfg.Input.CRS = string(model.CRSTWD97)
		path := writeCSV(t, "ID,lng,lat\nr1,306000,2770000\n")

		records, err := loadRecords(cfg, path)
		require.NoError(t, err)
		assert.Equal(t, []model.Point{{X: 306000, Y: 2770000}}, records.Points)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		cfg := &config.Config{Input: input}
		cfg.Input.CRS = string(model.CRSTWD97)
		path := writeCSV(t, "ID,lng,lat\nr1,1,1\nr1,2,2\n")

		_, err := loadRecords(cfg, path)
		require.ErrorIs(t, err, model.ErrSchemaMismatch)
	})
}
