package repository

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"housing_features/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCSVStripsBOM(t *testing.T) {
	in := "\xEF\xBB\xBFID,district,unit_price\na,Daan,12.5\nb,Xinyi,9\n"
	frame, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "district", "unit_price"}, frame.Columns)
	assert.True(t, frame.Has("ID"))
	prices, err := frame.Floats("unit_price")
	require.NoError(t, err)
	assert.Equal(t, []float64{12.5, 9}, prices)
}

func TestDecodeCSVErrors(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader(""))
	require.ErrorIs(t, err, model.ErrSchemaMismatch)

	_, err = DecodeCSV(strings.NewReader("a,b\n1\n"))
	require.Error(t, err)
}

func TestWriteFeatureMatrix(t *testing.T) {
	frame, err := model.NewFrame([]string{"ID", "district"}, [][]string{{"a", "Daan"}, {"b", "Xinyi"}})
	require.NoError(t, err)
	m, err := model.NewFeatureMatrix(frame, "ID")
	require.NoError(t, err)
	require.NoError(t, m.AddColumn("avg_distances_mrt", []float64{5, 120.25}))
	require.NoError(t, m.AddColumn("avg_tax", []float64{800, math.NaN()}))

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteFeatureMatrix(path, m))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID,district,avg_distances_mrt,avg_tax\na,Daan,5,800\nb,Xinyi,120.25,\n", string(raw))

	back, err := ReadCSV(path)
	require.NoError(t, err)
	tax, err := back.FloatsOrNaN("avg_tax")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(tax[1]))
}

func TestEncodeFeatureMatrixQuotes(t *testing.T) {
	frame, err := model.NewFrame([]string{"ID", "address"}, [][]string{{"a", "No. 7, Sec. 5"}})
	require.NoError(t, err)
	m, err := model.NewFeatureMatrix(frame, "ID")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeFeatureMatrix(&buf, m))
	assert.Equal(t, "ID,address\na,\"No. 7, Sec. 5\"\n", buf.String())
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
