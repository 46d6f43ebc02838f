package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame(
		[]string{"ID", "district", "x", "y"},
		[][]string{
			{"a", "Daan", "305266", "2768378"},
			{"b", "Xinyi", "306100", ""},
		},
	)
	require.NoError(t, err)
	return f
}

func TestNewFrameRejectsRaggedRows(t *testing.T) {
	_, err := NewFrame([]string{"a", "b"}, [][]string{{"1"}})
	require.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = NewFrame([]string{"a", "a"}, nil)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestFrameRequire(t *testing.T) {
	f := sampleFrame(t)
	require.NoError(t, f.Require("ID", "x"))

	err := f.Require("ID", "lat", "lng")
	require.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "lat, lng")
}

func TestFrameFloats(t *testing.T) {
	f := sampleFrame(t)

	xs, err := f.Floats("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{305266, 306100}, xs)

	_, err = f.Floats("y")
	require.ErrorIs(t, err, ErrSchemaMismatch, "empty cell is not a number")

	ys, err := f.FloatsOrNaN("y")
	require.NoError(t, err)
	assert.Equal(t, 2768378.0, ys[0])
	assert.True(t, math.IsNaN(ys[1]))

	_, err = f.Floats("district")
	require.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestFeatureMatrixAddColumn(t *testing.T) {
	m, err := NewFeatureMatrix(sampleFrame(t), "ID")
	require.NoError(t, err)

	require.NoError(t, m.AddColumn("avg_distances_mrt", []float64{5, 7}))
	require.ErrorIs(t, m.AddColumn("short", []float64{1}), ErrSchemaMismatch)
	require.ErrorIs(t, m.AddColumn("avg_distances_mrt", []float64{1, 2}), ErrInvalidArgument)
	require.ErrorIs(t, m.AddColumn("district", []float64{1, 2}), ErrInvalidArgument)

	assert.Equal(t, []string{"a", "b"}, m.IDs())
	assert.Equal(t, []string{"ID", "district", "x", "y", "avg_distances_mrt"}, m.Header())
	assert.Equal(t, []string{"avg_distances_mrt"}, m.Features())
}

func TestFeatureMatrixDesign(t *testing.T) {
	m, err := NewFeatureMatrix(sampleFrame(t), "ID")
	require.NoError(t, err)
	require.NoError(t, m.AddColumn("edu_p", []float64{0.4, math.NaN()}))

	X, err := m.Design([]string{"x", "edu_p", "y"}, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{305266, 0.4, 2768378},
		{306100, -1, -1},
	}, X)

	_, err = m.Design([]string{"missing"}, 0)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestNewFeatureMatrixRequiresID(t *testing.T) {
	_, err := NewFeatureMatrix(sampleFrame(t), "record_id")
	require.ErrorIs(t, err, ErrSchemaMismatch)
}
