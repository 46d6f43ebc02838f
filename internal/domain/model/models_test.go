package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFacilitySet(t *testing.T) {
	points := []Point{{0, 0}, {10, 0}}
	attrs := map[string][]float64{"Is_Popular": {1, 0}}

	fs, err := NewFacilitySet("school", CRSTWD97, points, attrs)
	require.NoError(t, err)

	// inputs are copied
	points[0] = Point{99, 99}
	attrs["Is_Popular"][0] = 7

	assert.Equal(t, 2, fs.Len())
	assert.Equal(t, Point{0, 0}, fs.At(0))
	v, err := fs.Attribute("Is_Popular", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = fs.Attribute("Is_Combined", 0)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestNewFacilitySetValidation(t *testing.T) {
	_, err := NewFacilitySet("", CRSTWD97, nil, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewFacilitySet("atm", CRSTWD97, []Point{{math.NaN(), 1}}, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewFacilitySet("atm", CRSTWD97, []Point{{1, 1}}, map[string][]float64{"a": {1, 2}})
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestFacilitySetWithPoints(t *testing.T) {
	fs, err := NewFacilitySet("mrt", CRSWGS84, []Point{{121.5, 25.0}}, nil)
	require.NoError(t, err)

	projected, err := fs.WithPoints(CRSTWD97, []Point{{300000, 2765000}})
	require.NoError(t, err)
	assert.Equal(t, CRSTWD97, projected.CRS)
	assert.Equal(t, CRSWGS84, fs.CRS)

	_, err = fs.WithPoints(CRSTWD97, nil)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCRSProjected(t *testing.T) {
	assert.True(t, CRSTWD97.Projected())
	assert.False(t, CRSWGS84.Projected())
	assert.False(t, CRS("").Projected())
}
