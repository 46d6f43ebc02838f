package core

import (
	"math"
	"math/rand"
	"testing"

	"housing_features/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func facilities(t *testing.T, label string, pts ...model.Point) *model.FacilitySet {
	t.Helper()
	fs, err := model.NewFacilitySet(label, model.CRSTWD97, pts, nil)
	require.NoError(t, err)
	return fs
}

func TestNearestKMeanDistance(t *testing.T) {
	fs := facilities(t, "mrt", model.Point{X: 0, Y: 0}, model.Point{X: 10, Y: 0}, model.Point{X: 0, Y: 10})

	tests := []struct {
		name  string
		query model.Point
		k     int
		want  float64
	}{
		{"nearest two from origin", model.Point{X: 0, Y: 0}, 2, 5.0},
		{"single nearest", model.Point{X: 9, Y: 0}, 1, 1.0},
		{"all three", model.Point{X: 0, Y: 0}, 3, 20.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NearestKMeanDistance(tt.query, fs, tt.k)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestNearestKMeanDistanceRejectsK(t *testing.T) {
	fs := facilities(t, "mrt", model.Point{X: 0, Y: 0}, model.Point{X: 10, Y: 0})

	_, err := NearestKMeanDistance(model.Point{}, fs, 0)
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = NearestKMeanDistance(model.Point{}, fs, 3)
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestNearestKMeanDistancePermutationInvariant(t *testing.T) {
	pts := []model.Point{{X: 0.1, Y: 0}, {X: 3.3, Y: 1}, {X: 7, Y: 7}, {X: 0.3, Y: 0.2}, {X: 2, Y: 9}}
	reversed := make([]model.Point, len(pts))
	for i, p := range pts {
		reversed[len(pts)-1-i] = p
	}

	a, err := NearestKMeanDistance(model.Point{X: 1, Y: 1}, facilities(t, "a", pts...), 4)
	require.NoError(t, err)
	b, err := NearestKMeanDistance(model.Point{X: 1, Y: 1}, facilities(t, "b", reversed...), 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCountWithinRadius(t *testing.T) {
	fs := facilities(t, "atm", model.Point{X: 0, Y: 0}, model.Point{X: 3, Y: 4}, model.Point{X: 6, Y: 8})

	n, err := CountWithinRadius(model.Point{}, fs, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "boundary point at exactly 5 is counted")

	n, err = CountWithinRadius(model.Point{}, fs, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = CountWithinRadius(model.Point{}, facilities(t, "empty"), 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = CountWithinRadius(model.Point{}, fs, -1)
	require.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = CountWithinRadius(model.Point{}, fs, math.NaN())
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestCountWithinRadiusMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	pts := make([]model.Point, 200)
	for i := range pts {
		pts[i] = model.Point{X: rng.Float64() * 2000, Y: rng.Float64() * 2000}
	}
	fs := facilities(t, "park", pts...)
	idx, err := NewFacilityIndex(fs)
	require.NoError(t, err)

	for q := 0; q < 50; q++ {
		query := model.Point{X: rng.Float64()*2400 - 200, Y: rng.Float64()*2400 - 200}

		prev, prevIdx := 0, 0
		for r := 0.0; r <= 3000; r += 10 + rng.Float64()*90 {
			n, err := CountWithinRadius(query, fs, r)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, prev, "r=%v query=%v", r, query)
			prev = n

			m, err := idx.CountWithin(query, r)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, m, prevIdx, "r=%v query=%v", r, query)
			prevIdx = m
		}

		n, err := CountWithinRadius(query, fs, 3200)
		require.NoError(t, err)
		assert.Equal(t, len(pts), n, "every facility lies within 3200 of the query")
	}
}

func TestNearestFacilityIndex(t *testing.T) {
	fs := facilities(t, "school", model.Point{X: 5, Y: 0}, model.Point{X: -5, Y: 0}, model.Point{X: 1, Y: 9})

	i, err := NearestFacilityIndex(model.Point{}, fs)
	require.NoError(t, err)
	assert.Equal(t, 0, i, "tie resolves to lowest index")

	i, err = NearestFacilityIndex(model.Point{X: -4, Y: 0}, fs)
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = NearestFacilityIndex(model.Point{}, facilities(t, "empty"))
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestSpatialQueryColumns(t *testing.T) {
	assert.Equal(t, "avg_distances_mrt", NearestK{K: 3}.Column("mrt"))
	assert.Equal(t, "N_atm_500", RadiusCount{Radius: 500}.Column("atm"))
	assert.Equal(t, "N_atm_250.5", RadiusCount{Radius: 250.5}.Column("atm"))
}

func TestFacilityIndexMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	pts := make([]model.Point, 300)
	for i := range pts {
		// integer grid produces plenty of exact distance ties
		pts[i] = model.Point{X: float64(rng.Intn(60)), Y: float64(rng.Intn(60))}
	}
	fs := facilities(t, "bus", pts...)
	idx, err := NewFacilityIndex(fs)
	require.NoError(t, err)

	for q := 0; q < 200; q++ {
		query := model.Point{X: rng.Float64()*80 - 10, Y: float64(rng.Intn(70))}

		for _, k := range []int{1, 3, 10, 300} {
			want, err := NearestKMeanDistance(query, fs, k)
			require.NoError(t, err)
			got, err := idx.NearestKMean(query, k)
			require.NoError(t, err)
			assert.Equal(t, want, got, "k=%d query=%v", k, query)
		}

		for _, r := range []float64{0, 1, 5, 12.5, 100} {
			want, err := CountWithinRadius(query, fs, r)
			require.NoError(t, err)
			got, err := idx.CountWithin(query, r)
			require.NoError(t, err)
			assert.Equal(t, want, got, "r=%v query=%v", r, query)
		}

		want, err := NearestFacilityIndex(query, fs)
		require.NoError(t, err)
		got, err := idx.Nearest(query)
		require.NoError(t, err)
		assert.Equal(t, want, got, "query=%v", query)
	}
}

func TestFacilityIndexErrors(t *testing.T) {
	idx, err := NewFacilityIndex(facilities(t, "empty"))
	require.NoError(t, err)

	_, err = idx.Nearest(model.Point{})
	require.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = idx.NearestKMean(model.Point{}, 1)
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	n, err := idx.CountWithin(model.Point{}, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSpatialQueryEvaluate(t *testing.T) {
	fs := facilities(t, "mrt", model.Point{X: 0, Y: 0}, model.Point{X: 10, Y: 0}, model.Point{X: 0, Y: 10})
	idx, err := NewFacilityIndex(fs)
	require.NoError(t, err)

	assert.InDelta(t, 5.0, NearestK{K: 2}.Evaluate(idx, model.Point{}), 1e-12)
	assert.Equal(t, 3.0, RadiusCount{Radius: 10}.Evaluate(idx, model.Point{}))

	require.ErrorIs(t, NearestK{K: 4}.Validate(fs), model.ErrInvalidArgument)
	require.ErrorIs(t, RadiusCount{Radius: -2}.Validate(fs), model.ErrInvalidArgument)
}
