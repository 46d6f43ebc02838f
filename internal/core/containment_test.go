package core

import (
	"math"
	"testing"

	"housing_features/internal/domain/model"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0},
	}}
}

func testVillages(t *testing.T) *VillageLayer {
	t.Helper()
	layer, err := NewVillageLayer(model.CRSTWD97, DefaultVillageFields, []model.Village{
		{Name: "west", Geometry: square(0, 0, 10), Properties: map[string]float64{"avg_tax": 800, "density": 12000, "edu_p": 0.41}},
		{Name: "east", Geometry: square(10, 0, 10), Properties: map[string]float64{"avg_tax": 950, "density": 9000}},
		{Name: "islands", Geometry: orb.MultiPolygon{square(100, 100, 5), square(200, 200, 5)}, Properties: map[string]float64{"avg_tax": 500}},
	})
	require.NoError(t, err)
	return layer
}

func TestVillageLookup(t *testing.T) {
	layer := testVillages(t)

	tests := []struct {
		name  string
		p     model.Point
		want  string
		found bool
	}{
		{"inside west", model.Point{X: 5, Y: 5}, "west", true},
		{"inside east", model.Point{X: 15, Y: 5}, "east", true},
		{"shared edge goes to first village", model.Point{X: 10, Y: 5}, "west", true},
		{"second part of multipolygon", model.Point{X: 202, Y: 201}, "islands", true},
		{"outside", model.Point{X: 50, Y: 50}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := layer.Lookup(tt.p)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, v.Name)
		})
	}
}

func TestVillageFeatures(t *testing.T) {
	layer := testVillages(t)

	got := layer.Features(model.Point{X: 5, Y: 5})
	assert.Equal(t, []float64{800, 12000, 0.41}, got)

	got = layer.Features(model.Point{X: 15, Y: 5})
	assert.Equal(t, 950.0, got[0])
	assert.True(t, math.IsNaN(got[2]), "missing attribute is null")

	for _, v := range layer.Features(model.Point{X: -1, Y: -1}) {
		assert.True(t, math.IsNaN(v))
	}
}

func TestNewVillageLayerRejectsPoints(t *testing.T) {
	_, err := NewVillageLayer(model.CRSTWD97, DefaultVillageFields, []model.Village{{Name: "bad", Geometry: orb.Point{1, 1}}})
	require.ErrorIs(t, err, model.ErrSchemaMismatch)
}
