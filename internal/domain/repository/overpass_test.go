package repository

import (
	"context"
	"testing"
	"time"

	"housing_features/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFacilityQuery(t *testing.T) {
	q := BuildFacilityQuery(model.OSMQuery{
		Label: "mrt",
		Key:   "railway",
		Value: "station|halt",
		BBox:  model.Bounds{MinLat: 24.9, MinLon: 121.4, MaxLat: 25.2, MaxLon: 121.7},
	})

	assert.Contains(t, q, "[out:json];")
	assert.Contains(t, q, `node["railway"~"station|halt"](24.900000,121.400000,25.200000,121.700000);`)
	assert.Contains(t, q, `way["railway"~"station|halt"](24.900000,121.400000,25.200000,121.700000);`)
	assert.Contains(t, q, "out skel qt;")
}

func TestBuildFacilityQueryWithoutBBox(t *testing.T) {
	q := BuildFacilityQuery(model.OSMQuery{Key: "amenity", Value: "atm"})
	assert.Contains(t, q, "\tnode[\"amenity\"~\"atm\"];\n")
}

func TestSortElementsAndFacilitySet(t *testing.T) {
	elements := []model.OSMElement{
		{ID: 9, Type: "way", Lat: 25.1, Lon: 121.6},
		{ID: 7, Type: "node", Lat: 25.0, Lon: 121.5},
		{ID: 3, Type: "node", Lat: 25.2, Lon: 121.4},
	}
	SortElements(elements)
	assert.Equal(t, []int64{3, 7, 9}, []int64{elements[0].ID, elements[1].ID, elements[2].ID})

	fs, err := ElementsToFacilitySet("atm", elements)
	require.NoError(t, err)
	assert.Equal(t, model.CRSWGS84, fs.CRS)
	assert.Equal(t, model.Point{X: 121.4, Y: 25.2}, fs.At(0))
}

func TestGetFacilitiesHonoursContext(t *testing.T) {
	repo := NewOverpassRepository("http://127.0.0.1:1/api/interpreter", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetFacilities(ctx, model.OSMQuery{Label: "atm", Key: "amenity", Value: "atm"})
	require.Error(t, err)
}
