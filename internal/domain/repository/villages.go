package repository

import (
	"fmt"
	"housing_features/internal/domain/model"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// ReadVillages loads village polygons from a GeoJSON FeatureCollection in file
// order. Each requested field is read from the feature properties; absent or
// non-numeric values become NaN.
func ReadVillages(path, nameProperty string, fields []string) ([]model.Village, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	villages := make([]model.Village, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("%s feature %d has no geometry: %w", path, i, model.ErrSchemaMismatch)
		}
		v := model.Village{
			Name:       stringProperty(f.Properties, nameProperty),
			Geometry:   f.Geometry,
			Properties: make(map[string]float64, len(fields)),
		}
		for _, field := range fields {
			v.Properties[field] = numericProperty(f.Properties, field)
		}
		villages = append(villages, v)
	}
	return villages, nil
}

func stringProperty(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func numericProperty(p geojson.Properties, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}
