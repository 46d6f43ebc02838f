package core

import (
	"fmt"
	"housing_features/internal/domain/model"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultVillageFields are the socio-economic attributes joined per record.
var DefaultVillageFields = []string{"avg_tax", "density", "edu_p"}

type village struct {
	model.Village
	bound orb.Bound
}

// VillageLayer answers point-in-polygon lookups over villages in file order.
type VillageLayer struct {
	CRS      model.CRS
	Fields   []string
	villages []village
}

func NewVillageLayer(crs model.CRS, fields []string, villages []model.Village) (*VillageLayer, error) {
	out := make([]village, len(villages))
	for i, v := range villages {
		switch v.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("village %d (%s) has geometry %T, want polygon: %w", i, v.Name, v.Geometry, model.ErrSchemaMismatch)
		}
		out[i] = village{Village: v, bound: v.Geometry.Bound()}
	}
	return &VillageLayer{CRS: crs, Fields: fields, villages: out}, nil
}

func (l *VillageLayer) Len() int {
	return len(l.villages)
}

// Lookup returns the first village containing p. Boundaries shared by two
// villages resolve to the earlier one.
func (l *VillageLayer) Lookup(p model.Point) (model.Village, bool) {
	pt := orb.Point{p.X, p.Y}
	for _, v := range l.villages {
		if !v.bound.Contains(pt) {
			continue
		}
		if contains(v.Geometry, pt) {
			return v.Village, true
		}
	}
	return model.Village{}, false
}

func contains(g orb.Geometry, pt orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return len(g) > 0 && planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	}
	return false
}

// Features returns the layer fields for p in Fields order; NaN when p is
// outside every village.
func (l *VillageLayer) Features(p model.Point) []float64 {
	out := make([]float64, len(l.Fields))
	v, ok := l.Lookup(p)
	for i, f := range l.Fields {
		out[i] = math.NaN()
		if !ok {
			continue
		}
		if val, has := v.Properties[f]; has {
			out[i] = val
		}
	}
	return out
}
