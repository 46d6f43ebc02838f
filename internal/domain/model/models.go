package model

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// CRS identifies the coordinate reference system of a point set.
type CRS string

const (
	CRSTWD97 CRS = "EPSG:3826" // TWD97 / TM2 zone 121, metres
	CRSWGS84 CRS = "EPSG:4326" // lng/lat, degrees
)

// Projected reports whether Euclidean distance is meaningful in this CRS.
func (c CRS) Projected() bool {
	return c == CRSTWD97
}

type Point struct {
	X float64
	Y float64
}

func (p Point) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// FacilitySet is an immutable, ordered collection of facility locations.
// Attributes hold per-facility numeric columns aligned with Points
// (e.g. "Is_Popular" for schools).
type FacilitySet struct {
	Label      string
	CRS        CRS
	points     []Point
	attributes map[string][]float64
}

func NewFacilitySet(label string, crs CRS, points []Point, attributes map[string][]float64) (*FacilitySet, error) {
	if label == "" {
		return nil, fmt.Errorf("facility set label is empty: %w", ErrInvalidArgument)
	}
	for i, p := range points {
		if !p.Valid() {
			return nil, fmt.Errorf("facility %s[%d] has non-finite coordinates: %w", label, i, ErrInvalidArgument)
		}
	}

	attrs := make(map[string][]float64, len(attributes))
	for name, values := range attributes {
		if len(values) != len(points) {
			return nil, fmt.Errorf("attribute %q of %s has %d values for %d points: %w",
				name, label, len(values), len(points), ErrSchemaMismatch)
		}
		attrs[name] = append([]float64(nil), values...)
	}

	return &FacilitySet{
		Label:      label,
		CRS:        crs,
		points:     append([]Point(nil), points...),
		attributes: attrs,
	}, nil
}

func (f *FacilitySet) Len() int {
	return len(f.points)
}

func (f *FacilitySet) At(i int) Point {
	return f.points[i]
}

// Points returns a copy of the facility coordinates.
func (f *FacilitySet) Points() []Point {
	return append([]Point(nil), f.points...)
}

// Attribute returns the value of a named attribute for facility i.
func (f *FacilitySet) Attribute(name string, i int) (float64, error) {
	values, ok := f.attributes[name]
	if !ok {
		return 0, fmt.Errorf("facility set %s has no attribute %q: %w", f.Label, name, ErrSchemaMismatch)
	}
	return values[i], nil
}

func (f *FacilitySet) HasAttribute(name string) bool {
	_, ok := f.attributes[name]
	return ok
}

// WithPoints returns a copy of the set with replaced coordinates in a new CRS.
// Used by the projection step; attributes are shared read-only.
func (f *FacilitySet) WithPoints(crs CRS, points []Point) (*FacilitySet, error) {
	if len(points) != len(f.points) {
		return nil, fmt.Errorf("reprojecting %s: %d points for %d facilities: %w",
			f.Label, len(points), len(f.points), ErrSchemaMismatch)
	}
	return NewFacilitySet(f.Label, crs, points, f.attributes)
}

// TargetRecord pairs a category value with an observed target (unit price).
type TargetRecord struct {
	Category string
	Target   float64
}

// GroupStats are the sufficient statistics of one category: sum of targets and count.
type GroupStats struct {
	Sum   float64
	Count float64
}

// Village is one administrative boundary polygon with numeric socio-economic
// attributes (average household tax, population density, education share).
type Village struct {
	Name       string
	Geometry   orb.Geometry
	Properties map[string]float64
}
