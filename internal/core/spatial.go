package core

import (
	"fmt"
	"housing_features/internal/domain/model"
	"math"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// The functions below are the reference O(m log m) per-query implementation.
// Over n records this is O(n·m·log m) and dominates pipeline runtime; the
// pipeline uses FacilityIndex, which returns identical results.

type ranked struct {
	idx  int
	dist float64
}

// rank orders facilities by (distance, input index).
func rank(query model.Point, facilities *model.FacilitySet) []ranked {
	out := make([]ranked, facilities.Len())
	for i := range out {
		out[i] = ranked{idx: i, dist: distance(query, facilities.At(i))}
	}
	sortRanked(out)
	return out
}

func sortRanked(r []ranked) {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].dist != r[j].dist {
			return r[i].dist < r[j].dist
		}
		return r[i].idx < r[j].idx
	})
}

func distance(a, b model.Point) float64 {
	return planar.Distance(orb.Point{a.X, a.Y}, orb.Point{b.X, b.Y})
}

// NearestKMeanDistance returns the mean of the k smallest Euclidean distances
// from query to the facilities.
func NearestKMeanDistance(query model.Point, facilities *model.FacilitySet, k int) (float64, error) {
	if err := validateK(k, facilities); err != nil {
		return 0, err
	}
	return meanOfFirst(rank(query, facilities), k), nil
}

// meanOfFirst sums in ascending distance order so the result does not depend
// on the input order of the facilities.
func meanOfFirst(r []ranked, k int) float64 {
	var sum float64
	for _, c := range r[:k] {
		sum += c.dist
	}
	return sum / float64(k)
}

func validateK(k int, facilities *model.FacilitySet) error {
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d: %w", k, model.ErrInvalidArgument)
	}
	if k > facilities.Len() {
		return fmt.Errorf("k=%d exceeds %d facilities in %s: %w", k, facilities.Len(), facilities.Label, model.ErrInvalidArgument)
	}
	return nil
}

// CountWithinRadius counts facilities at distance <= radius.
func CountWithinRadius(query model.Point, facilities *model.FacilitySet, radius float64) (int, error) {
	if err := validateRadius(radius); err != nil {
		return 0, err
	}
	n := 0
	for i := 0; i < facilities.Len(); i++ {
		if distance(query, facilities.At(i)) <= radius {
			n++
		}
	}
	return n, nil
}

func validateRadius(radius float64) error {
	if math.IsNaN(radius) || radius < 0 {
		return fmt.Errorf("radius must be a non-negative number, got %v: %w", radius, model.ErrInvalidArgument)
	}
	return nil
}

// NearestFacilityIndex returns the index of the closest facility; equal
// distances resolve to the lowest index.
func NearestFacilityIndex(query model.Point, facilities *model.FacilitySet) (int, error) {
	if facilities.Len() == 0 {
		return 0, fmt.Errorf("facility set %s is empty: %w", facilities.Label, model.ErrInvalidArgument)
	}
	best, bestDist := 0, distance(query, facilities.At(0))
	for i := 1; i < facilities.Len(); i++ {
		if d := distance(query, facilities.At(i)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// SpatialQuery is one proximity feature computed against a facility set.
type SpatialQuery interface {
	Column(label string) string
	Validate(facilities *model.FacilitySet) error
	Evaluate(index *FacilityIndex, query model.Point) float64
}

// NearestK is the mean distance to the K nearest facilities.
type NearestK struct {
	K int
}

func (q NearestK) Column(label string) string {
	return "avg_distances_" + label
}

func (q NearestK) Validate(facilities *model.FacilitySet) error {
	return validateK(q.K, facilities)
}

func (q NearestK) Evaluate(index *FacilityIndex, query model.Point) float64 {
	v, _ := index.NearestKMean(query, q.K)
	return v
}

// RadiusCount is the number of facilities within Radius.
type RadiusCount struct {
	Radius float64
}

func (q RadiusCount) Column(label string) string {
	return "N_" + label + "_" + strconv.FormatFloat(q.Radius, 'f', -1, 64)
}

func (q RadiusCount) Validate(*model.FacilitySet) error {
	return validateRadius(q.Radius)
}

func (q RadiusCount) Evaluate(index *FacilityIndex, query model.Point) float64 {
	n, _ := index.CountWithin(query, q.Radius)
	return float64(n)
}
