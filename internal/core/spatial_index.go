package core

import (
	"fmt"
	"housing_features/internal/domain/model"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

// boundEpsilon widens candidate windows so points lying exactly on the search
// radius survive floating point rounding of the window edges.
const boundEpsilon = 1e-9

type indexedPoint struct {
	p orb.Point
	i int
}

func (ip indexedPoint) Point() orb.Point {
	return ip.p
}

// FacilityIndex is a read-only quadtree over one FacilitySet. It is safe for
// concurrent queries and answers exactly like the brute-force functions.
type FacilityIndex struct {
	set  *model.FacilitySet
	tree *quadtree.Quadtree
}

func NewFacilityIndex(facilities *model.FacilitySet) (*FacilityIndex, error) {
	mp := make(orb.MultiPoint, facilities.Len())
	for i := range mp {
		p := facilities.At(i)
		mp[i] = orb.Point{p.X, p.Y}
	}

	tree := quadtree.New(mp.Bound().Pad(1))
	for i, p := range mp {
		if err := tree.Add(indexedPoint{p: p, i: i}); err != nil {
			return nil, fmt.Errorf("indexing %s[%d]: %w", facilities.Label, i, err)
		}
	}
	return &FacilityIndex{set: facilities, tree: tree}, nil
}

// within returns every facility at distance <= r from q, ranked by
// (distance, index).
func (x *FacilityIndex) within(q orb.Point, r float64) []ranked {
	pad := r + boundEpsilon*(1+r+math.Abs(q[0])+math.Abs(q[1]))
	window := orb.Bound{Min: q, Max: q}.Pad(pad)

	var out []ranked
	for _, c := range x.tree.InBound(nil, window) {
		ip := c.(indexedPoint)
		if d := planar.Distance(q, ip.p); d <= r {
			out = append(out, ranked{idx: ip.i, dist: d})
		}
	}
	sortRanked(out)
	return out
}

func (x *FacilityIndex) NearestKMean(query model.Point, k int) (float64, error) {
	if err := validateK(k, x.set); err != nil {
		return 0, err
	}
	q := orb.Point{query.X, query.Y}

	// The k-th result bounds the true k-th distance from above; ties at that
	// distance are resolved by re-ranking every candidate inside it.
	var upper float64
	for _, c := range x.tree.KNearest(nil, q, k) {
		if d := planar.Distance(q, c.(indexedPoint).p); d > upper {
			upper = d
		}
	}
	return meanOfFirst(x.within(q, upper), k), nil
}

func (x *FacilityIndex) CountWithin(query model.Point, radius float64) (int, error) {
	if err := validateRadius(radius); err != nil {
		return 0, err
	}
	if x.set.Len() == 0 {
		return 0, nil
	}
	return len(x.within(orb.Point{query.X, query.Y}, radius)), nil
}

func (x *FacilityIndex) Nearest(query model.Point) (int, error) {
	if x.set.Len() == 0 {
		return 0, fmt.Errorf("facility set %s is empty: %w", x.set.Label, model.ErrInvalidArgument)
	}
	q := orb.Point{query.X, query.Y}
	found := x.tree.Find(q)
	if found == nil {
		return NearestFacilityIndex(query, x.set)
	}
	return x.within(q, planar.Distance(q, found.(indexedPoint).p))[0].idx, nil
}
