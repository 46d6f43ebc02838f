package repository

import (
	"context"
	"fmt"
	"github.com/serjvanilla/go-overpass"
	"housing_features/internal/domain/model"
	"net/http"
	"sort"
	"strings"
	"time"
)

// OverpassRepository fetches facility points from OpenStreetMap when no
// published facility table is available.
type OverpassRepository struct {
	client  *overpass.Client
	timeout time.Duration
}

func NewOverpassRepository(endpoint string, timeout time.Duration) *OverpassRepository {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRepository{
		client:  &client,
		timeout: timeout,
	}
}

// BuildFacilityQuery renders an Overpass QL query for nodes and ways tagged
// Key~Value inside the bbox. A zero bbox means no spatial filter.
func BuildFacilityQuery(q model.OSMQuery) string {
	filter := fmt.Sprintf(`["%s"~"%s"]`, q.Key, q.Value)
	if q.BBox != (model.Bounds{}) {
		filter += fmt.Sprintf("(%f,%f,%f,%f)", q.BBox.MinLat, q.BBox.MinLon, q.BBox.MaxLat, q.BBox.MaxLon)
	}

	var b strings.Builder
	b.WriteString("[out:json];\n(\n")
	fmt.Fprintf(&b, "\tnode%s;\n", filter)
	fmt.Fprintf(&b, "\tway%s;\n", filter)
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

// GetFacilities returns the matching elements ordered by (type, id) so repeated
// runs produce the same facility order.
func (r *OverpassRepository) GetFacilities(ctx context.Context, q model.OSMQuery) ([]model.OSMElement, error) {
	result, err := r.executeQuery(ctx, BuildFacilityQuery(q))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s facilities: %w", q.Label, err)
	}
	return convertToOSMElements(result, q.Key), nil
}

func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type reply struct {
		result overpass.Result
		err    error
	}
	done := make(chan reply, 1)
	go func() {
		result, err := r.client.Query(query)
		done <- reply{result, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rep := <-done:
		if rep.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", rep.err)
		}
		return &rep.result, nil
	}
}

// convertToOSMElements keeps tagged elements only; untagged nodes are way
// geometry pulled in by the recurse step. Ways collapse to the mean of their
// nodes.
func convertToOSMElements(result *overpass.Result, key string) []model.OSMElement {
	var elements []model.OSMElement

	for _, node := range result.Nodes {
		if _, ok := node.Tags[key]; !ok {
			continue
		}
		elements = append(elements, model.OSMElement{
			ID:   node.ID,
			Type: string(overpass.ElementTypeNode),
			Lat:  node.Lat,
			Lon:  node.Lon,
			Tags: node.Tags,
		})
	}

	for _, way := range result.Ways {
		if _, ok := way.Tags[key]; !ok || len(way.Nodes) == 0 {
			continue
		}
		var lat, lon float64
		for _, node := range way.Nodes {
			lat += node.Lat
			lon += node.Lon
		}
		lat /= float64(len(way.Nodes))
		lon /= float64(len(way.Nodes))

		var bounds model.Bounds
		if way.Bounds != nil {
			bounds = model.Bounds{
				MinLat: way.Bounds.Min.Lat,
				MinLon: way.Bounds.Min.Lon,
				MaxLat: way.Bounds.Max.Lat,
				MaxLon: way.Bounds.Max.Lon,
			}
		}

		elements = append(elements, model.OSMElement{
			ID:     way.ID,
			Type:   string(overpass.ElementTypeWay),
			Lat:    lat,
			Lon:    lon,
			Tags:   way.Tags,
			Bounds: bounds,
		})
	}

	SortElements(elements)
	return elements
}

func SortElements(elements []model.OSMElement) {
	sort.Slice(elements, func(i, j int) bool {
		if elements[i].Type != elements[j].Type {
			return elements[i].Type < elements[j].Type
		}
		return elements[i].ID < elements[j].ID
	})
}

// ElementsToFacilitySet places each element at its lng/lat in WGS84.
func ElementsToFacilitySet(label string, elements []model.OSMElement) (*model.FacilitySet, error) {
	points := make([]model.Point, len(elements))
	for i, el := range elements {
		points[i] = model.Point{X: el.Lon, Y: el.Lat}
	}
	return model.NewFacilitySet(label, model.CRSWGS84, points, nil)
}
