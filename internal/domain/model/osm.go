package model

// OSMElement is a facility as returned by Overpass, before it becomes a point
// of a FacilitySet. Ways are collapsed to the centroid of their nodes.
type OSMElement struct {
	ID     int64             `json:"id"`
	Type   string            `json:"type"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Tags   map[string]string `json:"tags"`
	Bounds Bounds            `json:"bounds"`
}

type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// OSMQuery selects one facility layer, e.g. Key "railway", Value "station" for MRT stations.
type OSMQuery struct {
	Label string
	Key   string
	Value string // regular expression, matched with ~
	BBox  Bounds
}
