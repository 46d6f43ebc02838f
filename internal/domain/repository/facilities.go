package repository

import (
	"fmt"
	"housing_features/internal/domain/model"
	"path/filepath"
	"strings"
)

// FacilityColumns names the coordinate and attribute columns of a facility
// table. Projected X/Y columns win over Lat/Lng when both are present.
type FacilityColumns struct {
	X          string
	Y          string
	Lat        string
	Lng        string
	Attributes []string
}

// DefaultFacilityColumns matches the open-data exports: TWD97 easting and
// northing plus WGS84 lat/lng.
var DefaultFacilityColumns = FacilityColumns{
	X:   "橫坐標",
	Y:   "縱坐標",
	Lat: "lat",
	Lng: "lng",
}

// LoadFacilityTable reads a .csv or .xlsx facility table.
func LoadFacilityTable(path, sheet string) (*model.Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	}
	return nil, fmt.Errorf("unsupported facility file %s: %w", path, model.ErrInvalidArgument)
}

// FacilitySetFromFrame turns a facility table into a FacilitySet. Rows with an
// empty coordinate are dropped; they cannot be placed.
func FacilitySetFromFrame(label string, frame *model.Frame, cols FacilityColumns) (*model.FacilitySet, error) {
	var (
		crs        model.CRS
		xCol, yCol string
	)
	switch {
	case cols.X != "" && frame.Has(cols.X) && frame.Has(cols.Y):
		crs, xCol, yCol = model.CRSTWD97, cols.X, cols.Y
	case cols.Lng != "" && frame.Has(cols.Lng) && frame.Has(cols.Lat):
		crs, xCol, yCol = model.CRSWGS84, cols.Lng, cols.Lat
	default:
		return nil, fmt.Errorf("facility table %s: no coordinate columns (%s/%s or %s/%s): %w",
			label, cols.X, cols.Y, cols.Lat, cols.Lng, model.ErrSchemaMismatch)
	}
	if err := frame.Require(cols.Attributes...); err != nil {
		return nil, fmt.Errorf("facility table %s: %w", label, err)
	}

	xs, err := frame.FloatsOrNaN(xCol)
	if err != nil {
		return nil, fmt.Errorf("facility table %s: %w", label, err)
	}
	ys, err := frame.FloatsOrNaN(yCol)
	if err != nil {
		return nil, fmt.Errorf("facility table %s: %w", label, err)
	}
	raw := make(map[string][]float64, len(cols.Attributes))
	for _, a := range cols.Attributes {
		if raw[a], err = frame.FloatsOrNaN(a); err != nil {
			return nil, fmt.Errorf("facility table %s: %w", label, err)
		}
	}

	var points []model.Point
	attrs := make(map[string][]float64, len(raw))
	for i := range xs {
		p := model.Point{X: xs[i], Y: ys[i]}
		if !p.Valid() {
			continue
		}
		points = append(points, p)
		for a, values := range raw {
			attrs[a] = append(attrs[a], values[i])
		}
	}
	for _, a := range cols.Attributes {
		if attrs[a] == nil {
			attrs[a] = []float64{}
		}
	}
	return model.NewFacilitySet(label, crs, points, attrs)
}
