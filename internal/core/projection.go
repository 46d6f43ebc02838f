package core

import (
	"fmt"
	"housing_features/internal/domain/model"
	"math"

	"github.com/wroge/wgs84"
)

// Projector converts geographic coordinates (X = lng, Y = lat, degrees) into a
// projected CRS.
type Projector interface {
	Target() model.CRS
	Project(p model.Point) model.Point
}

// TransverseMercator projects WGS84 lng/lat into a Transverse Mercator grid.
type TransverseMercator struct {
	crs     model.CRS
	forward wgs84.Func
}

// NewTransverseMercator builds a projector for a Transverse Mercator system on
// the given datum.
func NewTransverseMercator(crs model.CRS, datum wgs84.Datum, centralLon, scale, falseEasting, falseNorthing float64) TransverseMercator {
	system := datum.TransverseMercator(centralLon, 0, scale, falseEasting, falseNorthing)
	return TransverseMercator{crs: crs, forward: wgs84.LonLat().To(system)}
}

// TWD97TM2 is TWD97 / TM2 zone 121 on the GRS80 ellipsoid.
func TWD97TM2() TransverseMercator {
	return NewTransverseMercator(model.CRSTWD97, wgs84.Datum{Spheroid: wgs84.GRS80{}}, 121, 0.9999, 250000, 0)
}

func (tm TransverseMercator) Target() model.CRS {
	return tm.crs
}

func (tm TransverseMercator) Project(p model.Point) model.Point {
	east, north, _ := tm.forward(p.X, p.Y, 0)
	return model.Point{X: east, Y: north}
}

// ProjectFacilitySet returns fs in the projector's CRS. Sets already in that
// CRS are returned unchanged.
func ProjectFacilitySet(fs *model.FacilitySet, proj Projector) (*model.FacilitySet, error) {
	switch fs.CRS {
	case proj.Target():
		return fs, nil
	case model.CRSWGS84:
	default:
		return nil, fmt.Errorf("cannot project %s from %q to %q: %w", fs.Label, fs.CRS, proj.Target(), model.ErrSchemaMismatch)
	}

	points := fs.Points()
	if err := projectLngLat(fs.Label, points, proj); err != nil {
		return nil, err
	}
	return fs.WithPoints(proj.Target(), points)
}

// ProjectRecordSet returns records in the projector's CRS. The frame is shared
// with the input; only the positions are replaced.
func ProjectRecordSet(records *RecordSet, proj Projector) (*RecordSet, error) {
	switch records.CRS {
	case proj.Target():
		return records, nil
	case model.CRSWGS84:
	default:
		return nil, fmt.Errorf("cannot project records from %q to %q: %w", records.CRS, proj.Target(), model.ErrSchemaMismatch)
	}

	points := make([]model.Point, len(records.Points))
	copy(points, records.Points)
	if err := projectLngLat("records", points, proj); err != nil {
		return nil, err
	}
	return &RecordSet{Frame: records.Frame, IDColumn: records.IDColumn, Points: points, CRS: proj.Target()}, nil
}

// projectLngLat projects points in place.
func projectLngLat(label string, points []model.Point, proj Projector) error {
	for i, p := range points {
		if math.Abs(p.Y) > 90 || math.Abs(p.X) > 180 {
			return fmt.Errorf("%s[%d] (%v, %v) is not a lng/lat pair: %w", label, i, p.X, p.Y, model.ErrSchemaMismatch)
		}
		points[i] = proj.Project(p)
	}
	return nil
}
