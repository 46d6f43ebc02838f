package main

import (
	"context"
	"fmt"
	"housing_features/internal/config"
	"housing_features/internal/core"
	"housing_features/internal/domain/model"
	"housing_features/internal/domain/repository"
	"slices"

	"go.uber.org/zap"
)

// loadSources reads or fetches every configured facility layer, projects it
// to TWD97 and attaches its queries.
func loadSources(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]core.FacilitySource, error) {
	proj := core.TWD97TM2()
	var overpassRepo *repository.OverpassRepository

	sources := make([]core.FacilitySource, 0, len(cfg.Facilities))
	for _, fc := range cfg.Facilities {
		var (
			set *model.FacilitySet
			err error
		)
		if fc.OSM != nil {
			if overpassRepo == nil {
				overpassRepo = repository.NewOverpassRepository(cfg.Overpass.Endpoint, cfg.Overpass.Timeout)
			}
			set, err = fetchFacilities(ctx, overpassRepo, cfg, fc)
		} else {
			set, err = readFacilities(fc)
		}
		if err != nil {
			return nil, err
		}

		if set, err = core.ProjectFacilitySet(set, proj); err != nil {
			return nil, err
		}
		log.Info("facility set loaded", zap.String("facility", fc.Name), zap.Int("points", set.Len()))

		sources = append(sources, core.FacilitySource{
			Set:       set,
			Queries:   facilityQueries(cfg.Features, fc),
			Propagate: propagations(fc),
		})
	}
	return sources, nil
}

func readFacilities(fc config.FacilityConfig) (*model.FacilitySet, error) {
	frame, err := repository.LoadFacilityTable(fc.Path, fc.Sheet)
	if err != nil {
		return nil, fmt.Errorf("facility %s: %w", fc.Name, err)
	}
	cols := repository.DefaultFacilityColumns
	for _, p := range fc.Propagate {
		if !slices.Contains(cols.Attributes, p.Attribute) {
			cols.Attributes = append(cols.Attributes, p.Attribute)
		}
	}
	return repository.FacilitySetFromFrame(fc.Name, frame, cols)
}

func fetchFacilities(ctx context.Context, repo *repository.OverpassRepository, cfg *config.Config, fc config.FacilityConfig) (*model.FacilitySet, error) {
	elements, err := repo.GetFacilities(ctx, model.OSMQuery{
		Label: fc.Name,
		Key:   fc.OSM.Key,
		Value: fc.OSM.Value,
		BBox:  cfg.OverpassBounds(),
	})
	if err != nil {
		return nil, fmt.Errorf("facility %s: %w", fc.Name, err)
	}
	return repository.ElementsToFacilitySet(fc.Name, elements)
}

func facilityQueries(defaults config.FeaturesConfig, fc config.FacilityConfig) []core.SpatialQuery {
	var queries []core.SpatialQuery
	k := fc.K
	if k == 0 {
		k = defaults.K
	}
	if k > 0 {
		queries = append(queries, core.NearestK{K: k})
	}
	radii := fc.Radii
	if len(radii) == 0 {
		radii = []float64{defaults.Radius}
	}
	for _, r := range radii {
		queries = append(queries, core.RadiusCount{Radius: r})
	}
	return queries
}

func propagations(fc config.FacilityConfig) []core.Propagation {
	out := make([]core.Propagation, len(fc.Propagate))
	for i, p := range fc.Propagate {
		out[i] = core.Propagation{Attribute: p.Attribute, Column: p.OutputColumn(fc.Name)}
	}
	return out
}
