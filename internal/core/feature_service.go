package core

import (
	"context"
	"fmt"
	"housing_features/internal/domain/model"
	"housing_features/internal/infrastructure/metrics"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecordSet is the frame of transactions to enrich with their positions.
type RecordSet struct {
	Frame    *model.Frame
	IDColumn string
	Points   []model.Point
	CRS      model.CRS
}

// NewRecordSet reads record positions from the x/y columns of frame.
func NewRecordSet(frame *model.Frame, idColumn, xColumn, yColumn string, crs model.CRS) (*RecordSet, error) {
	if err := frame.Require(idColumn, xColumn, yColumn); err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	ids, err := frame.Strings(idColumn)
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		if first, dup := seen[id]; dup {
			return nil, fmt.Errorf("records: id %q on rows %d and %d: %w", id, first, i, model.ErrSchemaMismatch)
		}
		seen[id] = i
	}
	xs, err := frame.Floats(xColumn)
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	ys, err := frame.Floats(yColumn)
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}

	points := make([]model.Point, len(xs))
	for i := range xs {
		points[i] = model.Point{X: xs[i], Y: ys[i]}
	}
	return &RecordSet{Frame: frame, IDColumn: idColumn, Points: points, CRS: crs}, nil
}

// Propagation copies a facility attribute of the nearest facility into Column.
type Propagation struct {
	Attribute string
	Column    string
}

// FacilitySource is one facility set and the features derived from it.
type FacilitySource struct {
	Set       *model.FacilitySet
	Queries   []SpatialQuery
	Propagate []Propagation
}

type FeatureConfig struct {
	Workers int
}

// EncodingSpec asks for one encoded column {Column}_{Stat}.
type EncodingSpec struct {
	Column string
	Stat   StatType
	NMin   float64
}

func (e EncodingSpec) OutputColumn() string {
	return e.Column + "_" + string(e.Stat)
}

type FeatureService struct {
	cfg     FeatureConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewFeatureService(cfg FeatureConfig, logger *zap.Logger, m *metrics.Metrics) *FeatureService {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeatureService{cfg: cfg, logger: logger, metrics: m}
}

type sourceJob struct {
	src     FacilitySource
	index   *FacilityIndex
	queries [][]float64
	props   [][]float64
}

// Assemble computes the spatial and socio-economic features of every record.
// Inputs must all be in the same projected CRS. villages may be nil.
func (s *FeatureService) Assemble(
	ctx context.Context,
	records *RecordSet,
	sources []FacilitySource,
	villages *VillageLayer,
) (*model.FeatureMatrix, error) {
	defer s.metrics.ObserveStage("assemble", time.Now())

	matrix, err := model.NewFeatureMatrix(records.Frame, records.IDColumn)
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	if len(records.Points) != records.Frame.Len() {
		return nil, fmt.Errorf("records: %d points for %d rows: %w", len(records.Points), records.Frame.Len(), model.ErrSchemaMismatch)
	}
	if !records.CRS.Projected() {
		return nil, fmt.Errorf("records are in %q, a projected CRS is required: %w", records.CRS, model.ErrSchemaMismatch)
	}
	for i, p := range records.Points {
		if !p.Valid() {
			return nil, fmt.Errorf("record %d has non-finite coordinates: %w", i, model.ErrInvalidArgument)
		}
	}

	if err := checkOutputColumns(records.Frame, sources, villages); err != nil {
		return nil, err
	}
	jobs, err := s.prepare(records, sources)
	if err != nil {
		return nil, err
	}
	if villages != nil && villages.CRS != records.CRS {
		return nil, fmt.Errorf("villages are in %q, records in %q: %w", villages.CRS, records.CRS, model.ErrSchemaMismatch)
	}

	n := len(records.Points)
	var villageCols [][]float64
	if villages != nil {
		villageCols = make([][]float64, len(villages.Fields))
		for j := range villageCols {
			villageCols[j] = make([]float64, n)
		}
	}

	// Rows are independent; every worker writes only to its own row indices.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	chunk := max(1, n/(s.cfg.Workers*4))
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := s.computeRow(i, records.Points[i], jobs, villages, villageCols); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assembling features: %w", err)
	}

	for _, job := range jobs {
		label := job.src.Set.Label
		for q, query := range job.src.Queries {
			col := query.Column(label)
			if err := matrix.AddColumn(col, job.queries[q]); err != nil {
				return nil, err
			}
			s.metrics.AddFacilityQueries(label, col, n)
		}
		for p, prop := range job.src.Propagate {
			if err := matrix.AddColumn(prop.Column, job.props[p]); err != nil {
				return nil, err
			}
		}
	}
	if villages != nil {
		for j, f := range villages.Fields {
			if err := matrix.AddColumn(f, villageCols[j]); err != nil {
				return nil, err
			}
		}
	}

	s.metrics.AddRows(n)
	s.logger.Info("features assembled",
		zap.Int("rows", n),
		zap.Int("facility_sets", len(sources)),
		zap.Int("columns", len(matrix.Features())))
	return matrix, nil
}

// checkOutputColumns rejects a feature name produced twice, or one that shadows
// a record column, before anything is computed.
func checkOutputColumns(frame *model.Frame, sources []FacilitySource, villages *VillageLayer) error {
	owner := make(map[string]string)
	claim := func(col, by string) error {
		if frame.Has(col) {
			return fmt.Errorf("%s: feature %q shadows a record column: %w", by, col, model.ErrInvalidArgument)
		}
		if prev, dup := owner[col]; dup {
			return fmt.Errorf("%s: feature %q is already produced by %s: %w", by, col, prev, model.ErrInvalidArgument)
		}
		owner[col] = by
		return nil
	}

	for _, src := range sources {
		label := src.Set.Label
		for _, q := range src.Queries {
			if err := claim(q.Column(label), "facility set "+label); err != nil {
				return err
			}
		}
		for _, p := range src.Propagate {
			if err := claim(p.Column, "facility set "+label); err != nil {
				return err
			}
		}
	}
	if villages != nil {
		for _, f := range villages.Fields {
			if err := claim(f, "villages"); err != nil {
				return err
			}
		}
	}
	return nil
}

// prepare validates every source before any distance is computed and builds
// the per-source indexes and output buffers.
func (s *FeatureService) prepare(records *RecordSet, sources []FacilitySource) ([]*sourceJob, error) {
	n := len(records.Points)
	jobs := make([]*sourceJob, len(sources))
	for j, src := range sources {
		set := src.Set
		if set.CRS != records.CRS {
			return nil, fmt.Errorf("facility set %s is in %q, records in %q: %w", set.Label, set.CRS, records.CRS, model.ErrSchemaMismatch)
		}
		for _, q := range src.Queries {
			if err := q.Validate(set); err != nil {
				return nil, fmt.Errorf("%s: %w", q.Column(set.Label), err)
			}
		}
		if len(src.Propagate) > 0 && set.Len() == 0 {
			return nil, fmt.Errorf("propagating attributes from empty facility set %s: %w", set.Label, model.ErrInvalidArgument)
		}
		for _, p := range src.Propagate {
			if !set.HasAttribute(p.Attribute) {
				return nil, fmt.Errorf("facility set %s has no attribute %q: %w", set.Label, p.Attribute, model.ErrSchemaMismatch)
			}
		}

		index, err := NewFacilityIndex(set)
		if err != nil {
			return nil, err
		}
		job := &sourceJob{
			src:     src,
			index:   index,
			queries: make([][]float64, len(src.Queries)),
			props:   make([][]float64, len(src.Propagate)),
		}
		for q := range job.queries {
			job.queries[q] = make([]float64, n)
		}
		for p := range job.props {
			job.props[p] = make([]float64, n)
		}
		jobs[j] = job

		s.logger.Debug("facility set indexed", zap.String("facility", set.Label), zap.Int("points", set.Len()))
	}
	return jobs, nil
}

func (s *FeatureService) computeRow(i int, p model.Point, jobs []*sourceJob, villages *VillageLayer, villageCols [][]float64) error {
	for _, job := range jobs {
		for q, query := range job.src.Queries {
			job.queries[q][i] = query.Evaluate(job.index, p)
		}
		if len(job.src.Propagate) == 0 {
			continue
		}
		nearest, err := job.index.Nearest(p)
		if err != nil {
			return err
		}
		for a, prop := range job.src.Propagate {
			v, err := job.src.Set.Attribute(prop.Attribute, nearest)
			if err != nil {
				return err
			}
			job.props[a][i] = v
		}
	}
	if villages != nil {
		for j, v := range villages.Features(p) {
			villageCols[j][i] = v
		}
	}
	return nil
}

// Encode fits one Beta encoder per EncodingSpec on fit and appends the encoded
// column to fit and to every output matrix. Every column is computed before
// any is appended, so a failing spec leaves all matrices unchanged.
func (s *FeatureService) Encode(
	ctx context.Context,
	fit *model.FeatureMatrix,
	targetColumn string,
	specs []EncodingSpec,
	outputs ...*model.FeatureMatrix,
) error {
	defer s.metrics.ObserveStage("encode", time.Now())

	targets := append([]*model.FeatureMatrix{fit}, outputs...)
	names := make(map[string]bool, len(specs))
	for _, spec := range specs {
		col := spec.OutputColumn()
		if names[col] {
			return fmt.Errorf("encoded column %q requested twice: %w", col, model.ErrInvalidArgument)
		}
		names[col] = true
		for _, m := range targets {
			if _, exists := m.Column(col); exists || m.Base.Has(col) {
				return fmt.Errorf("encoded column %q already exists: %w", col, model.ErrInvalidArgument)
			}
		}
	}

	// unseen counts depend only on the column, not the stat
	encoders := make(map[string]*BetaEncoder)
	unseen := make(map[string][]int)
	encoded := make([][][]float64, len(specs))
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return err
		}

		enc, ok := encoders[spec.Column]
		if !ok {
			enc = NewBetaEncoder(spec.Column, targetColumn, s.logger)
			if err := enc.Fit(fit.Base); err != nil {
				return err
			}
			encoders[spec.Column] = enc
		}
		encoded[i] = make([][]float64, len(targets))
		counts := make([]int, len(targets))
		for t, m := range targets {
			values, n, err := enc.Transform(m.Base, spec.Stat, spec.NMin)
			if err != nil {
				return err
			}
			encoded[i][t] = values
			counts[t] = n
		}
		if !ok {
			unseen[spec.Column] = counts
		}
	}

	for i, spec := range specs {
		for t, m := range targets {
			if err := m.AddColumn(spec.OutputColumn(), encoded[i][t]); err != nil {
				return err
			}
		}
	}
	for col, counts := range unseen {
		for _, n := range counts {
			s.metrics.AddUnseen(col, n)
		}
	}
	return nil
}
