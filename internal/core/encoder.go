package core

import (
	"fmt"
	"housing_features/internal/domain/model"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// StatType selects which statistic of the Beta posterior Transform returns.
type StatType string

const (
	StatMean     StatType = "mean"
	StatMode     StatType = "mode"
	StatMedian   StatType = "median"
	StatVar      StatType = "var"
	StatSkewness StatType = "skewness"
	StatKurtosis StatType = "kurtosis"
)

var statTypes = []StatType{StatMean, StatMode, StatMedian, StatVar, StatSkewness, StatKurtosis}

func ParseStatType(s string) (StatType, error) {
	st := StatType(s)
	if !st.valid() {
		return "", fmt.Errorf("unknown stat type %q (want one of %s): %w", s, joinStats(), model.ErrInvalidArgument)
	}
	return st, nil
}

func (st StatType) valid() bool {
	for _, known := range statTypes {
		if st == known {
			return true
		}
	}
	return false
}

func joinStats() string {
	names := make([]string, len(statTypes))
	for i, st := range statTypes {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

// ratio returns the (numerator, denominator) of the statistic for Beta(a, b).
func (st StatType) ratio(a, b float64) (float64, float64, error) {
	switch st {
	case StatMean:
		return a, a + b, nil
	case StatMode:
		return a - 1, a + b - 2, nil
	case StatMedian:
		return a - 1.0/3, a + b - 2.0/3, nil
	case StatVar:
		return a * b, (a + b) * (a + b) * (a + b + 1), nil
	case StatSkewness:
		return 2 * (b - a) * math.Sqrt(a+b+1), (a + b + 2) * math.Sqrt(a*b), nil
	case StatKurtosis:
		return 6*(a-b)*(a-b)*(a+b+1) - a*b*(a+b+2), a * b * (a + b + 2) * (a + b + 3), nil
	}
	return 0, 0, fmt.Errorf("unknown stat type %q: %w", string(st), model.ErrInvalidArgument)
}

// EncoderState is the fitted, read-only state of a Beta target encoder.
type EncoderState struct {
	PriorMean float64
	Stats     map[string]model.GroupStats
}

// FitBetaEncoder aggregates per-category sufficient statistics. Categories not
// present in records are unseen at transform time.
func FitBetaEncoder(records []model.TargetRecord) (*EncoderState, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("fit on empty record set: %w", model.ErrInvalidArgument)
	}

	var total float64
	stats := make(map[string]model.GroupStats)
	for i, r := range records {
		if math.IsNaN(r.Target) || math.IsInf(r.Target, 0) {
			return nil, fmt.Errorf("record %d (%q) has non-finite target: %w", i, r.Category, model.ErrInvalidArgument)
		}
		total += r.Target
		gs := stats[r.Category]
		gs.Sum += r.Target
		gs.Count++
		stats[r.Category] = gs
	}

	return &EncoderState{
		PriorMean: total / float64(len(records)),
		Stats:     stats,
	}, nil
}

// Transform encodes categories in order. Non-finite statistics are replaced
// with the median of the finite values of the same batch.
func (s *EncoderState) Transform(categories []string, stat StatType, nMin float64) ([]float64, error) {
	if s == nil {
		return nil, model.ErrNotFitted
	}
	if !stat.valid() {
		return nil, fmt.Errorf("unknown stat type %q (want one of %s): %w", string(stat), joinStats(), model.ErrInvalidArgument)
	}
	if math.IsNaN(nMin) || nMin < 0 {
		return nil, fmt.Errorf("n_min must be non-negative, got %v: %w", nMin, model.ErrInvalidArgument)
	}

	out := make([]float64, len(categories))
	finite := true
	for i, c := range categories {
		n, bigN := s.PriorMean, 1.0
		if gs, ok := s.Stats[c]; ok {
			n, bigN = gs.Sum, gs.Count
		}

		nPrior := math.Max(nMin-bigN, 0)
		alpha := s.PriorMean*nPrior + n
		beta := (1-s.PriorMean)*nPrior + bigN - n

		num, den, err := stat.ratio(alpha, beta)
		if err != nil {
			return nil, err
		}
		out[i] = num / den
		if !isFinite(out[i]) {
			finite = false
		}
	}

	if finite || len(out) == 0 {
		return out, nil
	}

	med, ok := finiteMedian(out)
	if !ok {
		return nil, fmt.Errorf("%s statistic is undefined for every row of the batch: %w", stat, model.ErrInvalidArgument)
	}
	for i, v := range out {
		if !isFinite(v) {
			out[i] = med
		}
	}
	return out, nil
}

// Unseen counts categories that have no fitted statistics.
func (s *EncoderState) Unseen(categories []string) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, c := range categories {
		if _, ok := s.Stats[c]; !ok {
			n++
		}
	}
	return n
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteMedian ignores non-finite values; an even count averages the two
// middle values.
func finiteMedian(values []float64) (float64, bool) {
	vals := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}

// BetaEncoder binds an EncoderState to the group and target columns of a
// frame. Fit replaces the whole state.
type BetaEncoder struct {
	Group  string
	Target string

	state  *EncoderState
	logger *zap.Logger
}

func NewBetaEncoder(group, target string, logger *zap.Logger) *BetaEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BetaEncoder{Group: group, Target: target, logger: logger}
}

func (e *BetaEncoder) Fit(frame *model.Frame) error {
	if err := frame.Require(e.Group, e.Target); err != nil {
		return fmt.Errorf("fitting encoder on %s: %w", e.Group, err)
	}
	groups, _ := frame.Strings(e.Group)
	targets, err := frame.Floats(e.Target)
	if err != nil {
		return fmt.Errorf("fitting encoder on %s: %w", e.Group, err)
	}

	records := make([]model.TargetRecord, len(groups))
	for i := range groups {
		records[i] = model.TargetRecord{Category: groups[i], Target: targets[i]}
	}
	state, err := FitBetaEncoder(records)
	if err != nil {
		return fmt.Errorf("fitting encoder on %s: %w", e.Group, err)
	}

	e.state = state
	e.logger.Debug("encoder fitted",
		zap.String("group", e.Group),
		zap.Int("categories", len(state.Stats)),
		zap.Float64("prior_mean", state.PriorMean))
	return nil
}

// State returns the fitted state, or nil before Fit.
func (e *BetaEncoder) State() *EncoderState {
	return e.state
}

// Transform encodes the group column of frame. It also reports how many rows
// carried a category unseen during Fit.
func (e *BetaEncoder) Transform(frame *model.Frame, stat StatType, nMin float64) ([]float64, int, error) {
	if e.state == nil {
		return nil, 0, fmt.Errorf("transforming %s: %w", e.Group, model.ErrNotFitted)
	}
	categories, err := frame.Strings(e.Group)
	if err != nil {
		return nil, 0, fmt.Errorf("transforming %s: %w", e.Group, err)
	}

	values, err := e.state.Transform(categories, stat, nMin)
	if err != nil {
		return nil, 0, fmt.Errorf("transforming %s: %w", e.Group, err)
	}

	unseen := e.state.Unseen(categories)
	if unseen > 0 {
		e.logger.Info("unseen categories encoded with prior",
			zap.String("group", e.Group),
			zap.Int("rows", unseen))
	}
	return values, unseen, nil
}
