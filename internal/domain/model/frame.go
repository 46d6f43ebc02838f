package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Frame is a string table as read from a CSV or spreadsheet.
type Frame struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

func NewFrame(columns []string, rows [][]string) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q: %w", c, ErrSchemaMismatch)
		}
		index[c] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d: %w", i, len(row), len(columns), ErrSchemaMismatch)
		}
	}
	return &Frame{Columns: columns, Rows: rows, index: index}, nil
}

func (f *Frame) Len() int {
	return len(f.Rows)
}

func (f *Frame) Has(column string) bool {
	_, ok := f.index[column]
	return ok
}

// Require fails with ErrSchemaMismatch naming every absent column.
func (f *Frame) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !f.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns [%s]: %w", strings.Join(missing, ", "), ErrSchemaMismatch)
	}
	return nil
}

func (f *Frame) Strings(column string) ([]string, error) {
	j, ok := f.index[column]
	if !ok {
		return nil, fmt.Errorf("missing column %q: %w", column, ErrSchemaMismatch)
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// Floats parses a column as numbers. Empty or malformed cells are a schema error.
func (f *Frame) Floats(column string) ([]float64, error) {
	return f.floats(column, false)
}

// FloatsOrNaN parses a column as numbers, mapping empty cells to NaN.
func (f *Frame) FloatsOrNaN(column string) ([]float64, error) {
	return f.floats(column, true)
}

func (f *Frame) floats(column string, allowEmpty bool) ([]float64, error) {
	raw, err := f.Strings(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" && allowEmpty {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %q is not a number: %w", column, i, s, ErrSchemaMismatch)
		}
		out[i] = v
	}
	return out, nil
}

// FeatureMatrix is the assembled per-record table: the base frame (carrying the
// stable ID column) plus appended numeric feature columns. NaN marks a null value.
type FeatureMatrix struct {
	Base     *Frame
	IDColumn string
	names    []string
	values   map[string][]float64
}

func NewFeatureMatrix(base *Frame, idColumn string) (*FeatureMatrix, error) {
	if err := base.Require(idColumn); err != nil {
		return nil, err
	}
	return &FeatureMatrix{
		Base:     base,
		IDColumn: idColumn,
		values:   make(map[string][]float64),
	}, nil
}

func (m *FeatureMatrix) Len() int {
	return m.Base.Len()
}

// IDs returns the record identifiers in row order.
func (m *FeatureMatrix) IDs() []string {
	ids, _ := m.Base.Strings(m.IDColumn)
	return ids
}

// Features lists appended column names in insertion order.
func (m *FeatureMatrix) Features() []string {
	return append([]string(nil), m.names...)
}

// AddColumn appends a feature column. The row count must match the base frame
// exactly; a join can never change the shape of the matrix.
func (m *FeatureMatrix) AddColumn(name string, values []float64) error {
	if len(values) != m.Len() {
		return fmt.Errorf("feature %q has %d values for %d rows: %w", name, len(values), m.Len(), ErrSchemaMismatch)
	}
	if _, dup := m.values[name]; dup || m.Base.Has(name) {
		return fmt.Errorf("feature %q already exists: %w", name, ErrInvalidArgument)
	}
	m.names = append(m.names, name)
	m.values[name] = values
	return nil
}

func (m *FeatureMatrix) Column(name string) ([]float64, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Header returns base columns followed by feature columns.
func (m *FeatureMatrix) Header() []string {
	out := append([]string(nil), m.Base.Columns...)
	return append(out, m.names...)
}

// Design builds a row-major matrix from feature or numeric base columns.
// Null cells are replaced with fill.
func (m *FeatureMatrix) Design(columns []string, fill float64) ([][]float64, error) {
	cols := make([][]float64, len(columns))
	for j, name := range columns {
		if v, ok := m.values[name]; ok {
			cols[j] = v
			continue
		}
		v, err := m.Base.FloatsOrNaN(name)
		if err != nil {
			return nil, err
		}
		cols[j] = v
	}

	out := make([][]float64, m.Len())
	for i := range out {
		row := make([]float64, len(columns))
		for j := range columns {
			v := cols[j][i]
			if math.IsNaN(v) {
				v = fill
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}
