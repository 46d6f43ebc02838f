package repository

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"housing_features/internal/domain/model"
	"io"
	"math"
	"os"
	"strconv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV loads a headed CSV file. Government open-data exports often carry a
// UTF-8 BOM, which is dropped from the first header.
func ReadCSV(path string) (*model.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	frame, err := DecodeCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return frame, nil
}

func DecodeCSV(r io.Reader) (*model.Frame, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	records, err := csv.NewReader(br).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header: %w", model.ErrSchemaMismatch)
	}
	return model.NewFrame(records[0], records[1:])
}

// WriteFeatureMatrix writes the base columns followed by the feature columns.
// Null features become empty cells.
func WriteFeatureMatrix(path string, m *model.FeatureMatrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := EncodeFeatureMatrix(f, m); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func EncodeFeatureMatrix(w io.Writer, m *model.FeatureMatrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(m.Header()); err != nil {
		return err
	}

	features := m.Features()
	cols := make([][]float64, len(features))
	for j, name := range features {
		cols[j], _ = m.Column(name)
	}

	row := make([]string, 0, len(m.Base.Columns)+len(features))
	for i, base := range m.Base.Rows {
		row = append(row[:0], base...)
		for j := range cols {
			row = append(row, FormatFloat(cols[j][i]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
