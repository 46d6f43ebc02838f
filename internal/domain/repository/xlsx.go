package repository

import (
	"fmt"
	"housing_features/internal/domain/model"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX loads a headed sheet of a workbook as a Frame. An empty sheet name
// selects the first sheet. Trailing empty cells are padded so every row
// matches the header width.
func ReadXLSX(path, sheet string) (*model.Frame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q of %s has no header: %w", sheet, path, model.ErrSchemaMismatch)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	body := make([][]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) > len(header) {
			return nil, fmt.Errorf("sheet %q row %d is wider than the header: %w", sheet, i+2, model.ErrSchemaMismatch)
		}
		if isBlank(row) {
			continue
		}
		padded := make([]string, len(header))
		copy(padded, row)
		body = append(body, padded)
	}
	return model.NewFrame(header, body)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
