package raster

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/gge-data/changedetect/internal/som"
)

// LoadMatrixCSV reads an N×D sample matrix from a headerless CSV file,
// one sample per row. Rows must all have the same width.
func LoadMatrixCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open samples file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // width is validated below with a typed error
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read samples csv: %w", err)
	}
	if len(records) == 0 {
		return nil, &som.InputError{Index: -1, Reason: "empty sample set"}
	}

	dim := len(records[0])
	out := make([][]float64, len(records))
	for i, rec := range records {
		if len(rec) != dim {
			return nil, &som.ShapeError{Op: "samples csv", Want: dim, Got: len(rec)}
		}
		row := make([]float64, dim)
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: invalid float '%s': %w", i, j, field, err)
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}

// SaveMatrixCSV writes an N×D matrix as headerless CSV, one sample per
// row.
func SaveMatrixCSV(path string, matrix [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create samples file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rec := make([]string, 0, 16)
	for _, row := range matrix {
		rec = rec[:0]
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write samples csv: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
