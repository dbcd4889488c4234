package raster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gge-data/changedetect/internal/som"
)

func TestMatrixCSV_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	matrix := [][]float64{
		{0.5, -1.25, 3},
		{1e-9, 2.5, 0},
		{42, 0.001, -7.75},
	}

	if err := SaveMatrixCSV(path, matrix); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadMatrixCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(matrix, got); diff != "" {
		t.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMatrixCSV_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadMatrixCSV(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("missing file accepted")
	}

	write := func(name, content string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		return p
	}

	var inputErr *som.InputError
	if _, err := LoadMatrixCSV(write("empty.csv", "")); !errors.As(err, &inputErr) {
		t.Errorf("empty file error = %v, want InputError", err)
	}

	var shapeErr *som.ShapeError
	if _, err := LoadMatrixCSV(write("ragged.csv", "1,2,3\n4,5\n")); !errors.As(err, &shapeErr) {
		t.Errorf("ragged file error = %v, want ShapeError", err)
	}
	if shapeErr.Want != 3 || shapeErr.Got != 2 {
		t.Errorf("ShapeError = want %d got %d", shapeErr.Want, shapeErr.Got)
	}

	if _, err := LoadMatrixCSV(write("bad.csv", "1,x,3\n")); err == nil {
		t.Error("non-numeric field accepted")
	}
}
