package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gge-data/changedetect/internal/som"
)

// testCube builds a 2x2x3 cube with pixel values encoding their own
// coordinates: value = 100*layer + 10*row + col.
func testCube(t *testing.T) *Cube {
	t.Helper()
	c, err := NewCube(2, 2, 3)
	if err != nil {
		t.Fatalf("new cube: %v", err)
	}
	for l := 0; l < 2; l++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				c.Set(l, y, x, float64(100*l+10*y+x))
			}
		}
	}
	return c
}

func TestNewCube_Errors(t *testing.T) {
	cases := []struct{ layers, height, width int }{
		{0, 2, 2},
		{2, -1, 2},
		{2, 2, 0},
	}
	var cfgErr *som.ConfigError
	for _, tc := range cases {
		if _, err := NewCube(tc.layers, tc.height, tc.width); !errors.As(err, &cfgErr) {
			t.Errorf("NewCube(%d, %d, %d) error = %v, want ConfigError",
				tc.layers, tc.height, tc.width, err)
		}
	}
}

func TestNewCubeFromSlice(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	c, err := NewCubeFromSlice(2, 2, 2, data)
	if err != nil {
		t.Fatalf("from slice: %v", err)
	}
	if got := c.At(1, 0, 1); got != 6 {
		t.Errorf("At(1, 0, 1) = %v, want 6", got)
	}

	// The backing slice is shared, not copied.
	data[5] = 60
	if got := c.At(1, 0, 1); got != 60 {
		t.Errorf("cube does not share backing slice: got %v", got)
	}

	var shapeErr *som.ShapeError
	if _, err := NewCubeFromSlice(2, 2, 2, data[:7]); !errors.As(err, &shapeErr) {
		t.Errorf("short slice error = %v, want ShapeError", err)
	}
}

func TestCube_Validate(t *testing.T) {
	c := testCube(t)
	if err := c.Validate(); err != nil {
		t.Fatalf("clean cube rejected: %v", err)
	}

	c.Set(1, 1, 2, math.NaN())
	var inputErr *som.InputError
	if err := c.Validate(); !errors.As(err, &inputErr) {
		t.Fatalf("NaN cube error = %v, want InputError", err)
	}

	c.Set(1, 1, 2, math.Inf(-1))
	if err := c.Validate(); !errors.As(err, &inputErr) {
		t.Fatalf("Inf cube error = %v, want InputError", err)
	}
}

func TestCube_PixelSeries(t *testing.T) {
	c := testCube(t)
	samples, prov := c.PixelSeries()

	if len(samples) != 6 {
		t.Fatalf("got %d samples, want 6", len(samples))
	}
	// Pixel (y=1, x=2) is sample 5; features are its values per layer.
	want := []float64{12, 112}
	if diff := cmp.Diff(want, samples[5]); diff != "" {
		t.Errorf("sample 5 mismatch (-want +got):\n%s", diff)
	}

	if prov.Orientation != OrientationPixelSeries {
		t.Errorf("orientation = %v", prov.Orientation)
	}
	if prov.Samples() != 6 {
		t.Errorf("Samples() = %d, want 6", prov.Samples())
	}
	layer, y, x := prov.SampleCoord(5)
	if layer != -1 || y != 1 || x != 2 {
		t.Errorf("SampleCoord(5) = (%d, %d, %d), want (-1, 1, 2)", layer, y, x)
	}
}

func TestCube_LayerMosaics(t *testing.T) {
	c := testCube(t)
	samples, prov := c.LayerMosaics()

	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	want := []float64{100, 101, 102, 110, 111, 112}
	if diff := cmp.Diff(want, samples[1]); diff != "" {
		t.Errorf("layer 1 mosaic mismatch (-want +got):\n%s", diff)
	}

	// Mosaic samples are copies, not views into the cube.
	samples[1][0] = -1
	if got := c.At(1, 0, 0); got != 100 {
		t.Errorf("cube mutated through mosaic sample: %v", got)
	}

	if prov.Orientation != OrientationLayerMosaics {
		t.Errorf("orientation = %v", prov.Orientation)
	}
	if prov.Samples() != 2 {
		t.Errorf("Samples() = %d, want 2", prov.Samples())
	}
	layer, y, x := prov.SampleCoord(1)
	if layer != 1 || y != -1 || x != -1 {
		t.Errorf("SampleCoord(1) = (%d, %d, %d), want (1, -1, -1)", layer, y, x)
	}
}

func TestProvenance_ReassembleImage(t *testing.T) {
	c := testCube(t)
	_, prov := c.PixelSeries()

	img, err := prov.ReassembleImage([]float64{0, 1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	want := [][]float64{{0, 1, 2}, {3, 4, 5}}
	if diff := cmp.Diff(want, img); diff != "" {
		t.Errorf("image mismatch (-want +got):\n%s", diff)
	}

	var shapeErr *som.ShapeError
	if _, err := prov.ReassembleImage([]float64{0, 1}); !errors.As(err, &shapeErr) {
		t.Errorf("short values error = %v, want ShapeError", err)
	}

	_, mosaicProv := c.LayerMosaics()
	var cfgErr *som.ConfigError
	if _, err := mosaicProv.ReassembleImage([]float64{0, 1}); !errors.As(err, &cfgErr) {
		t.Errorf("mosaic reassembly error = %v, want ConfigError", err)
	}
}
