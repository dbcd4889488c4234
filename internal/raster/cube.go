// Package raster defines the input boundary of the anomaly-detection
// core: a dense 3-D array of an already-derived single-band quantity
// (e.g. a water or vegetation index), spatially aligned and temporally
// ordered by the acquisition layer, plus the two flattening conventions
// that turn it into the sample matrix the som package consumes.
package raster

import (
	"fmt"
	"math"

	"github.com/gge-data/changedetect/internal/som"
)

// Cube is a layers×height×width array of real-valued pixels backed by a
// single row-major slice (layer, then row, then column). Layers are
// time steps for a temporal stack, but the cube itself is agnostic.
type Cube struct {
	Layers int
	Height int
	Width  int

	data []float64
}

// NewCube allocates a zeroed cube.
func NewCube(layers, height, width int) (*Cube, error) {
	if layers <= 0 || height <= 0 || width <= 0 {
		return nil, &som.ConfigError{Field: "cube", Reason: "dimensions must be positive"}
	}
	return &Cube{
		Layers: layers,
		Height: height,
		Width:  width,
		data:   make([]float64, layers*height*width),
	}, nil
}

// NewCubeFromSlice wraps an existing row-major backing slice. The slice
// is used directly, not copied.
func NewCubeFromSlice(layers, height, width int, data []float64) (*Cube, error) {
	c, err := NewCube(layers, height, width)
	if err != nil {
		return nil, err
	}
	if len(data) != layers*height*width {
		return nil, &som.ShapeError{Op: "cube", Want: layers * height * width, Got: len(data)}
	}
	c.data = data
	return c, nil
}

func (c *Cube) idx(layer, y, x int) int {
	return (layer*c.Height+y)*c.Width + x
}

// At returns the pixel at (layer, y, x).
func (c *Cube) At(layer, y, x int) float64 { return c.data[c.idx(layer, y, x)] }

// Set writes the pixel at (layer, y, x).
func (c *Cube) Set(layer, y, x int, v float64) { c.data[c.idx(layer, y, x)] = v }

// Validate rejects cubes containing non-finite values. NaN masking and
// imputation belong to the acquisition layer; by the time a cube
// reaches the core it must be clean.
func (c *Cube) Validate() error {
	for i, v := range c.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			layer := i / (c.Height * c.Width)
			rem := i % (c.Height * c.Width)
			return &som.InputError{
				Index:  i,
				Reason: fmt.Sprintf("non-finite value at layer %d, row %d, col %d", layer, rem/c.Width, rem%c.Width),
			}
		}
	}
	return nil
}

// Orientation records which flattening convention produced a sample
// matrix, so scores can be mapped back to cube coordinates.
type Orientation int

const (
	// OrientationPixelSeries flattens one sample per pixel; features
	// are that pixel's values across layers. Scoring in this
	// orientation yields per-pixel temporal change surfaces.
	OrientationPixelSeries Orientation = iota
	// OrientationLayerMosaics flattens one sample per layer; features
	// are the layer's pixels in row-major order. Scoring in this
	// orientation yields per-scene spatial anomaly sequences.
	OrientationLayerMosaics
)

func (o Orientation) String() string {
	switch o {
	case OrientationLayerMosaics:
		return "layer-mosaics"
	default:
		return "pixel-series"
	}
}

// Provenance maps sample indices back to cube coordinates for one
// flattening of one cube.
type Provenance struct {
	Orientation Orientation
	Layers      int
	Height      int
	Width       int
}

// Samples returns the number of samples the flattening produced.
func (p *Provenance) Samples() int {
	if p.Orientation == OrientationLayerMosaics {
		return p.Layers
	}
	return p.Height * p.Width
}

// SampleCoord maps a sample index to its cube coordinate. For
// OrientationPixelSeries the layer is -1 (the sample spans all layers);
// for OrientationLayerMosaics y and x are -1.
func (p *Provenance) SampleCoord(i int) (layer, y, x int) {
	if p.Orientation == OrientationLayerMosaics {
		return i, -1, -1
	}
	return -1, i / p.Width, i % p.Width
}

// ReassembleImage folds a per-sample value sequence back into a
// height×width surface. Only valid for OrientationPixelSeries, where
// samples enumerate pixels row-major; layer-mosaic scores are already a
// per-layer sequence and need no reassembly.
func (p *Provenance) ReassembleImage(values []float64) ([][]float64, error) {
	if p.Orientation != OrientationPixelSeries {
		return nil, &som.ConfigError{Field: "orientation", Reason: "reassembly requires pixel-series orientation"}
	}
	if len(values) != p.Height*p.Width {
		return nil, &som.ShapeError{Op: "reassemble", Want: p.Height * p.Width, Got: len(values)}
	}
	out := make([][]float64, p.Height)
	for y := 0; y < p.Height; y++ {
		out[y] = make([]float64, p.Width)
		copy(out[y], values[y*p.Width:(y+1)*p.Width])
	}
	return out, nil
}

// PixelSeries flattens the cube into one sample per pixel with one
// feature per layer.
func (c *Cube) PixelSeries() ([][]float64, *Provenance) {
	n := c.Height * c.Width
	samples := make([][]float64, n)
	for i := 0; i < n; i++ {
		y, x := i/c.Width, i%c.Width
		s := make([]float64, c.Layers)
		for l := 0; l < c.Layers; l++ {
			s[l] = c.At(l, y, x)
		}
		samples[i] = s
	}
	return samples, &Provenance{
		Orientation: OrientationPixelSeries,
		Layers:      c.Layers, Height: c.Height, Width: c.Width,
	}
}

// LayerMosaics flattens the cube into one sample per layer with one
// feature per pixel (row-major).
func (c *Cube) LayerMosaics() ([][]float64, *Provenance) {
	stride := c.Height * c.Width
	samples := make([][]float64, c.Layers)
	for l := 0; l < c.Layers; l++ {
		s := make([]float64, stride)
		copy(s, c.data[l*stride:(l+1)*stride])
		samples[l] = s
	}
	return samples, &Provenance{
		Orientation: OrientationLayerMosaics,
		Layers:      c.Layers, Height: c.Height, Width: c.Width,
	}
}
