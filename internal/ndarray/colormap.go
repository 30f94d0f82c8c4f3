// Color-mapped rendering of arrays as PNG images.

package ndarray

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
)

// ErrBadColormap is returned for an unknown colormap family or name.
var ErrBadColormap = errors.New("unknown colormap")

// ErrUnsupportedRank is returned when an array cannot be rendered as an
// image (only rank 1 and 2 are renderable).
var ErrUnsupportedRank = errors.New("array rank not renderable")

// DefaultColormap is used when the caller does not request one.
const DefaultColormap = "linear/Blackbody"

type rgb [3]float64

// Colormap maps normalized values in [0, 1] to colors by linear
// interpolation between fixed stops.
type Colormap struct {
	family string
	name   string
	stops  []rgb
}

// colormaps is the closed palette set, grouped by family.
var colormaps = map[string]map[string][]rgb{
	"linear": {
		"Blackbody": {
			{0, 0, 0}, {0.498, 0.102, 0.035}, {0.839, 0.333, 0.118},
			{0.965, 0.647, 0.247}, {1, 0.925, 0.624}, {1, 1, 1},
		},
		"Gray": {
			{0, 0, 0}, {1, 1, 1},
		},
	},
	"diverging": {
		"BlueRed": {
			{0.230, 0.299, 0.754}, {0.865, 0.865, 0.865}, {0.706, 0.016, 0.150},
		},
		"PurpleGreen": {
			{0.436, 0.308, 0.631}, {0.865, 0.865, 0.865}, {0.085, 0.532, 0.201},
		},
	},
	"brewer": {
		"Blues": {
			{0.969, 0.984, 1}, {0.619, 0.792, 0.882}, {0.191, 0.509, 0.741}, {0.031, 0.188, 0.420},
		},
		"Spectral": {
			{0.620, 0.004, 0.259}, {0.957, 0.427, 0.263}, {0.998, 0.930, 0.637},
			{0.627, 0.851, 0.641}, {0.227, 0.322, 0.545},
		},
	},
}

// LookupColormap resolves a "family/name" spec, e.g. "linear/Blackbody".
func LookupColormap(spec string) (*Colormap, error) {
	family, name, ok := strings.Cut(spec, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q (expected family/name)", ErrBadColormap, spec)
	}
	names, ok := colormaps[family]
	if !ok {
		return nil, fmt.Errorf("%w: family %q", ErrBadColormap, family)
	}
	stops, ok := names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in family %q", ErrBadColormap, name, family)
	}
	return &Colormap{family: family, name: name, stops: stops}, nil
}

// String returns the "family/name" spec.
func (c *Colormap) String() string {
	return c.family + "/" + c.name
}

// At maps a normalized value in [0, 1] to a color.
func (c *Colormap) At(v float64) color.NRGBA {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	pos := v * float64(len(c.stops)-1)
	i := int(pos)
	if i >= len(c.stops)-1 {
		i = len(c.stops) - 2
	}
	frac := pos - float64(i)
	a, b := c.stops[i], c.stops[i+1]
	return color.NRGBA{
		R: uint8((a[0] + (b[0]-a[0])*frac) * 255),
		G: uint8((a[1] + (b[1]-a[1])*frac) * 255),
		B: uint8((a[2] + (b[2]-a[2])*frac) * 255),
		A: 255,
	}
}

// RenderPNG renders a rank-1 or rank-2 array as a color-mapped PNG.
//
// Values are normalized over the array's min..max range; a constant array
// maps entirely to the low end of the colormap. Rank 1 renders as a single
// row.
func RenderPNG(a *Array, cm *Colormap) ([]byte, error) {
	var width, height int
	switch a.NDim() {
	case 1:
		width, height = a.Shape()[0], 1
	case 2:
		height, width = a.Shape()[0], a.Shape()[1]
	default:
		return nil, fmt.Errorf("%w: rank %d", ErrUnsupportedRank, a.NDim())
	}
	if a.Size() == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrUnsupportedRank)
	}

	md := a.Metadata()
	span := *md.Max - *md.Min
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := a.At(y*width + x)
			norm := 0.0
			if span > 0 {
				norm = (v - *md.Min) / span
			}
			img.SetNRGBA(x, y, cm.At(norm))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
