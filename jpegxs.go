// Package jpegxs is a pure Go implementation of the core of a JPEG XS
// (ISO/IEC 21122) low-latency intra-frame image codec: picture information
// (band/precinct/packet geometry), the reversible 5/3 wavelet transform,
// the non-linear and multiple-component transforms, GCLI-based
// quantization, rate control, and the bit-exact packet bitstream.
//
// The package follows spec §6's external interface shape: Open/SendFrame/
// GetFrame/Close handles for both directions, modeling the host-driven
// frame queue described in spec §5 with a Go channel of bounded depth
// instead of hand-rolled semaphores — the same "bounded fan-out" idiom
// internal/orchestrate already uses for its CPU-throughput mode.
//
// Out of scope, per spec §1: the application CLI, raw YUV/container file
// parsing, and real thread-pool primitives beyond what SendFrame/GetFrame's
// channel already provides.
package jpegxs

import (
	"github.com/pkg/errors"

	"github.com/mrjoshuak/jpegxs/internal/weight"
)

// APIVersionMajor/APIVersionMinor are the library API version OpenDecoder
// checks against its caller-supplied version (spec §6 "init(api_ver_major,
// api_ver_minor, ...)").
const (
	APIVersionMajor = 1
	APIVersionMinor = 0
)

// ColorFormat enumerates the component layouts spec §6 names.
type ColorFormat int

const (
	ColorPlanarYUV400 ColorFormat = iota
	ColorPlanarYUV420
	ColorPlanarYUV422
	ColorPlanarYUV444OrRGB
	ColorPlanar4Components
	ColorGray
	ColorPackedYUV444OrRGB
)

// String returns the spec's mnemonic for the format.
func (f ColorFormat) String() string {
	switch f {
	case ColorPlanarYUV400:
		return "PLANAR_YUV400"
	case ColorPlanarYUV420:
		return "PLANAR_YUV420"
	case ColorPlanarYUV422:
		return "PLANAR_YUV422"
	case ColorPlanarYUV444OrRGB:
		return "PLANAR_YUV444_OR_RGB"
	case ColorPlanar4Components:
		return "PLANAR_4_COMPONENTS"
	case ColorGray:
		return "GRAY"
	case ColorPackedYUV444OrRGB:
		return "PACKED_YUV444_OR_RGB"
	default:
		return "UNKNOWN"
	}
}

// componentLayout derives the per-component subsampling and perceptual
// weight class from a colour format (spec §6's colour-format table, cross-
// referenced with §4.B's luma/chroma/other weight classes). packed
// reports whether callers supply one interleaved component buffer instead
// of Nc planar ones (spec §3 "packed RGB uses a single interleaved
// pointer").
func componentLayout(f ColorFormat) (nc int, sx, sy []int, classes []weight.Class, packed bool, err error) {
	switch f {
	case ColorGray, ColorPlanarYUV400:
		return 1, []int{1}, []int{1}, []weight.Class{weight.ClassLuma}, false, nil
	case ColorPlanarYUV420:
		return 3, []int{1, 2, 2}, []int{1, 2, 2},
			[]weight.Class{weight.ClassLuma, weight.ClassChroma, weight.ClassChroma}, false, nil
	case ColorPlanarYUV422:
		return 3, []int{1, 2, 2}, []int{1, 1, 1},
			[]weight.Class{weight.ClassLuma, weight.ClassChroma, weight.ClassChroma}, false, nil
	case ColorPlanarYUV444OrRGB:
		return 3, []int{1, 1, 1}, []int{1, 1, 1},
			[]weight.Class{weight.ClassLuma, weight.ClassChroma, weight.ClassChroma}, false, nil
	case ColorPlanar4Components:
		return 4, []int{1, 1, 1, 1}, []int{1, 1, 1, 1},
			[]weight.Class{weight.ClassOther, weight.ClassOther, weight.ClassOther, weight.ClassOther}, false, nil
	case ColorPackedYUV444OrRGB:
		return 3, []int{1, 1, 1}, []int{1, 1, 1},
			[]weight.Class{weight.ClassLuma, weight.ClassChroma, weight.ClassChroma}, true, nil
	default:
		return 0, nil, nil, nil, false, errors.Errorf("jpegxs: unknown colour format %d", int(f))
	}
}

// expandBitDepth normalizes a caller-supplied bit-depth list to exactly nc
// entries: empty selects 8 for every component, a single entry applies to
// every component, and an nc-length list is used as given.
func expandBitDepth(depths []uint, nc int) ([]uint, error) {
	switch len(depths) {
	case 0:
		out := make([]uint, nc)
		for i := range out {
			out[i] = 8
		}
		return out, nil
	case 1:
		out := make([]uint, nc)
		for i := range out {
			out[i] = depths[0]
		}
		return out, nil
	case nc:
		return depths, nil
	default:
		return nil, errors.Errorf("jpegxs: bit depth list has %d entries, want 1 or %d", len(depths), nc)
	}
}

// deinterleave splits a packed, sample-interleaved plane (spec §3 "packed
// RGB uses a single interleaved pointer") into nc planar buffers, the
// input format adapter spec §4.J calls out for the frame orchestrator.
func deinterleave(packed []int32, nc, w, h int) [][]int32 {
	planes := make([][]int32, nc)
	for c := range planes {
		planes[c] = make([]int32, w*h)
	}
	for i := 0; i < w*h; i++ {
		base := i * nc
		for c := 0; c < nc; c++ {
			planes[c][i] = packed[base+c]
		}
	}
	return planes
}

// interleave is the inverse of deinterleave, used by the decoder when the
// caller's colour format requests packed output.
func interleave(planes [][]int32, w, h int) []int32 {
	nc := len(planes)
	out := make([]int32, w*h*nc)
	for i := 0; i < w*h; i++ {
		base := i * nc
		for c := 0; c < nc; c++ {
			out[base+c] = planes[c][i]
		}
	}
	return out
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
