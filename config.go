package jpegxs

import (
	"github.com/pkg/errors"

	"github.com/mrjoshuak/jpegxs/internal/nlt"
	"github.com/mrjoshuak/jpegxs/internal/orchestrate"
	"github.com/mrjoshuak/jpegxs/internal/pi"
	"github.com/mrjoshuak/jpegxs/internal/quant"
	"github.com/mrjoshuak/jpegxs/internal/ratecontrol"
	"github.com/mrjoshuak/jpegxs/internal/weight"
)

// Config is the encoder-side configuration spec §6's init() call takes,
// covering picture geometry (spec §4.A), the non-linear and colour
// transforms (§4.E/§4.F), and rate control (§4.H). Fields reuse the
// orchestrate package's own types directly rather than mirroring them,
// so a caller tuning the colour transform or concurrency mode is tuning
// exactly what OpenEncoder passes to orchestrate.NewEncoder.
type Config struct {
	Width, Height int
	ColorFormat   ColorFormat

	// InputBitDepth is the sample precision callers provide frame data at;
	// either empty (defaults to 8 for every component), one entry applied
	// to every component, or one entry per component.
	InputBitDepth []uint
	// OutputBitDepth is unused on the encoder side; Decoder uses the
	// analogous field on DecoderConfig.

	Ng, Ss     int
	Nx, Ny, Sd int
	Bw         uint // NLT intermediate bit depth, spec §4.E
	SliceHeight int

	NLT        []nlt.Params // per component; a single entry applies to all
	ColourTransform orchestrate.ColourTransform
	StarTetrix      orchestrate.StarTetrixParams

	SignMode    ratecontrol.SignMode
	Features    ratecontrol.Features
	DequantMode quant.DequantMode
	MaxQ, MaxR  int

	BudgetBytesPerSlice int

	Mode        orchestrate.Mode
	Concurrency int64

	// QueueDepth bounds the SendFrame/GetFrame channel (spec §5's
	// host-driven frame queue). 0 selects 1.
	QueueDepth int
}

// buildFromConfig derives the Picture Information descriptor, per-
// component weight classes and expanded bit-depth list that both
// OpenEncoder and the convenience EncodeFrame function need.
func buildFromConfig(cfg Config) (*pi.PI, []weight.Class, []uint, bool, error) {
	nc, sx, sy, classes, packed, err := componentLayout(cfg.ColorFormat)
	if err != nil {
		return nil, nil, nil, false, err
	}
	depths, err := expandBitDepth(cfg.InputBitDepth, nc)
	if err != nil {
		return nil, nil, nil, false, err
	}
	sliceHeight := cfg.SliceHeight
	if sliceHeight <= 0 {
		sliceHeight = cfg.Height
	}
	p, err := pi.Build(pi.Config{
		Nc: nc, Ng: cfg.Ng, Ss: cfg.Ss,
		W: cfg.Width, H: cfg.Height,
		Nx: cfg.Nx, Ny: cfg.Ny, Sd: cfg.Sd,
		Sx: sx, Sy: sy,
		SliceHeight: sliceHeight,
	})
	if err != nil {
		return nil, nil, nil, false, errors.Wrap(err, "jpegxs: building picture information")
	}
	return p, classes, depths, packed, nil
}

// nltParamsFor expands cfg.NLT to exactly nc entries the same way
// expandBitDepth does for bit depths: empty selects the identity linear
// transform, one entry applies to every component, nc entries are used
// as given.
func nltParamsFor(params []nlt.Params, nc int) ([]nlt.Params, error) {
	switch len(params) {
	case 0:
		return make([]nlt.Params, nc), nil
	case 1:
		out := make([]nlt.Params, nc)
		for i := range out {
			out[i] = params[0]
		}
		return out, nil
	case nc:
		return params, nil
	default:
		return nil, errors.Errorf("jpegxs: NLT params list has %d entries, want 1 or %d", len(params), nc)
	}
}

// frameConfig builds the internal/orchestrate.FrameConfig this Config
// describes, given the already-built PI and weight classes.
func frameConfig(cfg Config, p *pi.PI, classes []weight.Class) orchestrate.FrameConfig {
	return orchestrate.FrameConfig{
		PI:                  p,
		Classes:             classes,
		Bw:                  cfg.Bw,
		OutputDepth:         8,
		ColourTransform:     cfg.ColourTransform,
		StarTetrix:          cfg.StarTetrix,
		SignMode:            cfg.SignMode,
		Features:            cfg.Features,
		DequantMode:         cfg.DequantMode,
		MaxQ:                cfg.MaxQ,
		MaxR:                cfg.MaxR,
		BudgetBytesPerSlice: cfg.BudgetBytesPerSlice,
		Mode:                cfg.Mode,
		Concurrency:         cfg.Concurrency,
	}
}
