package codestream

import (
	"github.com/pkg/errors"

	"github.com/mrjoshuak/jpegxs/internal/nlt"
	"github.com/mrjoshuak/jpegxs/internal/orchestrate"
	"github.com/mrjoshuak/jpegxs/internal/pi"
	"github.com/mrjoshuak/jpegxs/internal/ratecontrol"
	"github.com/mrjoshuak/jpegxs/internal/weight"
)

// ComponentDesc is one component's entry in the CDT marker segment: its
// sample bit depth and its horizontal/vertical subsampling factors
// relative to the picture's luma grid.
type ComponentDesc struct {
	BitDepth uint8
	Sx, Sy   uint8
}

// Header aggregates every main-header marker segment's fields: the
// fixed picture geometry, NLT bit depth, sign mode, colour transform and
// slice budget used to drive rate control (PIH), the per-component table
// (CDT), the per-component weight class used to build the band priority
// order (WGT), the Star-Tetrix parameters (CRG) and the per-component
// non-linear transform parameters (CTS). It is the in-memory
// form of everything a decoder needs to reconstruct the internal/pi.PI
// and internal/orchestrate.FrameConfig a frame was coded against.
type Header struct {
	Width, Height uint32
	Ng, Ss        uint8
	Nx, Ny        uint8
	Sd            uint8
	SliceHeight   uint32

	Components []ComponentDesc
	Classes    []weight.Class

	ColourTransform orchestrate.ColourTransform
	StarTetrix      orchestrate.StarTetrixParams
	NLT             []nlt.Params
	Bw              uint
	SignMode        ratecontrol.SignMode

	BudgetBytesPerSlice int
}

// Validate checks the header's internal consistency before it is used
// to build a PI or drive an encode/decode pass.
func (h Header) Validate() error {
	if h.Width == 0 || h.Height == 0 {
		return errors.New("codestream: width and height must be positive")
	}
	nc := len(h.Components)
	if nc == 0 {
		return errors.New("codestream: at least one component is required")
	}
	if len(h.NLT) != nc {
		return errors.Errorf("codestream: NLT params count %d does not match component count %d", len(h.NLT), nc)
	}
	if len(h.Classes) != nc {
		return errors.Errorf("codestream: weight class count %d does not match component count %d", len(h.Classes), nc)
	}
	if int(h.Sd) > nc {
		return errors.Errorf("codestream: Sd=%d exceeds component count %d", h.Sd, nc)
	}
	if h.BudgetBytesPerSlice <= 0 {
		return errors.New("codestream: BudgetBytesPerSlice must be positive")
	}
	return nil
}

// PIConfig builds the internal/pi.Config this header describes.
func (h Header) PIConfig() pi.Config {
	sx := make([]int, len(h.Components))
	sy := make([]int, len(h.Components))
	for i, c := range h.Components {
		sx[i] = int(c.Sx)
		sy[i] = int(c.Sy)
	}
	return pi.Config{
		Nc:          len(h.Components),
		Ng:          int(h.Ng),
		Ss:          int(h.Ss),
		W:           int(h.Width),
		H:           int(h.Height),
		Nx:          int(h.Nx),
		Ny:          int(h.Ny),
		Sd:          int(h.Sd),
		Sx:          sx,
		Sy:          sy,
		SliceHeight: int(h.SliceHeight),
	}
}
