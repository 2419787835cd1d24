package jpegxs

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mrjoshuak/jpegxs/internal/bio"
	"github.com/mrjoshuak/jpegxs/internal/codestream"
	"github.com/mrjoshuak/jpegxs/internal/nlt"
	"github.com/mrjoshuak/jpegxs/internal/orchestrate"
	"github.com/mrjoshuak/jpegxs/internal/pi"
	"github.com/mrjoshuak/jpegxs/internal/weight"
)

// Frame is one picture's worth of caller-supplied samples, in the layout
// Config.ColorFormat names: either Nc planar component buffers, or (for
// a packed colour format) a single interleaved buffer in Planes[0].
type Frame struct {
	Planes [][]int32
}

// encodeRequest/encodeResult carry one SendFrame call's frame and one
// GetFrame call's bitstream across the Encoder's worker goroutine, the
// same request/response channel pair pattern spec §5's host-driven queue
// describes.
type encodeRequest struct {
	frame Frame
}

type encodeResult struct {
	data []byte
	err  error
}

// Encoder is the spec §6 encoder handle: Open once, then SendFrame/
// GetFrame repeatedly, then Close.
type Encoder struct {
	cfg     Config
	pi      *pi.PI
	classes []weight.Class
	depths  []uint
	packed  bool
	inner   *orchestrate.Encoder
	header  codestream.Header
	log     zerolog.Logger

	in     chan encodeRequest
	out    chan encodeResult
	done   chan struct{}
	closed bool
}

// OpenEncoder validates cfg, builds the Picture Information descriptor
// and starts the encoder's worker goroutine (spec §6 "init").
func OpenEncoder(cfg Config) (*Encoder, error) {
	p, classes, depths, packed, err := buildFromConfig(cfg)
	if err != nil {
		return nil, wrapKind(ErrKindBadParameter, err)
	}
	nltParams, err := nltParamsFor(cfg.NLT, p.Cfg.Nc)
	if err != nil {
		return nil, wrapKind(ErrKindBadParameter, err)
	}

	log := zerolog.Nop()
	fc := frameConfig(cfg, p, classes)
	inner := orchestrate.NewEncoder(fc, log)

	h, err := headerFor(cfg, p, classes, nltParams)
	if err != nil {
		return nil, wrapKind(ErrKindBadParameter, err)
	}

	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 1
	}

	e := &Encoder{
		cfg: cfg, pi: p, classes: classes, depths: depths, packed: packed,
		inner: inner, header: h, log: log,
		in: make(chan encodeRequest, depth), out: make(chan encodeResult, depth),
		done: make(chan struct{}),
	}
	go e.run()
	return e, nil
}

// headerFor builds the main-header description this encoder's PI and
// colour/NLT configuration corresponds to, so GetFrame can prepend it to
// the first frame's bitstream.
func headerFor(cfg Config, p *pi.PI, classes []weight.Class, nltParams []nlt.Params) (codestream.Header, error) {
	nc := p.Cfg.Nc
	comps := make([]codestream.ComponentDesc, nc)
	for c := 0; c < nc; c++ {
		comps[c] = codestream.ComponentDesc{
			BitDepth: uint8(nltDepthOrDefault(cfg, c)),
			Sx:       uint8(p.Components[c].Sx),
			Sy:       uint8(p.Components[c].Sy),
		}
	}
	h := codestream.Header{
		Width: uint32(p.Cfg.W), Height: uint32(p.Cfg.H),
		Ng: uint8(p.Cfg.Ng), Ss: uint8(p.Cfg.Ss),
		Nx: uint8(p.Cfg.Nx), Ny: uint8(p.Cfg.Ny), Sd: uint8(p.Cfg.Sd),
		SliceHeight: uint32(p.Cfg.SliceHeight),
		Components:  comps,
		Classes:     classes,

		ColourTransform: cfg.ColourTransform,
		StarTetrix:      cfg.StarTetrix,
		NLT:             nltParams,
		Bw:              cfg.Bw,
		SignMode:        cfg.SignMode,

		BudgetBytesPerSlice: cfg.BudgetBytesPerSlice,
	}
	return h, h.Validate()
}

func nltDepthOrDefault(cfg Config, c int) uint {
	if c < len(cfg.InputBitDepth) {
		return cfg.InputBitDepth[c]
	}
	if len(cfg.InputBitDepth) == 1 {
		return cfg.InputBitDepth[0]
	}
	return 8
}

func (e *Encoder) run() {
	defer close(e.out)
	wroteHeader := false
	for {
		select {
		case req := <-e.in:
			data, err := e.encodeOne(req.frame, !wroteHeader)
			if err == nil {
				wroteHeader = true
			}
			e.out <- encodeResult{data: data, err: err}
		case <-e.done:
			return
		}
	}
}

func (e *Encoder) encodeOne(frame Frame, withHeader bool) ([]byte, error) {
	comps, err := e.adaptInput(frame)
	if err != nil {
		return nil, wrapKind(ErrKindEncodeFrame, err)
	}

	var buf bytes.Buffer
	if withHeader {
		if err := codestream.WriteHeader(bio.NewWriter(&buf), e.header); err != nil {
			return nil, wrapKind(ErrKindEncodeFrame, err)
		}
	}

	if _, err := e.inner.EncodeFrame(context.Background(), comps, &buf); err != nil {
		return nil, wrapKind(ErrKindEncodeFrame, err)
	}

	if err := codestream.WriteEOC(bio.NewWriter(&buf)); err != nil {
		return nil, wrapKind(ErrKindEncodeFrame, err)
	}
	return buf.Bytes(), nil
}

// adaptInput performs spec §4.J's input format adapter step: splitting a
// packed colour format's single interleaved plane into Nc planar
// buffers, and pairing every plane with its NLT parameters.
func (e *Encoder) adaptInput(frame Frame) ([]orchestrate.ComponentInput, error) {
	nc := e.pi.Cfg.Nc
	var planes [][]int32
	if e.packed {
		if len(frame.Planes) != 1 {
			return nil, errors.Errorf("jpegxs: packed colour format expects 1 plane, got %d", len(frame.Planes))
		}
		planes = deinterleave(frame.Planes[0], nc, e.pi.Components[0].Wc, e.pi.Components[0].Hc)
	} else {
		if len(frame.Planes) != nc {
			return nil, errors.Errorf("jpegxs: got %d planes, want %d", len(frame.Planes), nc)
		}
		planes = frame.Planes
	}

	nltParams, err := nltParamsFor(e.cfg.NLT, nc)
	if err != nil {
		return nil, err
	}
	out := make([]orchestrate.ComponentInput, nc)
	for c := 0; c < nc; c++ {
		comp := e.pi.Components[c]
		if len(planes[c]) != comp.Wc*comp.Hc {
			return nil, errors.Errorf("jpegxs: component %d has %d samples, want %d", c, len(planes[c]), comp.Wc*comp.Hc)
		}
		out[c] = orchestrate.ComponentInput{
			Plane:      planes[c],
			InputDepth: nltDepthOrDefault(e.cfg, c),
			NLT:        nltParams[c],
		}
	}
	return out, nil
}

// SendFrame enqueues frame for encoding, blocking until there is room in
// the queue or ctx is done (spec §6 "send_frame").
func (e *Encoder) SendFrame(ctx context.Context, frame Frame) error {
	select {
	case e.in <- encodeRequest{frame: frame}:
		return nil
	case <-ctx.Done():
		return wrapKind(ErrKindInsufficientResources, ctx.Err())
	case <-e.done:
		return wrapKind(ErrKindBadParameter, errors.New("jpegxs: encoder closed"))
	}
}

// GetFrame blocks for the next encoded bitstream, in submission order
// (spec §6 "get_frame").
func (e *Encoder) GetFrame(ctx context.Context) ([]byte, error) {
	select {
	case res, ok := <-e.out:
		if !ok {
			return nil, wrapKind(ErrKindBadParameter, errors.New("jpegxs: encoder closed"))
		}
		return res.data, res.err
	case <-ctx.Done():
		return nil, wrapKind(ErrKindInsufficientResources, ctx.Err())
	}
}

// Close stops the worker goroutine and releases the encoder. It is safe
// to call more than once.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.done)
	return nil
}

// EncodeFrame is a synchronous convenience wrapper around OpenEncoder/
// SendFrame/GetFrame/Close for callers encoding a single frame and
// wanting neither the queue nor the handle's lifetime to manage.
func EncodeFrame(cfg Config, frame Frame) ([]byte, error) {
	e, err := OpenEncoder(cfg)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	ctx := context.Background()
	if err := e.SendFrame(ctx, frame); err != nil {
		return nil, err
	}
	return e.GetFrame(ctx)
}
