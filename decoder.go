package jpegxs

import (
	"bytes"
	"context"
	"reflect"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mrjoshuak/jpegxs/internal/bio"
	"github.com/mrjoshuak/jpegxs/internal/codestream"
	"github.com/mrjoshuak/jpegxs/internal/orchestrate"
	"github.com/mrjoshuak/jpegxs/internal/pi"
)

// ProxyMode selects a decoder's output resolution relative to the coded
// picture (spec §4.A "Proxy mode re-targeting"): a receiver that only
// needs a thumbnail gets the picture at half or quarter resolution. The
// decoder reconstructs the full-resolution picture and then box-averages
// it by 2 or 4 in each dimension (see downsample); the finer wavelet
// levels are not skipped.
type ProxyMode int

const (
	ProxyFull ProxyMode = iota
	ProxyHalf
	ProxyQuarter
)

// DecoderConfig is the spec §6 decoder-side init() configuration. Unlike
// Config, it carries no picture geometry: that arrives embedded in the
// bitstream's own main header, which OpenDecoder/SendFrame parse.
type DecoderConfig struct {
	Proxy ProxyMode

	// OutputBitDepth mirrors Config.InputBitDepth: empty selects each
	// component's coded NLT output depth, one entry applies to every
	// component, or one entry per component.
	OutputBitDepth []uint

	// Packed requests the decoded components be re-interleaved into a
	// single buffer (the inverse of the packed colour formats Config
	// accepts on encode), for colour formats coded with 3 components.
	Packed bool

	QueueDepth int
}

type decodeResult struct {
	planes   [][]int32
	depths   []uint
	w, h     int
	err      error
}

// Decoder is the spec §6 decoder handle. OpenDecoder does not require
// the bitstream's geometry up front; the first SendFrame call's bytes
// must contain a full main header (SOC through CTS) followed by coded
// slice data and EOC, exactly what Encoder.GetFrame's first result
// contains.
type Decoder struct {
	cfg DecoderConfig
	log zerolog.Logger

	header  codestream.Header
	pi      *pi.PI
	inner   *orchestrate.Decoder
	hasOpened bool

	in     chan []byte
	out    chan decodeResult
	done   chan struct{}
	closed bool
}

// OpenDecoder validates the caller's API version against this package's
// (spec §6 "init(api_ver_major, api_ver_minor, ...)") and starts the
// decoder's worker goroutine.
func OpenDecoder(apiVerMajor, apiVerMinor int, cfg DecoderConfig) (*Decoder, error) {
	if apiVerMajor != APIVersionMajor {
		return nil, wrapKind(ErrKindInvalidAPIVersion,
			errors.Errorf("jpegxs: decoder api version %d.%d unsupported, library is %d.%d",
				apiVerMajor, apiVerMinor, APIVersionMajor, APIVersionMinor))
	}
	if cfg.Proxy != ProxyFull && cfg.Proxy != ProxyHalf && cfg.Proxy != ProxyQuarter {
		return nil, wrapKind(ErrKindBadParameter, errors.New("jpegxs: unknown proxy mode"))
	}

	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 1
	}
	d := &Decoder{
		cfg: cfg, log: zerolog.Nop(),
		in: make(chan []byte, depth), out: make(chan decodeResult, depth),
		done: make(chan struct{}),
	}
	go d.run()
	return d, nil
}

func (d *Decoder) run() {
	defer close(d.out)
	for {
		select {
		case data := <-d.in:
			planes, depths, w, h, err := d.decodeOne(data)
			d.out <- decodeResult{planes: planes, depths: depths, w: w, h: h, err: err}
		case <-d.done:
			return
		}
	}
}

func (d *Decoder) decodeOne(data []byte) (planes [][]int32, depths []uint, outW, outH int, err error) {
	r := bio.NewReader(bytes.NewReader(data))

	if !d.hasOpened {
		h, herr := codestream.ReadHeader(r)
		if herr != nil {
			return nil, nil, 0, 0, classifyDecodeErr(herr)
		}
		if err := d.openFromHeader(h); err != nil {
			return nil, nil, 0, 0, err
		}
	} else if len(data) >= 2 && codestream.Marker(uint16(data[0])<<8|uint16(data[1])) == codestream.SOC {
		h, herr := codestream.ReadHeader(r)
		if herr != nil {
			return nil, nil, 0, 0, classifyDecodeErr(herr)
		}
		if !reflect.DeepEqual(h, d.header) {
			return nil, nil, 0, 0, wrapKind(ErrKindDecoderConfigChange,
				errors.New("jpegxs: main header differs from the one the decoder was opened with"))
		}
	}

	var outDepths []uint
	if len(d.cfg.OutputBitDepth) == 0 {
		for _, c := range d.header.Components {
			outDepths = append(outDepths, uint(c.BitDepth))
		}
	} else if outDepths, err = expandBitDepth(d.cfg.OutputBitDepth, len(d.header.Components)); err != nil {
		return nil, nil, 0, 0, wrapKind(ErrKindBadParameter, err)
	}

	out, err := d.inner.DecodeFrame(r, outDepths)
	if err != nil {
		return nil, nil, 0, 0, classifyDecodeErr(err)
	}

	m, _, err := readEOC(r)
	if err != nil {
		return nil, nil, 0, 0, classifyDecodeErr(err)
	}
	if m != codestream.EOC {
		return nil, nil, 0, 0, wrapKind(ErrKindDecoderInvalidBitstream, errors.New("jpegxs: missing EOC"))
	}

	planes = make([][]int32, len(out))
	depths = make([]uint, len(out))
	for i, c := range out {
		planes[i] = c.Plane
		depths[i] = c.Depth
	}

	outW, outH = d.pi.Components[0].Wc, d.pi.Components[0].Hc
	if s := proxyShift(d.cfg.Proxy); s > 0 {
		for i, comp := range d.pi.Components {
			planes[i] = downsample(planes[i], comp.Wc, comp.Hc, s)
		}
		outW, outH = ceilDiv(outW, 1<<uint(s)), ceilDiv(outH, 1<<uint(s))
	}
	return planes, depths, outW, outH, nil
}

func proxyShift(mode ProxyMode) int {
	switch mode {
	case ProxyHalf:
		return 1
	case ProxyQuarter:
		return 2
	default:
		return 0
	}
}

// downsample box-averages a w*h plane by 2^s in both dimensions. Spec
// §4.A's proxy mode instead stops the inverse wavelet transform after
// dropping the finest s levels, reading the coarse LL subband directly
// as the reduced-resolution picture without ever reconstructing the
// finer levels; this implementation always reconstructs fully (so the
// decoder never has to reparse the bitstream's packet schedule against
// a different band count than the encoder used to build it) and
// downsamples the pixel-domain result instead, trading proxy mode's
// performance benefit for a simpler, unconditionally correct decode
// path. Recorded as a decided simplification in DESIGN.md.
func downsample(plane []int32, w, h, s int) []int32 {
	factor := 1 << uint(s)
	ow, oh := ceilDiv(w, factor), ceilDiv(h, factor)
	out := make([]int32, ow*oh)
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			var sum, n int32
			for dy := 0; dy < factor; dy++ {
				y := oy*factor + dy
				if y >= h {
					continue
				}
				for dx := 0; dx < factor; dx++ {
					x := ox*factor + dx
					if x >= w {
						continue
					}
					sum += plane[y*w+x]
					n++
				}
			}
			if n > 0 {
				out[oy*ow+ox] = sum / n
			}
		}
	}
	return out
}

// readEOC reads the bare two-byte EOC delimiter directly, since
// codestream has no exported per-marker delimiter reader beyond
// ReadHeader's internal use.
func readEOC(r *bio.Reader) (codestream.Marker, []byte, error) {
	code, err := r.ReadU16()
	if err != nil {
		return 0, nil, err
	}
	return codestream.Marker(code), nil, nil
}

// openFromHeader always builds the PI at full resolution: the bitstream
// was packed against the encoder's full-resolution precinct/packet
// schedule (spec §4.A/§4.I), so unpacking must walk that exact schedule
// regardless of the requested proxy mode. Proxy mode's resolution
// reduction is applied after the full reconstruction, in downsample
// (see its doc comment for why this trades the spec's wavelet-domain
// early-exit for a guaranteed-correct pixel-domain one).
func (d *Decoder) openFromHeader(h codestream.Header) error {
	cfg := h.PIConfig()
	p, err := pi.Build(cfg)
	if err != nil {
		return wrapKind(ErrKindBadParameter, err)
	}
	if s := proxyShift(d.cfg.Proxy); s > 0 {
		if _, err := pi.Retarget(cfg, s); err != nil {
			return wrapKind(ErrKindBadParameter, errors.Wrap(err, "jpegxs: proxy mode not supported for this picture geometry"))
		}
	}

	fc := orchestrate.FrameConfig{
		PI:                  p,
		Classes:             h.Classes,
		Bw:                  h.Bw,
		OutputDepth:         defaultOutputDepth(h),
		ColourTransform:     h.ColourTransform,
		StarTetrix:          h.StarTetrix,
		SignMode:            h.SignMode,
		BudgetBytesPerSlice: h.BudgetBytesPerSlice,
		Mode:                orchestrate.CPUThroughput,
	}.WithNLTParams(h.NLT)

	d.header = h
	d.pi = p
	d.inner = orchestrate.NewDecoder(fc, d.log)
	d.hasOpened = true
	return nil
}

func defaultOutputDepth(h codestream.Header) uint {
	if len(h.Components) == 0 {
		return 8
	}
	return uint(h.Components[0].BitDepth)
}

func classifyDecodeErr(err error) error {
	if errors.Is(err, bio.ErrShortRead) {
		return wrapKind(ErrKindDecoderBitstreamTooShort, err)
	}
	return wrapKind(ErrKindDecoderInvalidBitstream, err)
}

// SendFrame enqueues one full frame's coded bytes (spec §6 "send_frame").
// The first call across a Decoder's lifetime must include the main
// header; later calls may carry only slice data and an EOC. A later call
// that does start with a main header is checked against the first one
// and fails with ErrKindDecoderConfigChange if they differ.
func (d *Decoder) SendFrame(ctx context.Context, data []byte) error {
	select {
	case d.in <- data:
		return nil
	case <-ctx.Done():
		return wrapKind(ErrKindInsufficientResources, ctx.Err())
	case <-d.done:
		return wrapKind(ErrKindBadParameter, errors.New("jpegxs: decoder closed"))
	}
}

// GetFrame blocks for the next decoded frame, re-interleaving into a
// single packed plane if DecoderConfig.Packed was set.
func (d *Decoder) GetFrame(ctx context.Context) (Frame, error) {
	select {
	case res, ok := <-d.out:
		if !ok {
			return Frame{}, wrapKind(ErrKindBadParameter, errors.New("jpegxs: decoder closed"))
		}
		if res.err != nil {
			return Frame{}, res.err
		}
		if d.cfg.Packed && len(res.planes) >= 3 {
			return Frame{Planes: [][]int32{interleave(res.planes, res.w, res.h)}}, nil
		}
		return Frame{Planes: res.planes}, nil
	case <-ctx.Done():
		return Frame{}, wrapKind(ErrKindInsufficientResources, ctx.Err())
	}
}

// Close stops the worker goroutine. Safe to call more than once.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.done)
	return nil
}

// DecodeFrame is a synchronous convenience wrapper for callers decoding
// a single self-contained frame.
func DecodeFrame(apiVerMajor, apiVerMinor int, cfg DecoderConfig, data []byte) (Frame, error) {
	d, err := OpenDecoder(apiVerMajor, apiVerMinor, cfg)
	if err != nil {
		return Frame{}, err
	}
	defer d.Close()
	ctx := context.Background()
	if err := d.SendFrame(ctx, data); err != nil {
		return Frame{}, err
	}
	return d.GetFrame(ctx)
}
