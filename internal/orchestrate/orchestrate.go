// Package orchestrate is the frame orchestrator (spec §4.J): it walks a
// built Picture Information descriptor's precinct and packet schedule,
// driving the non-linear transform, colour transform, wavelet
// decomposition, rate control and packet packing (or their inverses) for
// one whole frame, on either a low-latency or a CPU-throughput concurrency
// schedule.
//
// It is grounded on the teacher's encoder.go/decoder.go top-level Encode/
// Decode loop shape (validate config, transform, entropy-code each
// component's code-blocks, emit) and on golang.org/x/sync/errgroup +
// semaphore for bounding the wavelet stage's concurrency, the same
// combination the rest of this module's ambient stack uses for bounded
// fan-out (see SPEC_FULL.md §10).
package orchestrate

import (
	"context"
	"io"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mrjoshuak/jpegxs/internal/bio"
	"github.com/mrjoshuak/jpegxs/internal/dwt"
	"github.com/mrjoshuak/jpegxs/internal/mct"
	"github.com/mrjoshuak/jpegxs/internal/nlt"
	"github.com/mrjoshuak/jpegxs/internal/packet"
	"github.com/mrjoshuak/jpegxs/internal/pi"
	"github.com/mrjoshuak/jpegxs/internal/quant"
	"github.com/mrjoshuak/jpegxs/internal/ratecontrol"
	"github.com/mrjoshuak/jpegxs/internal/weight"
)

// Mode selects the concurrency strategy (spec §4.J "low-latency vs
// CPU-throughput"). Both modes run the identical per-component pipeline;
// only the concurrency ceiling differs, via Concurrency below — a
// low-latency encoder wants the first precinct's bytes out as soon as
// possible and so processes one component at a time, while a
// CPU-throughput encoder is willing to trade that for transforming every
// component in parallel.
type Mode int

const (
	LowLatency Mode = iota
	CPUThroughput
)

// ColourTransform selects the multiple-component transform applied before
// the wavelet stage (spec §4.F).
type ColourTransform int

const (
	ColourNone ColourTransform = iota
	ColourRCT
	ColourStarTetrix
)

// StarTetrixParams bundles the CFA registration parameters Star-Tetrix
// needs beyond the four component planes themselves (spec §4.F).
type StarTetrixParams struct {
	CFA    mct.CFAType
	Cf     int
	E1, E2 int
}

// ComponentInput is one component plane in the input format adapter's
// canonical planar shape (spec §4.J "input format adapter"): callers
// supplying packed/interleaved samples (e.g. UYVY, packed RGB) convert to
// this before calling Encoder.EncodeFrame.
type ComponentInput struct {
	Plane      []int32 // Wc*Hc samples, row-major, at InputDepth precision
	InputDepth uint
	NLT        nlt.Params
}

// FrameConfig bundles everything EncodeFrame/DecodeFrame need beyond the
// raw samples.
type FrameConfig struct {
	PI              *pi.PI
	Classes         []weight.Class
	Bw              uint // NLT intermediate bit depth
	OutputDepth     uint
	ColourTransform ColourTransform
	StarTetrix      StarTetrixParams
	SignMode        ratecontrol.SignMode
	Features        ratecontrol.Features
	DequantMode     quant.DequantMode
	MaxQ, MaxR      int

	// BudgetBytesPerSlice is the exact byte budget rate control must fit
	// every slice's packets into (spec §4.H). It is split evenly across
	// this slice's packets; true proportional (per-band-cost) budget
	// splitting is a further refinement this rewrite does not attempt —
	// recorded in DESIGN.md.
	BudgetBytesPerSlice int

	Mode        Mode
	Concurrency int64 // CPUThroughput concurrency ceiling; 0 selects GOMAXPROCS

	// nltParams carries the per-component inverse-NLT parameters a
	// decoder needs to undo Forward; set via WithNLTParams. Encoders
	// instead carry these on each ComponentInput.NLT.
	nltParams []nlt.Params
}

func (cfg FrameConfig) concurrency() int64 {
	if cfg.Mode == LowLatency {
		return 1
	}
	if cfg.Concurrency > 0 {
		return cfg.Concurrency
	}
	return int64(runtime.GOMAXPROCS(0))
}

func precinctHeightRows(p *pi.PI) int { return 1 << uint(p.Cfg.Ny) }

func numPrecincts(p *pi.PI) int {
	h := precinctHeightRows(p)
	return (p.Cfg.H + h - 1) / h
}

func precinctsPerSlice(p *pi.PI) int {
	n := p.Cfg.SliceHeight / precinctHeightRows(p)
	if n < 1 {
		return 1
	}
	return n
}

// bandTarget names the exact (component, local band, coefficient row)
// triple one packet within one precinct contributes or consumes.
type bandTarget struct {
	component, local int
	row              int
}

// packetTargets resolves one PacketDescriptor at one precinct index into
// the concrete band rows it covers, shared by both the encode and the
// decode walk so the two can never drift out of sync on which band/row a
// packet means.
func packetTargets(p *pi.PI, pd pi.PacketDescriptor, precinctIdx int) []bandTarget {
	var out []bandTarget
	add := func(component, local int) {
		piband := p.Components[component].Bands[local]
		rowsPerPrecinct := piband.HeightLinesNum
		if pd.Line >= rowsPerPrecinct {
			return
		}
		row := precinctIdx*rowsPerPrecinct + pd.Line
		if row >= piband.Height {
			return
		}
		out = append(out, bandTarget{component: component, local: local, row: row})
	}

	if pd.SuppressedComponent >= 0 {
		add(pd.SuppressedComponent, 0)
		return out
	}
	for slot := pd.BandStart; slot < pd.BandStop; slot++ {
		entry := p.GlobalOrder[slot]
		if entry == pi.BandNotExist {
			continue
		}
		c, local := pi.GlobalBand(entry)
		add(c, local)
	}
	return out
}

type bandKey struct{ component, local int }

// Encoder runs the encode-side pipeline of spec §4.J over one frame at a
// time.
type Encoder struct {
	Cfg FrameConfig
	Log zerolog.Logger
}

// NewEncoder assigns gain/priority to every band of cfg.PI via
// internal/weight (spec §4.B), once, up front, and returns an Encoder
// ready for repeated EncodeFrame calls against that PI.
func NewEncoder(cfg FrameConfig, log zerolog.Logger) *Encoder {
	weight.Assign(cfg.PI, cfg.Classes)
	return &Encoder{Cfg: cfg, Log: log}
}

// EncodeFrame transforms comps (NLT, colour transform, wavelet), then
// walks the precinct/packet schedule running rate control and packing
// the result to w. It returns the number of bytes written.
func (e *Encoder) EncodeFrame(ctx context.Context, comps []ComponentInput, w io.Writer) (int, error) {
	bands, err := e.transform(ctx, comps)
	if err != nil {
		return 0, err
	}
	return e.packPrecincts(w, bands)
}

func (e *Encoder) transform(ctx context.Context, comps []ComponentInput) ([][]dwt.CoeffBand, error) {
	cfg := e.Cfg
	nc := len(comps)
	if nc != cfg.PI.Cfg.Nc {
		return nil, errors.Errorf("orchestrate: got %d component planes, PI expects %d", nc, cfg.PI.Cfg.Nc)
	}
	scaled := make([][]int32, nc)

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(cfg.concurrency())
	for idx := range comps {
		idx := idx
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			in := comps[idx]
			out := make([]int32, len(in.Plane))
			for i, s := range in.Plane {
				out[i] = int32(nlt.Forward(int64(s), in.InputDepth, cfg.Bw))
			}
			scaled[idx] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "orchestrate: nlt forward")
	}

	if err := e.applyColourTransform(scaled); err != nil {
		return nil, err
	}

	bands := make([][]dwt.CoeffBand, nc)
	g2, gctx2 := errgroup.WithContext(ctx)
	sem2 := semaphore.NewWeighted(cfg.concurrency())
	for c := 0; c < cfg.PI.DecomposedCount; c++ {
		c := c
		g2.Go(func() error {
			if err := sem2.Acquire(gctx2, 1); err != nil {
				return err
			}
			defer sem2.Release(1)
			comp := cfg.PI.Components[c]
			bands[c] = dwt.ForwardComponent(scaled[c], comp.Wc, comp.Hc, comp.Nx, comp.Ny)
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, errors.Wrap(err, "orchestrate: wavelet forward")
	}
	for c := cfg.PI.DecomposedCount; c < cfg.PI.Cfg.Nc; c++ {
		comp := cfg.PI.Components[c]
		bands[c] = []dwt.CoeffBand{{Width: comp.Wc, Height: comp.Hc, Data: scaled[c]}}
	}

	e.Log.Debug().Int("components", nc).Msg("orchestrate: transform complete")
	return bands, nil
}

func (e *Encoder) applyColourTransform(comps [][]int32) error {
	switch e.Cfg.ColourTransform {
	case ColourNone:
		return nil
	case ColourRCT:
		if len(comps) < 3 {
			return errors.New("orchestrate: RCT requires 3 components")
		}
		mct.ForwardRCT(comps[0], comps[1], comps[2])
		return nil
	case ColourStarTetrix:
		if len(comps) < 4 {
			return errors.New("orchestrate: Star-Tetrix requires 4 components")
		}
		var arr [4][]int32
		copy(arr[:], comps[:4])
		st := e.Cfg.StarTetrix
		comp0 := e.Cfg.PI.Components[0]
		mct.ForwardStarTetrix(arr, st.Cf, st.CFA, st.E1, st.E2, comp0.Wc, comp0.Hc)
		copy(comps[:4], arr[:])
		return nil
	default:
		return errors.Errorf("orchestrate: unknown colour transform %d", e.Cfg.ColourTransform)
	}
}

func (e *Encoder) budgetPerPacket() int {
	n := len(e.Cfg.PI.Packets) * precinctsPerSlice(e.Cfg.PI)
	if n < 1 {
		n = 1
	}
	return e.Cfg.BudgetBytesPerSlice / n
}

func (e *Encoder) packPrecincts(w io.Writer, bands [][]dwt.CoeffBand) (int, error) {
	p := e.Cfg.PI
	cw := &bio.CountingWriter{}
	bw := bio.NewWriter(io.MultiWriter(w, cw))
	prevGCLI := make(map[bandKey][]uint8)
	budget := e.budgetPerPacket()
	maxQ, maxR := e.Cfg.MaxQ, e.Cfg.MaxR
	if maxQ == 0 {
		maxQ = 31
	}
	if maxR == 0 {
		maxR = 7
	}

	for pr := 0; pr < numPrecincts(p); pr++ {
		if (pr*precinctHeightRows(p))%p.Cfg.SliceHeight == 0 {
			prevGCLI = make(map[bandKey][]uint8) // a slice's first precinct has no VPred source
		}
		for _, pd := range p.Packets {
			targets := packetTargets(p, pd, pr)
			if len(targets) == 0 {
				continue
			}

			lines := make([]ratecontrol.BandLine, len(targets))
			for i, t := range targets {
				piband := p.Components[t.component].Bands[t.local]
				row := append([]int32(nil), bands[t.component][t.local].Rows(t.row, 1)...)
				gcli := quant.GCLILine(row, p.Cfg.Ng)
				key := bandKey{t.component, t.local}
				lines[i] = ratecontrol.BandLine{
					Gain: piband.Gain, Priority: piband.Priority,
					Ng: p.Cfg.Ng, Ss: p.Cfg.Ss,
					GCLI: gcli, Coeffs: row,
					PrevGCLI:     prevGCLI[key],
					RawSizeBytes: piband.RawPacketSize(p.Cfg.Ng),
				}
				prevGCLI[key] = gcli
			}

			res, err := ratecontrol.Search(ratecontrol.PrecinctBudget{
				Bands:       lines,
				HeaderBytes: (6*len(lines) + 7) / 8, // 2-bit method plus 4-bit gtli per band, byte-aligned
				BudgetBytes: budget,
				MaxQ:        maxQ,
				MaxR:        maxR,
				Features:    e.Cfg.Features,
			}, &e.Log)
			if err != nil {
				return cw.Len(), errors.Wrapf(err, "orchestrate: precinct %d bands [%d:%d) line %d", pr, pd.BandStart, pd.BandStop, pd.Line)
			}

			gtli := make([]uint8, len(lines))
			for i, g := range res.Gtli {
				gtli[i] = uint8(g)
			}
			if err := packet.PackPrecinctHeader(bw, res.Methods, gtli); err != nil {
				return cw.Len(), err
			}
			for i, line := range lines {
				quant.Trim(line.Coeffs, res.Gtli[i])
				pb := packet.Band{
					Coeffs:       line.Coeffs,
					GCLI:         line.GCLI,
					Significance: quant.SignificanceMax(line.GCLI, line.Ss),
					Ng:           line.Ng,
					Ss:           line.Ss,
					Gtli:         res.Gtli[i],
					PrevGCLI:     line.PrevGCLI,
				}
				if err := packet.Pack(bw, pb, res.Methods[i], e.Cfg.Features.SignHandling); err != nil {
					return cw.Len(), err
				}
			}
			if err := bw.Align(); err != nil {
				return cw.Len(), err
			}
		}
	}
	return cw.Len(), nil
}

// Decoder runs the decode-side inverse pipeline: unpacking every precinct
// and packet, dequantizing, inverse-transforming and undoing the colour
// transform and NLT.
type Decoder struct {
	Cfg FrameConfig
	Log zerolog.Logger
}

func NewDecoder(cfg FrameConfig, log zerolog.Logger) *Decoder {
	weight.Assign(cfg.PI, cfg.Classes)
	return &Decoder{Cfg: cfg, Log: log}
}

// DecodeFrame is the exact inverse of Encoder.EncodeFrame: given the
// packed bytes r and each component's output depth, it reconstructs every
// component plane.
func (d *Decoder) DecodeFrame(r io.Reader, outputDepth []uint) ([]ComponentOutput, error) {
	p := d.Cfg.PI
	bands := make([][]dwt.CoeffBand, p.Cfg.Nc)
	for c, comp := range p.Components {
		if c < p.DecomposedCount {
			bands[c] = make([]dwt.CoeffBand, len(comp.Bands))
			for i, b := range comp.Bands {
				bands[c][i] = dwt.CoeffBand{Width: b.Width, Height: b.Height, Data: make([]int32, b.Width*b.Height)}
			}
		} else {
			bands[c] = []dwt.CoeffBand{{Width: comp.Wc, Height: comp.Hc, Data: make([]int32, comp.Wc*comp.Hc)}}
		}
	}

	br := bio.NewReader(r)
	prevGCLI := make(map[bandKey][]uint8)

	for pr := 0; pr < numPrecincts(p); pr++ {
		if (pr*precinctHeightRows(p))%p.Cfg.SliceHeight == 0 {
			prevGCLI = make(map[bandKey][]uint8) // a slice's first precinct has no VPred source
		}
		for _, pd := range p.Packets {
			targets := packetTargets(p, pd, pr)
			if len(targets) == 0 {
				continue
			}
			methods, gtli, err := packet.UnpackPrecinctHeader(br, len(targets))
			if err != nil {
				return nil, errors.Wrapf(err, "orchestrate: precinct %d bands [%d:%d) line %d header", pr, pd.BandStart, pd.BandStop, pd.Line)
			}
			for i, t := range targets {
				key := bandKey{t.component, t.local}
				band := bands[t.component][t.local]
				numCoeffs := band.Width
				got, err := packet.Unpack(br, methods[i], d.Cfg.SignMode, p.Cfg.Ng, p.Cfg.Ss, int(gtli[i]), numCoeffs, prevGCLI[key])
				if err != nil {
					return nil, errors.Wrapf(err, "orchestrate: precinct %d band (%d,%d) row %d", pr, t.component, t.local, t.row)
				}
				quant.Expand(got.Coeffs, int(gtli[i]), d.Cfg.DequantMode)
				copy(band.Rows(t.row, 1), got.Coeffs)
				prevGCLI[key] = got.GCLI
			}
			br.Align()
		}
	}

	planes := make([][]int32, p.Cfg.Nc)
	g, gctx := errgroup.WithContext(context.Background())
	sem := semaphore.NewWeighted(d.Cfg.concurrency())
	for c := 0; c < p.DecomposedCount; c++ {
		c := c
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			comp := p.Components[c]
			planes[c] = dwt.InverseComponent(bands[c], comp.Wc, comp.Hc, comp.Nx, comp.Ny)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "orchestrate: wavelet inverse")
	}
	for c := p.DecomposedCount; c < p.Cfg.Nc; c++ {
		planes[c] = bands[c][0].Data
	}

	if err := d.applyInverseColourTransform(planes); err != nil {
		return nil, err
	}

	out := make([]ComponentOutput, p.Cfg.Nc)
	for c, plane := range planes {
		depth := d.Cfg.OutputDepth
		if c < len(outputDepth) {
			depth = outputDepth[c]
		}
		rec := make([]int32, len(plane))
		for i, v := range plane {
			rec[i] = int32(nlt.Inverse(d.Cfg.nltParamsFor(c), int64(v), d.Cfg.Bw, depth))
		}
		out[c] = ComponentOutput{Plane: rec, Depth: depth}
	}
	return out, nil
}

func (d *Decoder) applyInverseColourTransform(planes [][]int32) error {
	switch d.Cfg.ColourTransform {
	case ColourNone:
		return nil
	case ColourRCT:
		if len(planes) < 3 {
			return errors.New("orchestrate: RCT requires 3 components")
		}
		mct.InverseRCT(planes[0], planes[1], planes[2])
		return nil
	case ColourStarTetrix:
		if len(planes) < 4 {
			return errors.New("orchestrate: Star-Tetrix requires 4 components")
		}
		var arr [4][]int32
		copy(arr[:], planes[:4])
		st := d.Cfg.StarTetrix
		comp0 := d.Cfg.PI.Components[0]
		mct.InverseStarTetrix(arr, st.Cf, st.CFA, st.E1, st.E2, comp0.Wc, comp0.Hc)
		copy(planes[:4], arr[:])
		return nil
	default:
		return errors.Errorf("orchestrate: unknown colour transform %d", d.Cfg.ColourTransform)
	}
}

// ComponentOutput is one reconstructed component plane.
type ComponentOutput struct {
	Plane []int32
	Depth uint
}

// nltParamsFor reads the nltParams list, set by the caller via WithNLTParams; it lets
// DecodeFrame recover each component's NLT parameters without requiring a
// full ComponentInput (which DecodeFrame, being a decoder, never
// receives).
func (cfg *FrameConfig) nltParamsFor(c int) nlt.Params {
	if c < len(cfg.nltParams) {
		return cfg.nltParams[c]
	}
	return nlt.Params{}
}

// WithNLTParams records the per-component inverse-NLT parameters a decoder
// needs; encoders instead carry these on each ComponentInput.
func (cfg FrameConfig) WithNLTParams(params []nlt.Params) FrameConfig {
	cfg.nltParams = params
	return cfg
}
