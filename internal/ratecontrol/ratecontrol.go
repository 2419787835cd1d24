// Package ratecontrol chooses, per precinct (or per slice), the
// quantization/refinement pair (Q, R) and per-packet coding method that
// fit an exact byte budget (spec §4.H).
//
// It is grounded on the teacher's internal/tcd/t2.go packet/layer
// organization and its PCRD-style layer cutting (implicit in
// CodingPass.Slope: a monotone search for the truncation point that best
// fits a byte target), generalized from JPEG 2000's per-code-block
// truncation-point search to JPEG XS's per-band (Q, R) quantization
// search. The monotone search itself is factored out into
// internal/search, used here for both the Q and R passes (spec §4.H
// "Search").
package ratecontrol

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mrjoshuak/jpegxs/internal/packet"
	"github.com/mrjoshuak/jpegxs/internal/pi"
	"github.com/mrjoshuak/jpegxs/internal/quant"
	"github.com/mrjoshuak/jpegxs/internal/search"
)

// BandLine is one (component, band, line) worth of input to rate control:
// the gain/priority that determine gtli, the already-extracted GCLI line,
// and enough of the raw coefficient magnitudes to size the significance-
// and sign-dependent costs exactly.
type BandLine struct {
	Gain, Priority int
	Ng, Ss         int
	GCLI           []uint8 // one entry per Ng-coefficient group
	Coeffs         []int32 // full-precision coefficients (pre-trim), len == band width for this line
	PrevGCLI       []uint8 // previous precinct's matching line, or nil
	RawSizeBytes   int     // precomputed fixed RAW packet size (pi.Band.RawPacketSize)
}

// Method and SignMode are re-exported for caller convenience.
type Method = packet.Method
type SignMode = packet.SignMode

const (
	MethodRaw           = packet.MethodRaw
	MethodVLCNoSig      = packet.MethodVLCNoSig
	MethodVLCSigNoVPred = packet.MethodVLCSigNoVPred
	MethodVLCSigVPred   = packet.MethodVLCSigVPred
	SignOff   SignMode = packet.SignOff
	SignFast  SignMode = packet.SignFast
	SignFull  SignMode = packet.SignFull
)

// Features toggles the optional coding tools the RC search may use (spec
// §4.H). Search prices every packet separately whatever these are set
// to; there is no pooled per-slice search path.
type Features struct {
	Significance bool
	VerticalPred bool
	SignHandling SignMode
}

// packetCostBits computes (significanceBits, gcliBits, dataBits) for one
// band line under a candidate gtli and method. The count is never below
// what internal/packet.Pack will emit for that (method, gtli), so the
// chosen (Q, R) is guaranteed to fit (spec §8 testable property 6); a
// trailing partial group is priced at the full Ng coefficients. The per-group
// scan is the same shape as the packer itself; spec §4.H describes an
// upfront per-value histogram so this cost can be read back in O(1) per
// (Q, R) probe rather than rescanned, but the significance- and VPred-
// dependent terms below are position-dependent (a group's cost depends on
// its significance-group neighbours and its predictor), so only the
// histogram-friendly NoSig/NoVPred case would actually benefit; this
// rescans every probe instead of carrying that extra table.
func packetCostBits(b BandLine, gtli int, method Method) (sigBits, gcliBits, dataBits int) {
	numGroups := len(b.GCLI)
	numSig := ceilDiv(numGroups, b.Ss)

	var skip []bool
	if method.HasSignificance() {
		sigBits = numSig
		skip = make([]bool, numGroups)
		for sg := 0; sg < numSig; sg++ {
			lo := sg * b.Ss
			hi := lo + b.Ss
			if hi > numGroups {
				hi = numGroups
			}
			significant := false
			for _, g := range b.GCLI[lo:hi] {
				if int(g) > gtli {
					significant = true
					break
				}
			}
			if !significant {
				for i := lo; i < hi; i++ {
					skip[i] = true
				}
			}
		}
	}

	for i, g := range b.GCLI {
		if skip != nil && skip[i] {
			continue
		}
		pred := 0
		if method.HasVPred() && b.PrevGCLI != nil && i < len(b.PrevGCLI) {
			pred = int(b.PrevGCLI[i])
		}
		delta := int(g) - pred
		if delta < 0 {
			delta = 0
		}
		gcliBits += delta + 1

		if int(g) > gtli {
			dataBits += (int(g) - gtli) * b.Ng
		}
	}
	return sigBits, gcliBits, dataBits
}

// signCostBits returns the additional bit cost of the given sign-handling
// strategy over the coefficients of b, under gtli: with sign handling off
// or fast, one bit per coefficient of every group whose GCLI exceeds gtli
// (written inline after each magnitude when off, after the data when
// fast); with full sign handling, one bit per coefficient whose magnitude
// is still non-zero after trimming by gtli.
func signCostBits(b BandLine, gtli int, mode SignMode) int {
	bits := 0
	ng := b.Ng
	for gi, g := range b.GCLI {
		lo := gi * ng
		hi := lo + ng
		if hi > len(b.Coeffs) {
			hi = len(b.Coeffs)
		}
		switch mode {
		case SignOff, SignFast:
			if int(g) > gtli {
				bits += hi - lo
			}
		case SignFull:
			for _, c := range b.Coeffs[lo:hi] {
				if c < 0 {
					c = -c
				}
				if c>>uint(gtli) != 0 {
					bits++
				}
			}
		}
	}
	return bits
}

// PacketSize returns the byte size (rounded up) that packing b under
// (gtli, method, signMode) would actually produce, choosing RAW over VLC
// per spec's "ceil(sig_bits/8) + ceil(gcli_bits/8) exceeds the
// precomputed RAW size" rule, and returns the method actually selected.
func PacketSize(b BandLine, gtli int, method Method, signMode SignMode) (bytes int, chosen Method) {
	sigBits, gcliBits, dataBits := packetCostBits(b, gtli, method)
	signBits := signCostBits(b, gtli, signMode)

	headerBits := ceilDiv(sigBits, 8)*8 + ceilDiv(gcliBits, 8)*8
	if ceilDiv(sigBits, 8)+ceilDiv(gcliBits, 8) > b.RawSizeBytes && b.RawSizeBytes > 0 {
		return ceilDiv(len(b.GCLI)*4+dataBits+signBits, 8), MethodRaw
	}
	total := ceilDiv(headerBits+dataBits+signBits, 8)
	return total, method
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// MethodCacheEntry is one slot of a band's rate-control cost cache (spec
// §4.H "Method-cache" / §9 "rate-control cache ring buffer").
type MethodCacheEntry struct {
	Gtli    int
	Valid   bool
	SigBits int
	GCLIBits int
	DataBits int
}

// MethodCache is the >=2-entry ring buffer of spec §4.H, one per band,
// keyed by gtli.
type MethodCache struct {
	entries [2]MethodCacheEntry
	next    int
}

// Lookup returns a cached cost for gtli if present.
func (c *MethodCache) Lookup(gtli int) (MethodCacheEntry, bool) {
	for _, e := range c.entries {
		if e.Valid && e.Gtli == gtli {
			return e, true
		}
	}
	return MethodCacheEntry{}, false
}

// Store inserts (or overwrites the oldest entry with) a new cost record.
func (c *MethodCache) Store(e MethodCacheEntry) {
	c.entries[c.next] = e
	c.next = (c.next + 1) % len(c.entries)
}

// Invalidate drops every cached entry. Neither Search nor
// internal/orchestrate uses MethodCache.
func (c *MethodCache) Invalidate() {
	c.entries = [2]MethodCacheEntry{}
}

// PrecinctBudget is the input to Search: the bands present in one
// precinct's line(s), their header overhead, and the byte budget they
// must fit (spec §4.H "Header budget").
type PrecinctBudget struct {
	Bands        []BandLine
	HeaderBytes  int
	BudgetBytes  int
	MaxQ         int
	MaxR         int
	Features     Features
}

// Result is the chosen (Q, R), the per-band gtli and method, and the
// total packed size.
type Result struct {
	Q, R       int
	Gtli       []int
	Methods    []Method
	TotalBytes int
}

// ErrBudgetExceeded is returned when no (Q, R) in range fits the budget,
// or the smallest non-empty precinct already exceeds it (spec §4.H
// "Failure modes").
var ErrBudgetExceeded = errors.New("ratecontrol: no (Q, R) fits the byte budget")

func methodFor(f Features) Method {
	switch {
	case f.Significance && f.VerticalPred:
		return MethodVLCSigVPred
	case f.Significance:
		return MethodVLCSigNoVPred
	default:
		return MethodVLCNoSig
	}
}

func totalSize(pb PrecinctBudget, q, r int, log *zerolog.Logger) (int, []int, []Method) {
	gtli := make([]int, len(pb.Bands))
	methods := make([]Method, len(pb.Bands))
	total := pb.HeaderBytes
	method := methodFor(pb.Features)

	for i, b := range pb.Bands {
		g := quant.GTLI(b.Gain, b.Priority, q, r)
		gtli[i] = g
		sz, chosen := PacketSize(b, g, method, pb.Features.SignHandling)
		methods[i] = chosen
		total += sz
	}
	if log != nil {
		log.Debug().Int("q", q).Int("r", r).Int("total", total).Msg("ratecontrol: probe")
	}
	return total, gtli, methods
}

// Search performs the two-stage binary search of spec §4.H: the minimum Q
// that fits the budget, then the maximum R (at that Q) that still fits.
func Search(pb PrecinctBudget, log *zerolog.Logger) (Result, error) {
	if pb.HeaderBytes > pb.BudgetBytes {
		return Result{}, errors.Wrap(ErrBudgetExceeded, "headers alone exceed budget")
	}

	// SmallestThatFits records candidates classified TooBig and keeps the
	// lowest one, searching further down from there: a fitting Q is
	// reported TooBig to trigger exactly that behavior, a non-fitting Q
	// is reported TooSmall to push the search toward larger Q.
	qQuery := func(q int) search.Verdict {
		total, _, _ := totalSize(pb, q, 0, log)
		if total <= pb.BudgetBytes {
			return search.TooBig
		}
		return search.TooSmall
	}
	bestQ, ok := search.Run(search.Config{Begin: 0, End: pb.MaxQ, InitialStep: 6, Policy: search.SmallestThatFits}, qQuery)
	if !ok {
		return Result{}, ErrBudgetExceeded
	}

	rQuery := func(r int) search.Verdict {
		total, _, _ := totalSize(pb, bestQ, r, log)
		if total <= pb.BudgetBytes {
			return search.TooSmall // fits; try a bigger R
		}
		return search.TooBig
	}
	bestR, ok := search.Run(search.Config{Begin: 0, End: pb.MaxR, InitialStep: 0, Policy: search.GreatestThatFits}, rQuery)
	if !ok {
		bestR = 0
	}

	total, gtli, methods := totalSize(pb, bestQ, bestR, log)
	if total > pb.BudgetBytes {
		return Result{}, ErrBudgetExceeded
	}
	return Result{Q: bestQ, R: bestR, Gtli: gtli, Methods: methods, TotalBytes: total}, nil
}

// HeaderBytes computes spec §4.H's precinct header budget:
// ceil((PRECINCT_HEADER_SIZE_BYTES*8 + bandsNumExists*2)/8) +
// ceil(packetHeaderBits*packetsExist/8).
func HeaderBytes(bandsNumExists, packetsExist, packetHeaderBits, precinctHeaderSizeBytes int) int {
	return ceilDiv(precinctHeaderSizeBytes*8+bandsNumExists*2, 8) + ceilDiv(packetHeaderBits*packetsExist, 8)
}

// PacketHeaderBits returns the short or long per-packet header size in
// bits, selected by pi.PI.ShortHeader (spec §6 "Short/long packet header
// selection is deterministic from (W * Nc < 32752)").
func PacketHeaderBits(p *pi.PI) int {
	if p.ShortHeader {
		return 16
	}
	return 32
}
