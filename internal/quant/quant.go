// Package quant implements per-band quantization (GTLI derivation) and the
// GCLI / significance-max extraction that sizes entropy packets (spec
// §4.G).
//
// It is grounded on the teacher's internal/entropy/t1.go bitplane-scanning
// idiom (finding the highest set bitplane across a coefficient group) and
// internal/tcd/tcd.go's per-band/per-code-block quantization fields, but is
// not a port of either: JPEG XS never runs an MQ arithmetic coder over
// bitplanes (see DESIGN.md for the drop of internal/entropy), so only the
// "find the top bitplane of a coefficient group" scanning shape survives,
// applied to JPEG XS's flat per-band GCLI/significance group model instead
// of JPEG 2000's code-block bitplane coding passes.
package quant

import "math/bits"

// GTLI computes the Greatest Trimmed Line Index for a band with the given
// gain and priority, under quantization Q and refinement R (spec §4.G):
//
//	pump_up = 1 if priority < R else 0
//	gtli    = 0                      if Q < gain + pump_up
//	        = min(Q - gain - pump_up, 15)  otherwise
func GTLI(gain, priority, q, r int) int {
	pumpUp := 0
	if priority < r {
		pumpUp = 1
	}
	if q < gain+pumpUp {
		return 0
	}
	g := q - gain - pumpUp
	if g > 15 {
		g = 15
	}
	return g
}

// GCLI computes the Greatest Coded Line Index for one group of Ng
// coefficients (spec §4.G): floor(log2(|max|<<1)) if any coefficient in
// the group is non-zero, else 0. Coefficients are signed 32-bit magnitudes
// (pre image-shift); the result is always in [0,15].
func GCLI(group []int32) int {
	var max int32
	for _, v := range group {
		a := v
		if a < 0 {
			a = -a
		}
		if a > max {
			max = a
		}
	}
	if max == 0 {
		return 0
	}
	// floor(log2(max<<1)) == bits.Len(uint(max)), since max<<1 has one
	// more bit than max and floor(log2(x)) for x with bit-length n is
	// n-1; bits.Len already returns that bit-length directly for max.
	g := bits.Len32(uint32(max))
	if g > 15 {
		g = 15
	}
	return g
}

// GCLILine computes the GCLI array for a full band line: one entry per
// contiguous group of ng coefficients (spec §4.G, §3 "GCLI array of
// ceil(width/coeff_group_size) bytes").
func GCLILine(line []int32, ng int) []uint8 {
	n := ceilDiv(len(line), ng)
	out := make([]uint8, n)
	for i := 0; i < n; i++ {
		lo := i * ng
		hi := lo + ng
		if hi > len(line) {
			hi = len(line)
		}
		out[i] = uint8(GCLI(line[lo:hi]))
	}
	return out
}

// SignificanceMax computes, for each group of ss consecutive GCLI entries,
// the maximum value in that group (spec §4.G "Significance-max"). This is
// what lets the packer decide a whole significance group is below a given
// gtli and code it as a single "off" bit.
func SignificanceMax(gcli []uint8, ss int) []uint8 {
	n := ceilDiv(len(gcli), ss)
	out := make([]uint8, n)
	for i := 0; i < n; i++ {
		lo := i * ss
		hi := lo + ss
		if hi > len(gcli) {
			hi = len(gcli)
		}
		var max uint8
		for _, v := range gcli[lo:hi] {
			if v > max {
				max = v
			}
		}
		out[i] = max
	}
	return out
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Trim zeroes the low gtli bitplanes of every coefficient in place (encode
// direction): magnitude is shifted right by gtli bits, discarding the
// trimmed low bits, sign preserved.
func Trim(line []int32, gtli int) {
	if gtli == 0 {
		return
	}
	for i, v := range line {
		if v < 0 {
			line[i] = -((-v) >> uint(gtli))
		} else {
			line[i] = v >> uint(gtli)
		}
	}
}

// Expand re-expands every coefficient in line by gtli bits (decode
// direction). mode selects the dequantizer: Uniform sets the trimmed low
// bits to zero; Deadzone sets them to a mid-point "1000..." pattern,
// matching spec §4.G's "uniform or deadzone" inverse-quantizer choice.
func Expand(line []int32, gtli int, mode DequantMode) {
	if gtli == 0 {
		return
	}
	var fill int32
	if mode == Deadzone && gtli > 0 {
		fill = 1 << uint(gtli-1)
	}
	for i, v := range line {
		if v == 0 {
			continue
		}
		if v < 0 {
			mag := (-v << uint(gtli)) | fill
			line[i] = -mag
		} else {
			line[i] = (v << uint(gtli)) | fill
		}
	}
}

// DequantMode selects the inverse-quantizer reconstruction rule (spec
// §4.G, picture header dynamic flag "inverse-quantizer type").
type DequantMode int

const (
	Uniform DequantMode = iota
	Deadzone
)
