// Package weight assigns a gain and a priority to every band of a built PI,
// the one normative interface spec §1/§4.B calls out for weight-table
// derivation: "assign a gain and a priority to every band". It ships a
// built-in reference table for the common 5-horizontal/2-vertical
// decomposition and derives any other (Nx, Ny) shape from it by slicing,
// the way the teacher's small pure-function mct package keeps one
// canonical table and derives variants rather than hand-writing every case.
package weight

import (
	"sort"

	"github.com/mrjoshuak/jpegxs/internal/pi"
)

// Class labels a component's perceptual role so the right reference table
// column is used. The caller derives this from the frame's colour format
// (spec §6); weight itself stays independent of colour-format parsing.
type Class int

const (
	ClassLuma Class = iota
	ClassChroma
	ClassOther
)

// reference holds the 5-horizontal/2-vertical gain table in band order:
// the 2*2 vertical-introduced bands (finest pair first), the 5 horizontal
// bands (finest first), then the final LL. Values are illustrative of a
// low-to-high importance ramp (LL highest) and are always <= 15.
var reference = map[Class][]int{
	ClassLuma:   {1, 1, 2, 2, 3, 4, 5, 6, 7, 9},
	ClassChroma: {1, 1, 2, 2, 3, 4, 5, 6, 7, 8},
	ClassOther:  {1, 1, 2, 2, 3, 4, 5, 6, 7, 8},
}

const refNx, refNy = 5, 2

// bandGain derives the gain table for a component with nPrimeY vertical
// levels and nx horizontal levels by slicing the reference 5/2 table: the
// first 2*nPrimeY vertical-section entries, the first nx horizontal-section
// entries, and the final LL entry (spec §4.B: "derive by systematically
// removing the last horizontal or the first/last vertical rows... and
// re-densifying").
func bandGain(class Class, nx, nPrimeY int) []int {
	ref := reference[class]
	vertSection := ref[:2*refNy]     // first 2*Ny entries
	horizSection := ref[2*refNy : 2*refNy+refNx]
	ll := ref[len(ref)-1]

	out := make([]int, 0, 2*nPrimeY+nx+1)
	out = append(out, vertSection[:2*nPrimeY]...)
	out = append(out, horizSection[:nx]...)
	out = append(out, ll)
	for i, g := range out {
		if g > 15 {
			out[i] = 15
		}
	}
	return out
}

// rankedBand is one band awaiting a global priority assignment.
type rankedBand struct {
	component, local int
	gain             int
	order            int // stable tie-break: enumeration order
}

// Assign populates Gain and Priority on every existing band of p. classes
// gives the perceptual role of each component (len(classes) == p.Cfg.Nc);
// suppressed components may use ClassOther. Priorities are assigned
// globally across the whole frame (every existing band, every component)
// by gain descending, satisfying the permutation invariant of spec §8.2.
func Assign(p *pi.PI, classes []Class) {
	var ranked []rankedBand
	order := 0

	for c := 0; c < p.DecomposedCount; c++ {
		comp := &p.Components[c]
		gains := bandGain(classOf(classes, c), comp.Nx, comp.Ny)
		for local, g := range gains {
			comp.Bands[local].Gain = g
			ranked = append(ranked, rankedBand{component: c, local: local, gain: g, order: order})
			order++
		}
	}

	for c := p.Cfg.Nc - p.Cfg.Sd; c < p.Cfg.Nc; c++ {
		comp := &p.Components[c]
		g := 8
		if g > 15 {
			g = 15
		}
		comp.Bands[0].Gain = g
		ranked = append(ranked, rankedBand{component: c, local: 0, gain: g, order: order})
		order++
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].gain != ranked[j].gain {
			return ranked[i].gain > ranked[j].gain
		}
		return ranked[i].order < ranked[j].order
	})

	for priority, rb := range ranked {
		p.Components[rb.component].Bands[rb.local].Priority = priority
	}
}

func classOf(classes []Class, c int) Class {
	if c < len(classes) {
		return classes[c]
	}
	return ClassOther
}
