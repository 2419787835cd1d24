// Package search implements the monotone binary-search driver shared by
// rate control's Q and R passes (spec §4.K). It is new relative to the
// teacher — JPEG 2000's rate allocation (internal/tcd/t2.go) performs a
// similar monotone search over truncation points inline inside its PCRD-
// style layer cutting, rather than as a reusable helper — so this package
// factors that shape out as its own small, testable unit.
package search

// Verdict is the result of probing one candidate index.
type Verdict int

const (
	// TooSmall means the search continues above the candidate. Under
	// GreatestThatFits the candidate fits the budget and a larger value
	// may too; under SmallestThatFits the candidate does not fit.
	TooSmall Verdict = iota
	// TooBig means the search continues below the candidate. Under
	// GreatestThatFits the candidate overshoots the budget; under
	// SmallestThatFits the candidate fits and a smaller value may too.
	TooBig
	// OutOfRange means the candidate is outside [Begin, End] and must not
	// be probed again.
	OutOfRange
)

// Policy selects which boundary Run returns when the search converges.
type Policy int

const (
	// GreatestThatFits returns the largest probed index classified
	// TooSmall (i.e. "fits, try bigger"). This is rate control's R search
	// (spec §4.H: "maximum R such that total size still fits").
	GreatestThatFits Policy = iota
	// SmallestThatFits returns the smallest probed index classified
	// TooBig-or-equal from below, i.e. the minimum index that fits. This
	// is rate control's Q search (spec §4.H: "minimum Q for which total
	// packed size fits the budget").
	SmallestThatFits
)

// Query probes one candidate index and classifies it.
type Query func(candidate int) Verdict

// Config parameterizes one search run.
type Config struct {
	Begin, End int // inclusive range
	// InitialStep is the first probe's distance from Begin (spec §4.K:
	// "initial step (0 = classic midpoint, otherwise additive step from
	// begin)"). 0 selects the classic bisection midpoint.
	InitialStep int
	Policy      Policy
}

// Run drives Config.Begin..Config.End down to the boundary the policy asks
// for, calling query at most O(log(End-Begin)) times after the initial
// step. ok is false when every candidate in range is out of range or when
// the range itself is empty and no answer could be produced.
func Run(cfg Config, query Query) (result int, ok bool) {
	lo, hi := cfg.Begin, cfg.End
	if lo > hi {
		return 0, false
	}

	found := false
	var best int

	record := func(candidate int, v Verdict) {
		switch cfg.Policy {
		case GreatestThatFits:
			if v == TooSmall && (!found || candidate > best) {
				best, found = candidate, true
			}
		case SmallestThatFits:
			if v == TooBig && (!found || candidate < best) {
				best, found = candidate, true
			}
		}
	}

	probe := func(c int) Verdict {
		if c < cfg.Begin || c > cfg.End {
			return OutOfRange
		}
		v := query(c)
		if v != OutOfRange {
			record(c, v)
		}
		return v
	}

	// First probe: either the classic midpoint or begin+InitialStep.
	var first int
	if cfg.InitialStep == 0 {
		first = lo + (hi-lo)/2
	} else {
		first = lo + cfg.InitialStep
		if first > hi {
			first = hi
		}
	}

	v := probe(first)
	switch v {
	case TooSmall:
		lo = first + 1
	case TooBig:
		hi = first - 1
	case OutOfRange:
		// first step overshot the range entirely; fall back to plain
		// bisection over the original bounds.
		lo, hi = cfg.Begin, cfg.End
	}

	for lo <= hi {
		mid := lo + (hi-lo)/2
		v := probe(mid)
		switch v {
		case TooSmall:
			lo = mid + 1
		case TooBig, OutOfRange:
			hi = mid - 1
		}
	}

	if !found {
		return 0, false
	}
	return best, true
}
