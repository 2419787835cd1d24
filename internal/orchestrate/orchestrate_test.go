package orchestrate

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mrjoshuak/jpegxs/internal/nlt"
	"github.com/mrjoshuak/jpegxs/internal/pi"
	"github.com/mrjoshuak/jpegxs/internal/quant"
	"github.com/mrjoshuak/jpegxs/internal/ratecontrol"
	"github.com/mrjoshuak/jpegxs/internal/weight"
)

// buildTestPI constructs a single-component, one-vertical/one-horizontal-
// level PI small enough to hand-verify packet/precinct coverage: every band
// row is carried by exactly one (precinct, packet) pair (see DESIGN.md's
// internal/orchestrate entry).
func buildTestPI(t *testing.T) *pi.PI {
	t.Helper()
	p, err := pi.Build(pi.Config{
		Nc: 1, Ng: 4, Ss: 4,
		W: 8, H: 4,
		Nx: 1, Ny: 1,
		Sd:          0,
		Sx:          []int{1},
		Sy:          []int{1},
		SliceHeight: 4,
	})
	if err != nil {
		t.Fatalf("pi.Build: %v", err)
	}
	return p
}

func testConfig(p *pi.PI) FrameConfig {
	return FrameConfig{
		PI:                  p,
		Classes:             []weight.Class{weight.ClassLuma},
		Bw:                  8,
		OutputDepth:         8,
		ColourTransform:     ColourNone,
		SignMode:            ratecontrol.SignFull,
		Features:            ratecontrol.Features{Significance: true, SignHandling: ratecontrol.SignFull},
		DequantMode:         quant.Uniform,
		BudgetBytesPerSlice: 1 << 20,
		Mode:                CPUThroughput,
		Concurrency:         2,
	}
}

func TestEncodeDecodeFrameRoundtripLossless(t *testing.T) {
	p := buildTestPI(t)
	cfg := testConfig(p)

	plane := make([]int32, p.Cfg.W*p.Cfg.H)
	for i := range plane {
		plane[i] = int32((i*37 + 11) % 256)
	}
	comps := []ComponentInput{{Plane: plane, InputDepth: 8, NLT: nlt.Params{Type: nlt.Linear}}}

	enc := NewEncoder(cfg, zerolog.Nop())
	var buf bytes.Buffer
	n, err := enc.EncodeFrame(context.Background(), comps, &buf)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if n != buf.Len() {
		t.Fatalf("EncodeFrame returned %d bytes, buffer holds %d", n, buf.Len())
	}
	if n == 0 {
		t.Fatal("EncodeFrame wrote no bytes")
	}

	dec := NewDecoder(cfg, zerolog.Nop())
	out, err := dec.DecodeFrame(&buf, []uint{8})
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 component, got %d", len(out))
	}
	if len(out[0].Plane) != len(plane) {
		t.Fatalf("expected %d samples, got %d", len(plane), len(out[0].Plane))
	}
	for i, want := range plane {
		if got := out[0].Plane[i]; got != want {
			t.Fatalf("sample %d: got %d, want %d", i, got, want)
		}
	}
}

func TestEncodeFrameRejectsComponentCountMismatch(t *testing.T) {
	p := buildTestPI(t)
	cfg := testConfig(p)
	enc := NewEncoder(cfg, zerolog.Nop())

	var buf bytes.Buffer
	_, err := enc.EncodeFrame(context.Background(), nil, &buf)
	if err == nil {
		t.Fatal("expected an error for a component-count mismatch")
	}
}

func TestFrameConfigConcurrency(t *testing.T) {
	lowLatency := FrameConfig{Mode: LowLatency, Concurrency: 8}
	if got := lowLatency.concurrency(); got != 1 {
		t.Fatalf("LowLatency concurrency = %d, want 1", got)
	}

	throughput := FrameConfig{Mode: CPUThroughput, Concurrency: 4}
	if got := throughput.concurrency(); got != 4 {
		t.Fatalf("CPUThroughput concurrency = %d, want 4", got)
	}

	def := FrameConfig{Mode: CPUThroughput}
	if got := def.concurrency(); got < 1 {
		t.Fatalf("default CPUThroughput concurrency = %d, want >= 1", got)
	}
}

func TestPacketTargetsCoverEveryBandRowExactlyOnce(t *testing.T) {
	p := buildTestPI(t)
	covered := make(map[bandTarget]int)
	for pr := 0; pr < numPrecincts(p); pr++ {
		for _, pd := range p.Packets {
			for _, bt := range packetTargets(p, pd, pr) {
				covered[bt]++
			}
		}
	}
	for c := 0; c < p.DecomposedCount; c++ {
		for local, band := range p.Components[c].Bands {
			for row := 0; row < band.Height; row++ {
				key := bandTarget{component: c, local: local, row: row}
				if covered[key] != 1 {
					t.Fatalf("band (%d,%d) row %d: covered %d times, want 1", c, local, row, covered[key])
				}
			}
		}
	}
}

func TestWithNLTParams(t *testing.T) {
	p := buildTestPI(t)
	cfg := testConfig(p).WithNLTParams([]nlt.Params{{Type: nlt.Quadratic}})
	if got := cfg.nltParamsFor(0); got.Type != nlt.Quadratic {
		t.Fatalf("nltParamsFor(0) = %+v, want Type=Quadratic", got)
	}
	if got := cfg.nltParamsFor(5); got.Type != nlt.Linear {
		t.Fatalf("nltParamsFor(5) out of range = %+v, want zero value", got)
	}
}
