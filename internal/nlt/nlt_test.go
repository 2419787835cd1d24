package nlt

import "testing"

func TestForwardInverseLinearRoundtrip(t *testing.T) {
	const bw, depth = 16, 8
	for _, sample := range []int64{0, 1, 127, 128, 255} {
		fwd := Forward(sample, depth, bw)
		got := Inverse(Params{Type: Linear}, fwd, bw, depth)
		if got != sample {
			t.Errorf("sample %d: forward->inverse got %d", sample, got)
		}
	}
}

func TestInverseLinearClamps(t *testing.T) {
	const bw, depth = 16, 8
	big := Forward(1000, 10, bw) // out of 8-bit range after forward/inverse roundtrip math
	got := Inverse(Params{Type: Linear}, big, bw, depth)
	if got < 0 || got > (1<<depth)-1 {
		t.Fatalf("Inverse did not clamp to depth range: got %d", got)
	}
}

func TestInverseQuadraticClampsToRange(t *testing.T) {
	const bw, depth = 16, 8
	p := Params{Type: Quadratic, Alpha: 0, Sigma: 0}
	for _, v := range []int64{-40000, 0, 40000} {
		got := Inverse(p, v, bw, depth)
		if got < 0 || got > (1<<depth)-1 {
			t.Errorf("v=%d: out of range result %d", v, got)
		}
	}
}

func TestInverseExtendedBranches(t *testing.T) {
	const bw, depth = 16, 8
	p := Params{Type: Extended, T1: -1000, T2: 1000, Exp: 1}
	for _, v := range []int64{-5000, 0, 5000} {
		got := Inverse(p, v, bw, depth)
		if got < 0 || got > (1<<depth)-1 {
			t.Errorf("v=%d: out of range result %d", v, got)
		}
	}
}
