package quant

import "testing"

func TestGTLIBounds(t *testing.T) {
	for q := 0; q < 40; q++ {
		for gain := 0; gain <= 15; gain++ {
			for priority := 0; priority < 8; priority++ {
				for r := 0; r < 8; r++ {
					g := GTLI(gain, priority, q, r)
					if g < 0 || g > 15 {
						t.Fatalf("GTLI(%d,%d,%d,%d)=%d out of [0,15]", gain, priority, q, r, g)
					}
				}
			}
		}
	}
}

func TestGTLIPumpUp(t *testing.T) {
	// priority < R promotes by one bitplane relative to priority >= R.
	withPump := GTLI(4, 1, 6, 2)
	without := GTLI(4, 5, 6, 2)
	if withPump != without-1 {
		t.Fatalf("expected pump-up to trim one fewer bitplane: with=%d without=%d", withPump, without)
	}
}

func TestGTLIBelowGainIsZero(t *testing.T) {
	if g := GTLI(10, 0, 5, 0); g != 0 {
		t.Fatalf("Q < gain should give gtli=0, got %d", g)
	}
}

func TestGCLIZeroGroup(t *testing.T) {
	if g := GCLI([]int32{0, 0, 0}); g != 0 {
		t.Fatalf("all-zero group should give gcli=0, got %d", g)
	}
}

func TestGCLIMatchesFormula(t *testing.T) {
	cases := []struct {
		group []int32
		want  int
	}{
		{[]int32{1}, 1},
		{[]int32{-1}, 1},
		{[]int32{2}, 2},
		{[]int32{3}, 2},
		{[]int32{4}, 3},
		{[]int32{0, -255, 3}, 8},
	}
	for _, c := range cases {
		if got := GCLI(c.group); got != c.want {
			t.Errorf("GCLI(%v) = %d, want %d", c.group, got, c.want)
		}
	}
}

func TestGCLILineGrouping(t *testing.T) {
	line := []int32{1, 2, 3, 4, 5}
	out := GCLILine(line, 2)
	if len(out) != 3 {
		t.Fatalf("expected 3 groups of 2, got %d", len(out))
	}
}

func TestSignificanceMax(t *testing.T) {
	gcli := []uint8{1, 3, 2, 0, 5}
	out := SignificanceMax(gcli, 2)
	want := []uint8{3, 2, 5}
	for i, v := range want {
		if out[i] != v {
			t.Errorf("group %d: got %d, want %d", i, out[i], v)
		}
	}
}

func TestTrimExpandRoundtripUniform(t *testing.T) {
	orig := []int32{0, 5, -5, 100, -100}
	line := append([]int32(nil), orig...)
	const gtli = 3
	Trim(line, gtli)
	Expand(line, gtli, Uniform)
	for i := range line {
		// Uniform reconstruction only recovers the value up to the
		// trimmed bitplanes' resolution, not exactly, except when the
		// original was already a multiple of 2^gtli.
		want := (orig[i] >> gtli) << gtli
		if orig[i] < 0 {
			want = -(((-orig[i]) >> gtli) << gtli)
		}
		if line[i] != want {
			t.Errorf("index %d: got %d, want %d", i, line[i], want)
		}
	}
}

func TestTrimZeroGTLIIsNoop(t *testing.T) {
	line := []int32{1, -2, 3}
	orig := append([]int32(nil), line...)
	Trim(line, 0)
	Expand(line, 0, Uniform)
	for i := range line {
		if line[i] != orig[i] {
			t.Errorf("index %d: got %d, want %d", i, line[i], orig[i])
		}
	}
}
