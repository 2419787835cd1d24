package dwt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLift53RoundTrip(t *testing.T) {
	cases := map[string][]int32{
		"two":         {10, 20},
		"four":        {1, 2, 3, 4},
		"odd":         {1, 2, 3, 4, 5, 6, 7},
		"ramp":        {0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		"constant":    {50, 50, 50, 50, 50, 50, 50, 50},
		"alternating": {-10, 10, -10, 10, -10, 10, -10, 10},
		"minimum":     {7, -3},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			length := len(in)
			numH := length / 2
			numLF := length - numH
			lf := make([]int32, numLF)
			hf := make([]int32, numH)
			ForwardLift53(in, lf, hf, length)

			out := make([]int32, length)
			InverseLift53(lf, hf, out, length)
			require.Equal(t, in, out)
		})
	}
}

func TestLift53MatchesReferenceBoundary(t *testing.T) {
	// Spec §4.C's literal lf[0] = in[0] + (hf[0]+1)>>1 formula (confirmed
	// against original_source/Source/Lib/Encoder/Codec/Dwt.c:19-25,33)
	// requires hf's boundary to reflect half-sample symmetric (hf[-1] =
	// hf[0]), not whole-sample the way the in/out line does.
	in := []int32{0, 100, 0, 0, 0}
	lf := make([]int32, 3)
	hf := make([]int32, 2)
	ForwardLift53(in, lf, hf, 5)
	require.Equal(t, []int32{50, 25, 0}, lf)
}

func TestComponentRoundTrip(t *testing.T) {
	cases := []struct {
		name            string
		w, h, nx, nPrimeY int
	}{
		{"h2v0", 64, 48, 5, 0},
		{"h2v1", 64, 48, 5, 1},
		{"h2v2", 64, 48, 5, 2},
		{"minimum", 2, 2, 1, 1},
		{"oddDims", 33, 17, 3, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plane := make([]int32, tc.w*tc.h)
			for i := range plane {
				plane[i] = int32((i*37)%251) - 125
			}

			bands := ForwardComponent(plane, tc.w, tc.h, tc.nx, tc.nPrimeY)
			require.Len(t, bands, 2*tc.nPrimeY+tc.nx+1)

			recon := InverseComponent(bands, tc.w, tc.h, tc.nx, tc.nPrimeY)
			require.Equal(t, plane, recon)
		})
	}
}

func TestImageShiftUnshiftRoundTrip(t *testing.T) {
	const shift = 4
	offset := int32(1 << (shift - 1))

	for _, mag := range []int32{0, 1, 5, 100, 16383} {
		for _, sign := range []int32{1, -1} {
			v := mag * sign * (1 << shift)
			stored := ImageShift(v, shift, offset)
			require.NotEqual(t, uint16(0x8000), stored, "negative zero must never be stored")
			back := ImageUnshift(stored, shift)
			require.Equal(t, v, back)
		}
	}
}

func TestImageShiftNeverStoresNegativeZero(t *testing.T) {
	stored := ImageShift(-1, 4, 8)
	require.NotEqual(t, uint16(0x8000), stored)
	require.Equal(t, uint16(0), stored)
}

func TestKernelTableDefaultsToScalarLift(t *testing.T) {
	kt := NewKernelTable(CPUFlagC)
	in := []int32{1, 2, 3, 4}
	lf := make([]int32, 2)
	hf := make([]int32, 2)
	kt.Lift53(in, lf, hf, 4)

	want := make([]int32, 2)
	wantHF := make([]int32, 2)
	ForwardLift53(in, want, wantHF, 4)
	require.Equal(t, want, lf)
	require.Equal(t, wantHF, hf)
}
