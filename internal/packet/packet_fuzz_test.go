package packet

import (
	"bytes"
	"testing"

	"github.com/mrjoshuak/jpegxs/internal/bio"
)

// FuzzPackUnpack exercises Pack/Unpack round-trips across the coefficient,
// gtli and coding-method space. A precinct header's per-band method comes
// straight off the wire (spec §4.I), so Unpack must never panic no matter
// what PackPrecinctHeader paired it with; this only checks the
// well-formed-producer path (coeffs derived from b's own GCLI/Significance
// via makeBand), the fuzz corpus for malformed wire bytes is
// FuzzUnpackMalformed below.
func FuzzPackUnpack(f *testing.F) {
	f.Add([]byte{0, 5, 251, 100, 156, 0, 3, 255}, 2, 2, 1, 0, 0)
	f.Add([]byte{10, 236, 30, 216}, 2, 1, 0, 3, 2)
	f.Add([]byte{}, 1, 1, 0, 1, 1)
	f.Add([]byte{255, 255, 255, 255, 0, 0}, 4, 4, 3, 2, 2)

	f.Fuzz(func(t *testing.T, raw []byte, ngIn, ssIn, gtliIn, methodIn, signIn int) {
		if len(raw) == 0 {
			t.Skip()
		}
		ng := 1 + abs(ngIn)%4
		ss := 1 + abs(ssIn)%4
		gtli := abs(gtliIn) % 16
		method := Method(abs(methodIn) % 4)
		signMode := SignMode(abs(signIn) % 3)

		coeffs := make([]int32, len(raw))
		for i, b := range raw {
			v := int32(b) - 128
			coeffs[i] = v
		}

		b := makeBand(ng, ss, gtli, coeffs)

		var buf bytes.Buffer
		w := bio.NewWriter(&buf)
		if err := Pack(w, b, method, signMode); err != nil {
			t.Fatalf("pack: %v", err)
		}
		if err := w.Align(); err != nil {
			t.Fatalf("align: %v", err)
		}

		r := bio.NewReader(&buf)
		got, err := Unpack(r, method, signMode, ng, ss, gtli, len(coeffs), nil)
		if err != nil {
			t.Fatalf("unpack: %v", err)
		}
		if len(got.Coeffs) != len(coeffs) {
			t.Fatalf("got %d coeffs, want %d", len(got.Coeffs), len(coeffs))
		}
		for i, c := range b.Coeffs {
			if got.Coeffs[i] != c {
				t.Errorf("coeff %d: got %d, want %d", i, got.Coeffs[i], c)
			}
		}
	})
}

// FuzzUnpackMalformed feeds Unpack arbitrary bytes under every coding
// method, the way a decoder must tolerate a corrupt or adversarial
// bitstream (spec §6 "corrupted bitstream" error path): the only
// requirement is that it returns an error instead of panicking or hanging.
func FuzzUnpackMalformed(f *testing.F) {
	f.Add([]byte{0, 0, 0, 0}, 0, 0)
	f.Add([]byte{255, 255, 255, 255, 255, 255, 255, 255}, 1, 1)
	f.Add([]byte{1, 2, 3}, 3, 2)

	f.Fuzz(func(t *testing.T, raw []byte, methodIn, signIn int) {
		method := Method(abs(methodIn) % 4)
		signMode := SignMode(abs(signIn) % 3)
		r := bio.NewReader(bytes.NewReader(raw))
		// numCoeffs/ng/ss/gtli are themselves normally read from a
		// precinct header parsed off the same untrusted stream; fix
		// them to small constants here since this target is only
		// responsible for the packet body, not the header framing
		// (FuzzReadHeader in internal/codestream covers that layer).
		_, _ = Unpack(r, method, signMode, 2, 2, 1, 4, nil)
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
