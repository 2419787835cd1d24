package codestream

import (
	"bytes"
	"testing"

	"github.com/mrjoshuak/jpegxs/internal/bio"
)

// FuzzReadHeader feeds ReadHeader arbitrary byte streams, mirroring the
// decoder's exposure to whatever bytes arrive on SendFrame before any
// validation has happened (spec §6 init/send_frame). ReadHeader must
// either return a header or an error; it must never panic or loop.
func FuzzReadHeader(f *testing.F) {
	h := testHeader()
	var good bytes.Buffer
	if err := WriteHeader(bio.NewWriter(&good), h); err != nil {
		f.Fatal(err)
	}
	f.Add(good.Bytes())
	f.Add(good.Bytes()[:good.Len()-1])
	f.Add(good.Bytes()[:0])
	f.Add([]byte{0xFF, 0x10})
	f.Add([]byte{0xFF, 0x12, 0x00, 0x02})

	f.Fuzz(func(t *testing.T, data []byte) {
		r := bio.NewReader(bytes.NewReader(data))
		got, err := ReadHeader(r)
		if err != nil {
			return
		}
		// A header ReadHeader accepted must also pass its own
		// Validate and re-derive a usable PI config without panicking.
		if verr := got.Validate(); verr != nil {
			t.Fatalf("ReadHeader returned a header that fails Validate: %v", verr)
		}
		_ = got.PIConfig()
	})
}

// FuzzReadHeaderMutated starts from a known-good header and flips bytes,
// the kind of single/few-bit corruption a noisy transport introduces,
// checking the same never-panic contract as FuzzReadHeader.
func FuzzReadHeaderMutated(f *testing.F) {
	h := testHeader()
	var good bytes.Buffer
	if err := WriteHeader(bio.NewWriter(&good), h); err != nil {
		f.Fatal(err)
	}
	base := good.Bytes()
	f.Add(base, 0, byte(0xFF))
	f.Add(base, len(base)/2, byte(0x00))
	f.Add(base, len(base)-1, byte(0x7F))

	f.Fuzz(func(t *testing.T, data []byte, idx int, flip byte) {
		if len(data) == 0 {
			t.Skip()
		}
		mutated := append([]byte(nil), data...)
		i := ((idx % len(mutated)) + len(mutated)) % len(mutated)
		mutated[i] ^= flip

		r := bio.NewReader(bytes.NewReader(mutated))
		got, err := ReadHeader(r)
		if err != nil {
			return
		}
		if verr := got.Validate(); verr != nil {
			t.Fatalf("ReadHeader returned a header that fails Validate: %v", verr)
		}
	})
}
