package ratecontrol

import (
	"testing"

	"github.com/mrjoshuak/jpegxs/internal/quant"
)

func makeBandLine(gain, priority int, coeffs []int32) BandLine {
	const ng, ss = 4, 2
	line := append([]int32(nil), coeffs...)
	gcli := quant.GCLILine(line, ng)
	return BandLine{
		Gain:         gain,
		Priority:     priority,
		Ng:           ng,
		Ss:           ss,
		GCLI:         gcli,
		Coeffs:       coeffs,
		RawSizeBytes: (len(gcli)*4 + 7) / 8,
	}
}

func TestPacketSizeShrinksAsGtliGrows(t *testing.T) {
	b := makeBandLine(0, 0, []int32{100, -200, 300, -50, 10, -5, 0, 1})
	small, _ := PacketSize(b, 0, MethodVLCNoSig, SignFull)
	big, _ := PacketSize(b, 8, MethodVLCNoSig, SignFull)
	if big >= small {
		t.Fatalf("expected trimming more bitplanes to shrink the packet: gtli=0 -> %d bytes, gtli=8 -> %d bytes", small, big)
	}
}

func TestPacketSizeFallsBackToRaw(t *testing.T) {
	// A line with many high-magnitude, high-variance groups makes the VLC
	// GCLI/significance headers exceed the fixed RAW size.
	coeffs := make([]int32, 64)
	for i := range coeffs {
		if i%2 == 0 {
			coeffs[i] = int32(1 << uint(i%15))
		} else {
			coeffs[i] = -int32(1 << uint((i*3)%15))
		}
	}
	b := makeBandLine(0, 0, coeffs)
	b.RawSizeBytes = 1 // force an unrealistically tiny RAW size so VLC never wins
	_, method := PacketSize(b, 0, MethodVLCSigNoVPred, SignFull)
	if method != MethodRaw {
		t.Fatalf("expected RAW fallback, got %v", method)
	}
}

func TestSearchFindsFittingQR(t *testing.T) {
	bands := []BandLine{
		makeBandLine(0, 0, []int32{1000, -2000, 3000, -500, 10, -5, 0, 1}),
		makeBandLine(1, 0, []int32{50, -60, 70, -80}),
	}
	pb := PrecinctBudget{
		Bands:       bands,
		HeaderBytes: 4,
		BudgetBytes: 20,
		MaxQ:        20,
		MaxR:        4,
		Features:    Features{Significance: true, SignHandling: SignFull},
	}
	res, err := Search(pb, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.TotalBytes > pb.BudgetBytes {
		t.Fatalf("chosen (Q,R)=(%d,%d) produced %d bytes, exceeds budget %d", res.Q, res.R, res.TotalBytes, pb.BudgetBytes)
	}
	if len(res.Gtli) != len(bands) || len(res.Methods) != len(bands) {
		t.Fatalf("expected one gtli/method per band, got %d/%d", len(res.Gtli), len(res.Methods))
	}
}

func TestSearchFailsWhenHeadersAloneExceedBudget(t *testing.T) {
	pb := PrecinctBudget{
		Bands:       []BandLine{makeBandLine(0, 0, []int32{1, 2, 3, 4})},
		HeaderBytes: 100,
		BudgetBytes: 10,
		MaxQ:        10,
		MaxR:        2,
	}
	if _, err := Search(pb, nil); err == nil {
		t.Fatal("expected an error when headers alone exceed the budget")
	}
}

func TestSearchFailsWhenNothingFits(t *testing.T) {
	// A budget too small for even the highest Q (gtli always 0) to fit.
	coeffs := make([]int32, 256)
	for i := range coeffs {
		coeffs[i] = int32(30000 - i)
	}
	pb := PrecinctBudget{
		Bands:       []BandLine{makeBandLine(0, 0, coeffs)},
		HeaderBytes: 0,
		BudgetBytes: 1,
		MaxQ:        0,
		MaxR:        0,
		Features:    Features{SignHandling: SignFull},
	}
	if _, err := Search(pb, nil); err == nil {
		t.Fatal("expected ErrBudgetExceeded")
	}
}

func TestMethodCacheLookupStore(t *testing.T) {
	var c MethodCache
	if _, ok := c.Lookup(3); ok {
		t.Fatal("expected empty cache miss")
	}
	c.Store(MethodCacheEntry{Gtli: 3, Valid: true, DataBits: 42})
	e, ok := c.Lookup(3)
	if !ok || e.DataBits != 42 {
		t.Fatalf("expected cached entry for gtli=3, got %+v ok=%v", e, ok)
	}
	c.Invalidate()
	if _, ok := c.Lookup(3); ok {
		t.Fatal("expected invalidate to clear the cache")
	}
}

func TestHeaderBytes(t *testing.T) {
	got := HeaderBytes(4 /*bandsNumExists*/, 4 /*packetsExist*/, 16 /*bits*/, 2 /*precinctHeaderSizeBytes*/)
	want := ceilDiv(2*8+4*2, 8) + ceilDiv(16*4, 8)
	if got != want {
		t.Fatalf("HeaderBytes = %d, want %d", got, want)
	}
}
