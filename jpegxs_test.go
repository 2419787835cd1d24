package jpegxs

import (
	"context"
	"testing"

	"github.com/mrjoshuak/jpegxs/internal/nlt"
	"github.com/mrjoshuak/jpegxs/internal/orchestrate"
	"github.com/mrjoshuak/jpegxs/internal/quant"
	"github.com/mrjoshuak/jpegxs/internal/ratecontrol"
)

func testEncodeConfig(format ColorFormat) Config {
	return Config{
		Width: 8, Height: 4,
		ColorFormat: format,
		Ng:          4, Ss: 4,
		Nx: 1, Ny: 1, Sd: 0,
		Bw:          8,
		SliceHeight: 4,
		NLT:         []nlt.Params{{Type: nlt.Linear}},
		ColourTransform: orchestrate.ColourNone,
		SignMode:        ratecontrol.SignFull,
		Features:        ratecontrol.Features{Significance: true, SignHandling: ratecontrol.SignFull},
		DequantMode:     quant.Uniform,
		BudgetBytesPerSlice: 1 << 20,
		Mode:                orchestrate.CPUThroughput,
		Concurrency:         2,
	}
}

func testPlane(w, h int, seed int32) []int32 {
	out := make([]int32, w*h)
	for i := range out {
		out[i] = (int32(i)*37 + seed) % 256
	}
	return out
}

func TestEncodeDecodeRoundtripGray(t *testing.T) {
	cfg := testEncodeConfig(ColorGray)
	plane := testPlane(8, 4, 11)

	data, err := EncodeFrame(cfg, Frame{Planes: [][]int32{plane}})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeFrame produced no bytes")
	}

	out, err := DecodeFrame(APIVersionMajor, APIVersionMinor, DecoderConfig{}, data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(out.Planes) != 1 {
		t.Fatalf("expected 1 component, got %d", len(out.Planes))
	}
	if len(out.Planes[0]) != len(plane) {
		t.Fatalf("expected %d samples, got %d", len(plane), len(out.Planes[0]))
	}
	for i, want := range plane {
		if got := out.Planes[0][i]; got != want {
			t.Fatalf("sample %d: got %d, want %d", i, got, want)
		}
	}
}

func TestEncodeDecodeRoundtripPackedRGB(t *testing.T) {
	cfg := testEncodeConfig(ColorPackedYUV444OrRGB)
	cfg.NLT = []nlt.Params{{Type: nlt.Linear}}
	planes := [][]int32{testPlane(8, 4, 3), testPlane(8, 4, 5), testPlane(8, 4, 7)}
	packed := interleave(planes, 8, 4)

	data, err := EncodeFrame(cfg, Frame{Planes: [][]int32{packed}})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	out, err := DecodeFrame(APIVersionMajor, APIVersionMinor, DecoderConfig{Packed: true}, data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(out.Planes) != 1 {
		t.Fatalf("expected 1 packed plane, got %d", len(out.Planes))
	}
	if len(out.Planes[0]) != len(packed) {
		t.Fatalf("expected %d samples, got %d", len(packed), len(out.Planes[0]))
	}
	for i, want := range packed {
		if got := out.Planes[0][i]; got != want {
			t.Fatalf("sample %d: got %d, want %d", i, got, want)
		}
	}
}

func TestOpenDecoderRejectsUnsupportedAPIVersion(t *testing.T) {
	_, err := OpenDecoder(APIVersionMajor+1, 0, DecoderConfig{})
	if Kind(err) != ErrKindInvalidAPIVersion {
		t.Fatalf("Kind(err) = %v, want ErrKindInvalidAPIVersion", Kind(err))
	}
}

func TestDecodeFrameRejectsTruncatedBitstream(t *testing.T) {
	cfg := testEncodeConfig(ColorGray)
	plane := testPlane(8, 4, 11)
	data, err := EncodeFrame(cfg, Frame{Planes: [][]int32{plane}})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	if len(data) < 16 {
		t.Fatalf("encoded frame too small to usefully truncate: %d bytes", len(data))
	}
	_, err = DecodeFrame(APIVersionMajor, APIVersionMinor, DecoderConfig{}, data[:10])
	if err == nil {
		t.Fatal("expected an error decoding a truncated bitstream")
	}
	if Kind(err) != ErrKindDecoderBitstreamTooShort {
		t.Fatalf("Kind(err) = %v, want ErrKindDecoderBitstreamTooShort", Kind(err))
	}
}

func TestEncoderSendGetMultipleFrames(t *testing.T) {
	cfg := testEncodeConfig(ColorGray)
	enc, err := OpenEncoder(cfg)
	if err != nil {
		t.Fatalf("OpenEncoder: %v", err)
	}
	defer enc.Close()

	ctx := context.Background()
	plane1 := testPlane(8, 4, 1)
	plane2 := testPlane(8, 4, 2)
	if err := enc.SendFrame(ctx, Frame{Planes: [][]int32{plane1}}); err != nil {
		t.Fatalf("SendFrame 1: %v", err)
	}
	if err := enc.SendFrame(ctx, Frame{Planes: [][]int32{plane2}}); err != nil {
		t.Fatalf("SendFrame 2: %v", err)
	}

	first, err := enc.GetFrame(ctx)
	if err != nil {
		t.Fatalf("GetFrame 1: %v", err)
	}
	second, err := enc.GetFrame(ctx)
	if err != nil {
		t.Fatalf("GetFrame 2: %v", err)
	}
	if len(first) == 0 || len(second) == 0 {
		t.Fatal("expected non-empty bitstreams for both frames")
	}

	dec, err := OpenDecoder(APIVersionMajor, APIVersionMinor, DecoderConfig{})
	if err != nil {
		t.Fatalf("OpenDecoder: %v", err)
	}
	defer dec.Close()
	if err := dec.SendFrame(ctx, first); err != nil {
		t.Fatalf("decoder SendFrame 1: %v", err)
	}
	out1, err := dec.GetFrame(ctx)
	if err != nil {
		t.Fatalf("decoder GetFrame 1: %v", err)
	}
	for i, want := range plane1 {
		if got := out1.Planes[0][i]; got != want {
			t.Fatalf("frame 1 sample %d: got %d, want %d", i, got, want)
		}
	}
}

func TestProxyModeDecodesHalfResolution(t *testing.T) {
	cfg := testEncodeConfig(ColorGray)
	cfg.Width, cfg.Height = 16, 8
	cfg.Nx, cfg.Ny = 2, 1
	cfg.SliceHeight = 8
	plane := testPlane(16, 8, 9)

	data, err := EncodeFrame(cfg, Frame{Planes: [][]int32{plane}})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	out, err := DecodeFrame(APIVersionMajor, APIVersionMinor, DecoderConfig{Proxy: ProxyHalf}, data)
	if err != nil {
		t.Fatalf("DecodeFrame (proxy half): %v", err)
	}
	if got, want := len(out.Planes[0]), 8*4; got != want {
		t.Fatalf("proxy-half plane has %d samples, want %d", got, want)
	}
}
