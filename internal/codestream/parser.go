package codestream

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/mrjoshuak/jpegxs/internal/bio"
	"github.com/mrjoshuak/jpegxs/internal/box"
	"github.com/mrjoshuak/jpegxs/internal/mct"
	"github.com/mrjoshuak/jpegxs/internal/nlt"
	"github.com/mrjoshuak/jpegxs/internal/orchestrate"
	"github.com/mrjoshuak/jpegxs/internal/ratecontrol"
	"github.com/mrjoshuak/jpegxs/internal/weight"
)

// WriteSOC writes the bare start-of-codestream delimiter.
func WriteSOC(w *bio.Writer) error {
	return w.WriteU16(uint16(SOC))
}

// WriteEOC writes the bare end-of-codestream delimiter.
func WriteEOC(w *bio.Writer) error {
	return w.WriteU16(uint16(EOC))
}

// writeSegment writes a length-prefixed marker segment. The length field
// counts itself plus payload, matching the rest of the ISO/IEC 10918/15444
// marker-segment convention.
func writeSegment(w *bio.Writer, m Marker, payload []byte) error {
	if err := w.WriteU16(uint16(m)); err != nil {
		return err
	}
	if len(payload) > 0xFFFD {
		return errors.Errorf("codestream: %s payload too large: %d bytes", m, len(payload))
	}
	if err := w.WriteU16(uint16(len(payload) + 2)); err != nil {
		return err
	}
	for _, b := range payload {
		if err := w.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// readSegment reads a marker code and, if it carries a length field, its
// payload. A delimiter (SOC/EOC) returns a nil payload.
func readSegment(r *bio.Reader) (Marker, []byte, error) {
	code, err := r.ReadU16()
	if err != nil {
		return 0, nil, err
	}
	m := Marker(code)
	if m.IsDelimiter() {
		return m, nil, nil
	}
	length, err := r.ReadU16()
	if err != nil {
		return 0, nil, errors.Wrapf(err, "codestream: reading %s length", m)
	}
	if length < 2 {
		return 0, nil, errors.Errorf("codestream: %s length %d too short", m, length)
	}
	payload := make([]byte, length-2)
	for i := range payload {
		b, err := r.ReadByte()
		if err != nil {
			return 0, nil, errors.Wrapf(err, "codestream: reading %s payload", m)
		}
		payload[i] = b
	}
	return m, payload, nil
}

// WriteHeader writes the full main header: SOC, CAP, PIH, CDT, WGT, CRG,
// CTS, in that order. It does not write the coded slice data or EOC; the
// caller writes those around orchestrate's encode output.
func WriteHeader(w *bio.Writer, h Header) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if err := WriteSOC(w); err != nil {
		return err
	}

	capPayload := box.Record{Tag: box.TagCapability, Contents: []byte{1, 0}}.Bytes()
	if err := writeSegment(w, CAP, capPayload); err != nil {
		return err
	}

	pih := make([]byte, 0, 25)
	pih = appendU32(pih, h.Width)
	pih = appendU32(pih, h.Height)
	pih = append(pih, h.Ng, h.Ss, h.Nx, h.Ny, h.Sd)
	pih = appendU32(pih, h.SliceHeight)
	pih = append(pih, uint8(h.Bw), uint8(h.SignMode), uint8(h.ColourTransform), uint8(len(h.Components)))
	pih = appendU32(pih, uint32(h.BudgetBytesPerSlice))
	if err := writeSegment(w, PIH, pih); err != nil {
		return err
	}

	var cdt []byte
	for _, c := range h.Components {
		rec := box.Record{Tag: box.TagComponent, Contents: []byte{c.BitDepth, c.Sx, c.Sy}}
		cdt = append(cdt, rec.Bytes()...)
	}
	if err := writeSegment(w, CDT, cdt); err != nil {
		return err
	}

	var wgt []byte
	for _, c := range h.Classes {
		rec := box.Record{Tag: box.TagBand, Contents: []byte{uint8(c)}}
		wgt = append(wgt, rec.Bytes()...)
	}
	if err := writeSegment(w, WGT, wgt); err != nil {
		return err
	}

	crg := []byte{uint8(h.StarTetrix.CFA), uint8(h.StarTetrix.Cf), uint8(h.StarTetrix.E1), uint8(h.StarTetrix.E2)}
	if err := writeSegment(w, CRG, crg); err != nil {
		return err
	}

	var cts []byte
	for _, p := range h.NLT {
		cts = append(cts, encodeNLTParams(p)...)
	}
	if err := writeSegment(w, CTS, cts); err != nil {
		return err
	}
	return nil
}

// ReadHeader reads the main header written by WriteHeader, starting with
// SOC and ending after the CTS segment.
func ReadHeader(r *bio.Reader) (Header, error) {
	m, _, err := readSegment(r)
	if err != nil {
		return Header{}, err
	}
	if m != SOC {
		return Header{}, errors.Errorf("codestream: expected SOC, got %s", m)
	}

	m, capPayload, err := readSegment(r)
	if err != nil {
		return Header{}, err
	}
	if m != CAP {
		return Header{}, errors.Errorf("codestream: expected CAP, got %s", m)
	}
	if _, err := box.NewReader(byteReader(capPayload)).ReadRecord(); err != nil {
		return Header{}, errors.Wrap(err, "codestream: reading CAP record")
	}

	m, pihPayload, err := readSegment(r)
	if err != nil {
		return Header{}, err
	}
	if m != PIH {
		return Header{}, errors.Errorf("codestream: expected PIH, got %s", m)
	}
	if len(pihPayload) < 25 {
		return Header{}, errors.New("codestream: PIH payload too short")
	}
	h := Header{
		Width:           binary.BigEndian.Uint32(pihPayload[0:4]),
		Height:          binary.BigEndian.Uint32(pihPayload[4:8]),
		Ng:              pihPayload[8],
		Ss:              pihPayload[9],
		Nx:              pihPayload[10],
		Ny:              pihPayload[11],
		Sd:              pihPayload[12],
	}
	h.SliceHeight = binary.BigEndian.Uint32(pihPayload[13:17])
	h.Bw = uint(pihPayload[17])
	h.SignMode = ratecontrol.SignMode(pihPayload[18])
	h.ColourTransform = orchestrate.ColourTransform(pihPayload[19])
	nc := int(pihPayload[20])
	h.BudgetBytesPerSlice = int(binary.BigEndian.Uint32(pihPayload[21:25]))

	m, cdtPayload, err := readSegment(r)
	if err != nil {
		return Header{}, err
	}
	if m != CDT {
		return Header{}, errors.Errorf("codestream: expected CDT, got %s", m)
	}
	cdtReader := box.NewReader(byteReader(cdtPayload))
	for i := 0; i < nc; i++ {
		rec, err := cdtReader.ReadRecord()
		if err != nil {
			return Header{}, errors.Wrap(err, "codestream: reading CDT record")
		}
		if len(rec.Contents) != 3 {
			return Header{}, errors.New("codestream: malformed CDT record")
		}
		h.Components = append(h.Components, ComponentDesc{BitDepth: rec.Contents[0], Sx: rec.Contents[1], Sy: rec.Contents[2]})
	}

	m, wgtPayload, err := readSegment(r)
	if err != nil {
		return Header{}, err
	}
	if m != WGT {
		return Header{}, errors.Errorf("codestream: expected WGT, got %s", m)
	}
	wgtReader := box.NewReader(byteReader(wgtPayload))
	for i := 0; i < nc; i++ {
		rec, err := wgtReader.ReadRecord()
		if err != nil {
			return Header{}, errors.Wrap(err, "codestream: reading WGT record")
		}
		if len(rec.Contents) != 1 {
			return Header{}, errors.New("codestream: malformed WGT record")
		}
		h.Classes = append(h.Classes, weight.Class(rec.Contents[0]))
	}

	m, crgPayload, err := readSegment(r)
	if err != nil {
		return Header{}, err
	}
	if m != CRG {
		return Header{}, errors.Errorf("codestream: expected CRG, got %s", m)
	}
	if len(crgPayload) != 4 {
		return Header{}, errors.New("codestream: malformed CRG payload")
	}
	h.StarTetrix = orchestrate.StarTetrixParams{
		CFA: mct.CFAType(crgPayload[0]),
		Cf:  int(crgPayload[1]),
		E1:  int(crgPayload[2]),
		E2:  int(crgPayload[3]),
	}

	m, ctsPayload, err := readSegment(r)
	if err != nil {
		return Header{}, err
	}
	if m != CTS {
		return Header{}, errors.Errorf("codestream: expected CTS, got %s", m)
	}
	for i := 0; i < nc; i++ {
		off := i * nltParamsSize
		if off+nltParamsSize > len(ctsPayload) {
			return Header{}, errors.New("codestream: malformed CTS payload")
		}
		h.NLT = append(h.NLT, decodeNLTParams(ctsPayload[off:off+nltParamsSize]))
	}

	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

const nltParamsSize = 1 + 8*4 + 1 // type byte, 4 int64 fields, exponent byte

func encodeNLTParams(p nlt.Params) []byte {
	out := make([]byte, nltParamsSize)
	out[0] = uint8(p.Type)
	binary.BigEndian.PutUint64(out[1:9], uint64(p.Alpha))
	binary.BigEndian.PutUint64(out[9:17], uint64(p.Sigma))
	binary.BigEndian.PutUint64(out[17:25], uint64(p.T1))
	binary.BigEndian.PutUint64(out[25:33], uint64(p.T2))
	out[33] = uint8(p.Exp)
	return out
}

func decodeNLTParams(b []byte) nlt.Params {
	return nlt.Params{
		Type:  nlt.Type(b[0]),
		Alpha: int64(binary.BigEndian.Uint64(b[1:9])),
		Sigma: int64(binary.BigEndian.Uint64(b[9:17])),
		T1:    int64(binary.BigEndian.Uint64(b[17:25])),
		T2:    int64(binary.BigEndian.Uint64(b[25:33])),
		Exp:   uint(b[33]),
	}
}

// byteReader adapts a byte slice to io.Reader without pulling in
// bytes.Reader's extra seeking API the record reader does not need.
func byteReader(b []byte) io.Reader {
	return &sliceReader{b: b}
}

type sliceReader struct {
	b []byte
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if len(s.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n, nil
}

func appendU32(b []byte, v uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return append(b, out...)
}
