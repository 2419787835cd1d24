// Package codestream implements the JPEG XS bitstream marker segments:
// framing, ordering, and the picture-header fields they carry.
package codestream

// Marker codes for JPEG XS codestreams. There is no public, retrievable
// ISO/IEC 21122-1 byte-code table in this tree; the values below are an
// implementation decision (documented in DESIGN.md) shaped after the
// delimiter/length-prefixed marker-segment convention the rest of the
// ISO/IEC 10918 and 15444 family uses.
const (
	// Delimiting markers: no length field follows.
	SOC Marker = 0xFF10 // Start of codestream
	EOC Marker = 0xFF11 // End of codestream

	// Main-header marker segments.
	PIH Marker = 0xFF12 // Picture header
	CDT Marker = 0xFF13 // Component table
	WGT Marker = 0xFF14 // Weight table
	CRG Marker = 0xFF15 // Component registration
	CTS Marker = 0xFF16 // Colour transform specification
	CAP Marker = 0xFF50 // Capabilities

	// Per-slice marker segment.
	SLH Marker = 0xFF20 // Slice header
)

// Marker represents a JPEG XS marker code: a 2-byte, big-endian value
// whose high byte is 0xFF.
type Marker uint16

// String returns the mnemonic for the marker.
func (m Marker) String() string {
	switch m {
	case SOC:
		return "SOC"
	case EOC:
		return "EOC"
	case PIH:
		return "PIH"
	case CDT:
		return "CDT"
	case WGT:
		return "WGT"
	case CRG:
		return "CRG"
	case CTS:
		return "CTS"
	case CAP:
		return "CAP"
	case SLH:
		return "SLH"
	default:
		return "UNKNOWN"
	}
}

// HasLength reports whether the marker segment carries a 2-byte length
// field and payload. SOC and EOC are bare delimiters.
func (m Marker) HasLength() bool {
	return !m.IsDelimiter()
}

// IsDelimiter reports whether the marker is a length-less delimiter.
func (m Marker) IsDelimiter() bool {
	return m == SOC || m == EOC
}
