package jpegxs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every error this package returns, matching spec
// §6/§7's fixed error-kind taxonomy exactly (threading-primitive kinds
// from that list — DestroyThread, DestroySemaphore, ... — have no
// analogue here since spec §1 treats thread-pool plumbing as an external
// collaborator this package never owns).
type ErrorKind int

const (
	ErrKindNone ErrorKind = iota
	ErrKindInvalidAPIVersion
	ErrKindCorruptFrame
	ErrKindInsufficientResources
	ErrKindUndefined
	ErrKindInvalidComponent
	ErrKindBadParameter
	ErrKindEncodeFrame
	ErrKindDecoderInvalidPointer
	ErrKindDecoderInvalidBitstream
	ErrKindDecoderInternal
	ErrKindDecoderBitstreamTooShort
	ErrKindDecoderConfigChange
	ErrKindDecoderEndOfCodestream
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindNone:
		return "None"
	case ErrKindInvalidAPIVersion:
		return "InvalidApiVersion"
	case ErrKindCorruptFrame:
		return "CorruptFrame"
	case ErrKindInsufficientResources:
		return "InsufficientResources"
	case ErrKindInvalidComponent:
		return "InvalidComponent"
	case ErrKindBadParameter:
		return "BadParameter"
	case ErrKindEncodeFrame:
		return "EncodeFrameError"
	case ErrKindDecoderInvalidPointer:
		return "DecoderInvalidPointer"
	case ErrKindDecoderInvalidBitstream:
		return "DecoderInvalidBitstream"
	case ErrKindDecoderInternal:
		return "DecoderInternal"
	case ErrKindDecoderBitstreamTooShort:
		return "DecoderBitstreamTooShort"
	case ErrKindDecoderConfigChange:
		return "DecoderConfigChange"
	case ErrKindDecoderEndOfCodestream:
		return "DecoderEndOfCodestream"
	default:
		return "Undefined"
	}
}

// CodecError pairs an ErrorKind with the underlying cause, so callers can
// both switch on the fixed taxonomy (via Kind) and walk the full wrapped
// chain (via errors.Unwrap/errors.Is) down to, e.g., bio.ErrShortRead.
type CodecError struct {
	Kind ErrorKind
	Err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("jpegxs: %s: %v", e.Kind, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// Kind reports the ErrorKind of err, or ErrKindNone if err is nil, or
// ErrKindUndefined if err was not produced by this package.
func Kind(err error) ErrorKind {
	if err == nil {
		return ErrKindNone
	}
	var ce *CodecError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrKindUndefined
}

func wrapKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &CodecError{Kind: kind, Err: err}
}
