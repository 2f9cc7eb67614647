// Package wire encodes deployment configurations to and from their compact
// binary transport form. This is part of the Functional Core - all functions
// are pure with no I/O.
//
// Config payload layout (format version 1):
//
//	magic     2 bytes   "SK"
//	version   1 byte
//	flags     1 byte    reserved, must be zero
//	overrides uvarint count, then per name: uvarint length + UTF-8 bytes
//	values    uvarint count, then per entry:
//	          uvarint length + name bytes, 1 tag byte, tag payload
//
// Value tags: null (no payload), string (length-prefixed bytes), int (zigzag
// varint), float (8-byte big-endian IEEE 754), json (length-prefixed
// canonical JSON, object keys sorted).
//
// The override-set is always carried explicitly; it is never inferred from
// value-equals-default comparisons. Every non-opaque option value is present.
// Unrecognized option names fail decoding rather than being dropped. The
// opaque initializer payload travels on its own channel (see opaque.go) with
// an independently versioned header.
package wire

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrMalformedPayload covers framing, structure, and content failures
	// while decoding.
	ErrMalformedPayload = errors.New("malformed deployment payload")

	// ErrPayloadVersion marks a well-framed payload written by an unknown
	// format revision.
	ErrPayloadVersion = errors.New("unsupported payload format version")
)

// CodecError wraps errors with context about which codec operation failed.
type CodecError struct {
	Op      string // "encode", "decode", "encode-opaque", "decode-opaque"
	Message string
	Err     error
}

func (e *CodecError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("wire %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("wire %s failed", e.Op)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// NewCodecError creates a new CodecError.
func NewCodecError(op, message string, err error) *CodecError {
	return &CodecError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func newMalformed(op, message string) *CodecError {
	return NewCodecError(op, message, ErrMalformedPayload)
}
