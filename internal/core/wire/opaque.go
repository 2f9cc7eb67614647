package wire

import (
	"github.com/artpar/servekit/internal/core/deploy"
)

// =============================================================================
// Opaque Payload Channel
// =============================================================================

// OpaqueFormatVersion is the revision of the opaque payload envelope. It is
// versioned independently of the config payload format so the two can evolve
// on their own schedules.
const OpaqueFormatVersion byte = 1

var opaqueMagic = [2]byte{'S', 'O'}

// EncodeOpaque serializes an init payload for transport. The payload body is
// carried verbatim; only the format label and framing are interpreted.
func EncodeOpaque(p *deploy.OpaquePayload) ([]byte, error) {
	if p == nil {
		return nil, NewCodecError("encode", "opaque payload is nil", nil)
	}
	if p.Format == "" {
		return nil, NewCodecError("encode", "opaque payload format is empty", nil)
	}

	buf := make([]byte, 0, 8+len(p.Format)+len(p.Data))
	buf = append(buf, opaqueMagic[0], opaqueMagic[1], OpaqueFormatVersion, 0)
	buf = appendBytes(buf, []byte(p.Format))
	buf = appendBytes(buf, p.Data)
	return buf, nil
}

// DecodeOpaque reconstructs an init payload from its transport form.
func DecodeOpaque(payload []byte) (*deploy.OpaquePayload, error) {
	r := &reader{buf: payload}

	if err := r.expectHeader(opaqueMagic, OpaqueFormatVersion); err != nil {
		return nil, err
	}

	format, err := r.readString()
	if err != nil {
		return nil, err
	}
	if format == "" {
		return nil, newMalformed("decode", "opaque payload format is empty")
	}

	data, err := r.readBytes()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, newMalformed("decode", "trailing bytes after payload")
	}

	out := &deploy.OpaquePayload{Format: format}
	if len(data) > 0 {
		out.Data = make([]byte, len(data))
		copy(out.Data, data)
	}
	return out, nil
}
