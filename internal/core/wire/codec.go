package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/artpar/servekit/internal/core/deploy"
)

// =============================================================================
// Format Constants
// =============================================================================

// FormatVersion is the config payload format revision. Bump on any layout
// change; decoders reject revisions they do not know.
const FormatVersion byte = 1

var configMagic = [2]byte{'S', 'K'}

const (
	tagNull   byte = 0x00
	tagString byte = 0x01
	tagInt    byte = 0x02
	tagFloat  byte = 0x03
	tagJSON   byte = 0x04
)

// =============================================================================
// Encoding
// =============================================================================

// Encode serializes a config into its binary transport form: the explicit
// override-name list followed by the value of every option except those
// flagged for independent serialization.
func Encode(cfg *deploy.Config) ([]byte, error) {
	if cfg == nil {
		return nil, NewCodecError("encode", "config is nil", nil)
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, configMagic[0], configMagic[1], FormatVersion, 0)

	overrides := cfg.Overrides()
	buf = binary.AppendUvarint(buf, uint64(len(overrides)))
	for _, name := range overrides {
		buf = appendBytes(buf, []byte(name))
	}

	values := cfg.Values()
	descriptors := deploy.Descriptors()
	count := 0
	for _, desc := range descriptors {
		if !desc.IndependentSerialization {
			count++
		}
	}

	buf = binary.AppendUvarint(buf, uint64(count))
	for _, desc := range descriptors {
		if desc.IndependentSerialization {
			continue
		}
		buf = appendBytes(buf, []byte(desc.Name))
		var err error
		buf, err = appendValue(buf, desc.Name, values[desc.Name])
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// appendValue writes one tagged value. Tags are chosen by the concrete value,
// so a null resolved value encodes as null regardless of the option's kind.
func appendValue(buf []byte, name string, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(buf, tagNull), nil
	case string:
		buf = append(buf, tagString)
		return appendBytes(buf, []byte(t)), nil
	case int64:
		buf = append(buf, tagInt)
		return binary.AppendVarint(buf, t), nil
	case float64:
		buf = append(buf, tagFloat)
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(t)), nil
	default:
		// Composite values ride as canonical JSON; encoding/json emits object
		// keys in sorted order, so equal values encode to equal bytes.
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, NewCodecError("encode", fmt.Sprintf("option %q is not serializable", name), err)
		}
		buf = append(buf, tagJSON)
		return appendBytes(buf, raw), nil
	}
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// =============================================================================
// Decoding
// =============================================================================

// Decode reconstructs a config from its binary transport form. Decoding is
// strict: bad framing, unknown format revisions, trailing bytes, and
// unrecognized option names all fail, and the decoded values rerun the full
// capture-time checks and cross-field rules before a config is produced.
func Decode(payload []byte) (*deploy.Config, error) {
	r := &reader{buf: payload}

	if err := r.expectHeader(configMagic, FormatVersion); err != nil {
		return nil, err
	}

	overrideCount, err := r.readCount()
	if err != nil {
		return nil, err
	}
	overrides := make([]string, 0, overrideCount)
	for i := uint64(0); i < overrideCount; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, name)
	}

	valueCount, err := r.readCount()
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, valueCount)
	for i := uint64(0); i < valueCount; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, err
		}
		v, err := r.readValue(name)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}

	if r.remaining() != 0 {
		return nil, newMalformed("decode", "trailing bytes after payload")
	}

	cfg, err := deploy.RestoreConfig(values, overrides)
	if err != nil {
		// A payload that names unknown options or resolves to an invalid
		// configuration is foreign or tampered, never silently accepted.
		return nil, NewCodecError("decode", "payload does not restore to a valid config",
			fmt.Errorf("%w: %w", ErrMalformedPayload, err))
	}
	return cfg, nil
}

func (r *reader) readValue(name string) (any, error) {
	tag, err := r.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNull:
		return nil, nil
	case tagString:
		return r.readString()
	case tagInt:
		return r.readVarint()
	case tagFloat:
		return r.readFloat()
	case tagJSON:
		raw, err := r.readBytes()
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, newMalformed("decode", fmt.Sprintf("option %q carries invalid JSON", name))
		}
		return v, nil
	default:
		return nil, newMalformed("decode", fmt.Sprintf("option %q carries unknown value tag 0x%02x", name, tag))
	}
}

// =============================================================================
// Payload Reader
// =============================================================================

type reader struct {
	buf []byte
	off int
}

func (r *reader) expectHeader(magic [2]byte, version byte) error {
	if len(r.buf)-r.off < 4 {
		return newMalformed("decode", "payload shorter than header")
	}
	if r.buf[r.off] != magic[0] || r.buf[r.off+1] != magic[1] {
		return newMalformed("decode", "bad magic bytes")
	}
	if r.buf[r.off+2] != version {
		return NewCodecError("decode",
			fmt.Sprintf("format version %d, expected %d", r.buf[r.off+2], version),
			ErrPayloadVersion)
	}
	if r.buf[r.off+3] != 0 {
		return newMalformed("decode", "nonzero reserved flags")
	}
	r.off += 4
	return nil
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, newMalformed("decode", "unexpected end of payload")
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, newMalformed("decode", "invalid varint")
	}
	r.off += n
	return v, nil
}

// readCount reads an entry count. Every entry occupies at least one byte, so a
// count beyond the remaining payload is malformed, not an allocation request.
func (r *reader) readCount() (uint64, error) {
	n, err := r.readUvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.remaining()) {
		return 0, newMalformed("decode", "entry count exceeds payload")
	}
	return n, nil
}

func (r *reader) readVarint() (int64, error) {
	v, n := binary.Varint(r.buf[r.off:])
	if n <= 0 {
		return 0, newMalformed("decode", "invalid varint")
	}
	r.off += n
	return v, nil
}

func (r *reader) readBytes() ([]byte, error) {
	n, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.remaining()) {
		return nil, newMalformed("decode", "length prefix exceeds payload")
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *reader) readString() (string, error) {
	b, err := r.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) readFloat() (float64, error) {
	if r.remaining() < 8 {
		return 0, newMalformed("decode", "unexpected end of payload")
	}
	bits := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return math.Float64frombits(bits), nil
}
