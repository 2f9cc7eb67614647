package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/servekit/internal/core/deploy"
)

// =============================================================================
// Opaque Round Trip Tests
// =============================================================================

func TestEncodeDecodeOpaque_RoundTrip(t *testing.T) {
	in := &deploy.OpaquePayload{
		Format: "msgpack",
		Data:   []byte{0x82, 0xa1, 0x61, 0x01, 0xa1, 0x62, 0x02},
	}

	payload, err := EncodeOpaque(in)
	require.NoError(t, err)

	out, err := DecodeOpaque(payload)
	require.NoError(t, err)

	assert.Equal(t, in.Format, out.Format)
	assert.Equal(t, in.Data, out.Data)
}

func TestEncodeDecodeOpaque_EmptyData(t *testing.T) {
	payload, err := EncodeOpaque(&deploy.OpaquePayload{Format: "json"})
	require.NoError(t, err)

	out, err := DecodeOpaque(payload)
	require.NoError(t, err)

	assert.Equal(t, "json", out.Format)
	assert.Empty(t, out.Data)
}

func TestDecodeOpaque_DataDoesNotAliasPayload(t *testing.T) {
	payload, err := EncodeOpaque(&deploy.OpaquePayload{Format: "raw", Data: []byte("abc")})
	require.NoError(t, err)

	out, err := DecodeOpaque(payload)
	require.NoError(t, err)

	for i := range payload {
		payload[i] = 0xff
	}
	assert.Equal(t, []byte("abc"), out.Data)
}

// =============================================================================
// Opaque Error Tests
// =============================================================================

func TestEncodeOpaque_Nil(t *testing.T) {
	_, err := EncodeOpaque(nil)
	assert.Error(t, err)
}

func TestEncodeOpaque_EmptyFormat(t *testing.T) {
	_, err := EncodeOpaque(&deploy.OpaquePayload{Data: []byte("x")})
	assert.Error(t, err)
}

func TestDecodeOpaque_Empty(t *testing.T) {
	_, err := DecodeOpaque(nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeOpaque_ConfigChannelPayload(t *testing.T) {
	// The two channels carry distinct magic bytes; a config payload fed to
	// the opaque decoder is rejected up front.
	_, err := DecodeOpaque(encodeSample(t))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeOpaque_UnsupportedVersion(t *testing.T) {
	payload, err := EncodeOpaque(&deploy.OpaquePayload{Format: "json", Data: []byte("{}")})
	require.NoError(t, err)
	payload[2] = OpaqueFormatVersion + 1

	_, err = DecodeOpaque(payload)
	assert.ErrorIs(t, err, ErrPayloadVersion)
}

func TestDecodeOpaque_Truncated(t *testing.T) {
	payload, err := EncodeOpaque(&deploy.OpaquePayload{Format: "json", Data: []byte(`{"a":1}`)})
	require.NoError(t, err)

	for i := 0; i < len(payload); i++ {
		_, err := DecodeOpaque(payload[:i])
		require.Errorf(t, err, "prefix of %d bytes decoded cleanly", i)
	}
}

func TestDecodeOpaque_TrailingBytes(t *testing.T) {
	payload, err := EncodeOpaque(&deploy.OpaquePayload{Format: "json", Data: []byte("{}")})
	require.NoError(t, err)
	payload = append(payload, 0x00)

	_, err = DecodeOpaque(payload)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeOpaque_EmptyFormat(t *testing.T) {
	buf := []byte{opaqueMagic[0], opaqueMagic[1], OpaqueFormatVersion, 0}
	buf = appendBytes(buf, nil)            // empty format label
	buf = appendBytes(buf, []byte("data")) // body

	_, err := DecodeOpaque(buf)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
