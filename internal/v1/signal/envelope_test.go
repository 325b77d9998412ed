package signal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Valid(t *testing.T) {
	env, err := Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, TypePing, env.Type)
}

func TestDecode_NotJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"bogus"}`))
	assert.ErrorIs(t, err, ErrUnknownSignalType)
}

func TestEncode_RoundTrip(t *testing.T) {
	raw, err := Encode(TypeJoin, map[string]any{"clientId": "a"})
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeJoin, env.Type)

	desc, err := env.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, "a", string(desc.ClientID))
}

func TestEncodeBare(t *testing.T) {
	raw, err := EncodeBare(TypePing)
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypePing, env.Type)
	assert.Empty(t, env.Data)
}

func TestEnvelope_Message(t *testing.T) {
	raw, err := Encode(TypeMessage, map[string]any{
		"clientId":       "b",
		"targetClientId": "a",
		"sessionId":      "s1",
		"payload":        "hi",
	})
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)

	msg, err := env.Message()
	require.NoError(t, err)
	assert.Equal(t, "a", string(msg.TargetClientID))
	assert.Equal(t, "b", string(msg.ClientID))
	assert.Equal(t, "s1", msg.SessionID)
}

func TestEnvelope_DescriptorMalformed(t *testing.T) {
	env := &Envelope{Type: TypeJoin, Data: []byte(`not json`)}
	_, err := env.Descriptor()
	assert.True(t, errors.Is(err, ErrMalformedFrame))
}
