package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := New("secret-a")
	require.NoError(t, err)

	for _, internal := range []string{
		"pi_0c5a8e2f41b84f6c9d3e7a1b2c3d4e5f",
		"evt_1",
		"a.b:c-d_e",
	} {
		token, err := codec.Encode(internal)
		require.NoError(t, err)
		assert.Regexp(t, TokenPattern, token)

		got, err := codec.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, internal, got)
	}
}

func TestCodec_RejectsBadInternalCursor(t *testing.T) {
	codec, err := New("secret-a")
	require.NoError(t, err)

	_, err = codec.Encode("has space")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = codec.Encode("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCodec_TamperedSignature(t *testing.T) {
	codec, err := New("secret-a")
	require.NoError(t, err)

	token, err := codec.Encode("pi_abc123")
	require.NoError(t, err)

	// Flip the final signature character.
	last := token[len(token)-1]
	flip := byte('A')
	if last == 'A' {
		flip = 'B'
	}
	tampered := token[:len(token)-1] + string(flip)

	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCodec_MalformedTokens(t *testing.T) {
	codec, err := New("secret-a")
	require.NoError(t, err)

	for _, token := range []string{
		"",
		"nodot",
		"one.two.three",
		"!!!.###",
		"eyJ2IjoxfQ", // payload only
	} {
		_, err := codec.Decode(token)
		assert.ErrorIs(t, err, ErrInvalid, token)
	}
}

func TestCodec_SecretRotation(t *testing.T) {
	old, err := New("old-secret")
	require.NoError(t, err)
	token, err := old.Encode("re_42")
	require.NoError(t, err)

	// After rotation the head signs, but the old secret still verifies.
	rotated, err := New("new-secret", "old-secret")
	require.NoError(t, err)

	got, err := rotated.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "re_42", got)

	fresh, err := rotated.Encode("re_42")
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh, "new tokens are signed by the head secret")

	// A codec that never knew either secret rejects both.
	stranger, err := New("unrelated")
	require.NoError(t, err)
	_, err = stranger.Decode(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
	_, err = New("")
	assert.Error(t, err)
}
