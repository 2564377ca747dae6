package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultRoundTrip(t *testing.T) {
	t.Parallel()

	v, err := New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	token, err := v.Encrypt("AIzaSy-personal-key")
	require.NoError(t, err)
	assert.NotEqual(t, "AIzaSy-personal-key", token)

	assert.Equal(t, "AIzaSy-personal-key", v.Decrypt(token))
}

func TestVaultEmptyValue(t *testing.T) {
	t.Parallel()

	v, err := New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	token, err := v.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, v.Decrypt(""))
}

func TestVaultWrongSecretYieldsEmpty(t *testing.T) {
	t.Parallel()

	v1, err := New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	v2, err := New("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	token, err := v1.Encrypt("secret-key")
	require.NoError(t, err)

	// Undecryptable tokens degrade to "no credential", never an error.
	assert.Empty(t, v2.Decrypt(token))
}

func TestVaultGarbageToken(t *testing.T) {
	t.Parallel()

	v, err := New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	assert.Empty(t, v.Decrypt("not-base64!!"))
	assert.Empty(t, v.Decrypt("YWJj")) // too short for a nonce
}

func TestNewRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestMask(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("short"))
	assert.Equal(t, "AIza...wxyz", Mask("AIzaSomeLongKeywxyz"))
}
