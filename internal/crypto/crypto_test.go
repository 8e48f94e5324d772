package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err)

	_, err = EncryptKey("not-hex", "pw")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw") // too short
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	t.Run("raw key wins", func(t *testing.T) {
		got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
		require.NoError(t, err)
		assert.Equal(t, testKeyHex, got)
	})

	t.Run("encrypted file", func(t *testing.T) {
		blob, err := EncryptKey(testKeyHex, "pw")
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
		require.NoError(t, err)
		assert.Equal(t, testKeyHex, got)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := LoadKey(KeyConfig{})
		assert.Error(t, err)
	})
}

func TestSignBodyVerifies(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	body := []byte(`{"id":"b1","body":[]}`)
	header, err := s.SignBody(body)
	require.NoError(t, err)
	assert.Contains(t, header, s.Address().Hex()+":")

	ok, err := VerifyBody(body, header)
	require.NoError(t, err)
	assert.True(t, ok)

	// tampered body fails verification
	ok, err = VerifyBody([]byte(`{"id":"b2"}`), header)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("zz")
	assert.Error(t, err)
}
