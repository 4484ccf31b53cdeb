package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecretBox(t *testing.T) {
	rawKey := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"base64 32-byte key", rawKey, nil},
		{"passphrase", "correct horse battery staple", nil},
		{"base64 of wrong length is a passphrase", base64.StdEncoding.EncodeToString([]byte("short")), nil},
		{"empty key", "", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := NewSecretBox(tt.key)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, box)
		})
	}
}

func TestSealOpen(t *testing.T) {
	box, err := NewSecretBox("passphrase")
	require.NoError(t, err)

	sealed, err := box.Seal("s3cret!")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "s3cret!")

	again, err := box.Seal("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "each seal uses a fresh nonce")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cret!", plain)

	plain, err = box.Open("not-sealed")
	require.NoError(t, err)
	assert.Equal(t, "not-sealed", plain)
}

func TestOpen_Failures(t *testing.T) {
	box, err := NewSecretBox("passphrase")
	require.NoError(t, err)
	other, err := NewSecretBox("another passphrase")
	require.NoError(t, err)

	sealed, err := box.Seal("s3cret!")
	require.NoError(t, err)

	tampered := []byte(sealed)
	tampered[len(SealedPrefix)+20] ^= 0x01

	tests := []struct {
		name  string
		box   *SecretBox
		value string
		want  string
	}{
		{"wrong key", other, sealed, "authentication failed"},
		{"not base64", box, SealedPrefix + "!!!", "base64 decode failed"},
		{"too short", box, SealedPrefix + base64.StdEncoding.EncodeToString([]byte("abc")), "too short"},
		{"tampered", box, string(tampered), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.box.Open(tt.value)
			require.ErrorIs(t, err, ErrOpenFailed)
			if tt.want != "" {
				assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
			}
		})
	}
}

func TestOpenAll(t *testing.T) {
	box, err := NewSecretBox("passphrase")
	require.NoError(t, err)
	sealed, err := box.Seal("pw")
	require.NoError(t, err)

	password, dsn := sealed, "postgres://plain"
	require.NoError(t, OpenAll("passphrase", &password, &dsn, nil))
	assert.Equal(t, "pw", password)
	assert.Equal(t, "postgres://plain", dsn)

	plain := "already plain"
	require.NoError(t, OpenAll("", &plain), "no key needed without sealed values")

	stillSealed := sealed
	require.ErrorIs(t, OpenAll("", &stillSealed), ErrInvalidKey)
}
