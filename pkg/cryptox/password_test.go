package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetPepper("test-pepper")
	os.Exit(m.Run())
}

func TestHashPassword_PHCFormat(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
	require.Contains(t, hash, "m=19456,t=2,p=1")
	require.Len(t, strings.Split(hash, "$"), 6)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	hash1, err := HashPassword("samepassword")
	require.NoError(t, err)
	hash2, err := HashPassword("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "salts should differ")
	require.NoError(t, VerifyPassword("samepassword", hash1))
	require.NoError(t, VerifyPassword("samepassword", hash2))
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-password")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"correct", "correct-password", nil},
		{"case difference", "Correct-Password", ErrPasswordMismatch},
		{"trailing space", "correct-password ", ErrPasswordMismatch},
		{"empty", "", ErrPasswordMismatch},
		{"very long", strings.Repeat("x", 10000), ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPassword(tt.password, hash)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, VerifyPassword("anything", tt.hash), ErrInvalidHash)
		})
	}
}

func TestVerifyPassword_PepperChangeInvalidates(t *testing.T) {
	hash, err := HashPassword("pepper-bound")
	require.NoError(t, err)

	SetPepper("other-pepper")
	t.Cleanup(func() { SetPepper("test-pepper") })

	require.ErrorIs(t, VerifyPassword("pepper-bound", hash), ErrPasswordMismatch)
}

func TestValidatePassword(t *testing.T) {
	require.ErrorIs(t, ValidatePassword("12345"), ErrPasswordTooShort)
	require.NoError(t, ValidatePassword("123456"))
	// Counted in runes, not bytes
	require.ErrorIs(t, ValidatePassword("ééééé"), ErrPasswordTooShort)
}

func TestLoadPepper_GeneratesThenReuses(t *testing.T) {
	t.Cleanup(func() { SetPepper("test-pepper") })

	file := filepath.Join(t.TempDir(), "nested", "pepper")

	require.NoError(t, LoadPepper(file))
	first := Pepper()
	require.NotEmpty(t, first)

	SetPepper("")
	require.NoError(t, LoadPepper(file))
	require.Equal(t, first, Pepper(), "existing pepper file should be reused")

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
