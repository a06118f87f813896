package cryptox

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/pquerna/otp"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	sixDigits := regexp.MustCompile(`^[0-9]{6}$`)

	seen := make(map[string]struct{})
	for range 200 {
		code, err := GenerateNumericCode(otp.DigitsSix)
		require.NoError(t, err)
		require.Regexp(t, sixDigits, code)
		seen[code] = struct{}{}
	}

	// 200 draws from a million values should almost never collide much.
	require.Greater(t, len(seen), 190)
}

func TestGenerateNumericCode_EightDigits(t *testing.T) {
	code, err := GenerateNumericCode(otp.DigitsEight)
	require.NoError(t, err)
	require.Len(t, code, 8)
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	b, err := GenerateToken(TokenSize256)
	require.NoError(t, err)

	require.Len(t, a, 43)
	require.NotEqual(t, a, b)

	_, err = GenerateToken(0)
	require.Error(t, err)
}

func TestLoadOrCreateSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret")

	first, err := LoadOrCreateSecret(path, TokenSize256)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreateSecret(path, TokenSize256)
	require.NoError(t, err)
	require.Equal(t, first, second, "existing secret must be reused")

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
	_, err = LoadOrCreateSecret(path, TokenSize256)
	require.Error(t, err)
}
