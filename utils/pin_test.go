package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateLeadPIN(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		pin, err := GenerateLeadPIN()
		require.NoError(t, err)
		require.Regexp(t, pattern, pin)
		seen[pin] = true
	}
	// 200 draws from a million-value space collide occasionally but can
	// never collapse to a handful of values.
	require.Greater(t, len(seen), 150)
}

func TestIsValidPIN(t *testing.T) {
	require.True(t, IsValidPIN("000000"))
	require.True(t, IsValidPIN("123456"))

	require.False(t, IsValidPIN(""))
	require.False(t, IsValidPIN("12345"))
	require.False(t, IsValidPIN("1234567"))
	require.False(t, IsValidPIN("12345a"))
	require.False(t, IsValidPIN("12 456"))
}

func TestGenerateLinkCode(t *testing.T) {
	pattern := regexp.MustCompile(`^REF-[A-Z0-9]{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateLinkCode()
		require.NoError(t, err)
		require.Regexp(t, pattern, code)
	}
}
