package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeInput(t *testing.T) {
	require.Equal(t, "Alex", SanitizeInput("  Alex  "))
	require.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", SanitizeInput("<b>bold</b>"))
	require.Equal(t, "ab", SanitizeInput("a\x00b"))
}

func TestSanitizeEmail(t *testing.T) {
	email, err := SanitizeEmail("  Alex@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "alex@example.com", email)

	_, err = SanitizeEmail("not-an-email")
	require.Error(t, err)
}

func TestSanitizePhone(t *testing.T) {
	phone, err := SanitizePhone(" +61 400 000 001 ")
	require.NoError(t, err)
	require.Equal(t, "+61400000001", phone)

	phone, err = SanitizePhone("(02) 9999-1234")
	require.NoError(t, err)
	require.Equal(t, "0299991234", phone)

	_, err = SanitizePhone("+123")
	require.Error(t, err)
}
