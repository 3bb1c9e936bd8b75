package template

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderPasswordReset(t *testing.T) {
	html, text, err := RenderPasswordReset(PasswordResetData{
		Name:        "alice",
		ResetLink:   "https://app.example.com/reset-password?token=abc123",
		ExpiryHours: 1,
	})
	require.NoError(t, err)

	require.Contains(t, html, "Hello alice,")
	require.Contains(t, html, `href="https://app.example.com/reset-password?token=abc123"`)
	require.Contains(t, html, "expire in 1 hour.")

	require.Contains(t, text, "Hello alice,")
	require.Contains(t, text, "https://app.example.com/reset-password?token=abc123")
	require.Contains(t, text, "expire in 1 hour.")
}

func TestRenderPasswordResetEscapesName(t *testing.T) {
	html, _, err := RenderPasswordReset(PasswordResetData{
		Name:        `<script>alert("x")</script>`,
		ResetLink:   "https://app.example.com/reset-password?token=abc123",
		ExpiryHours: 2,
	})
	require.NoError(t, err)

	require.NotContains(t, html, "<script>")
	require.Contains(t, html, "expire in 2 hours.")
}
