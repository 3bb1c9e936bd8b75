// Package template renders the transactional email bodies sent through SES.
package template

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// PasswordResetData feeds the password reset email templates.
type PasswordResetData struct {
	Name        string
	ResetLink   string
	ExpiryHours int
}

const passwordResetHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1 style="background-color: #4f46e5; color: white; padding: 20px; text-align: center;">Password Reset Request</h1>
		<p>Hello {{.Name}},</p>
		<p>We received a request to reset your password for your Influenza account. Click the button below to reset it:</p>
		<p style="text-align: center;">
			<a href="{{.ResetLink}}" style="display: inline-block; background-color: #4f46e5; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px;">Reset Password</a>
		</p>
		<p>Or copy and paste this link into your browser:</p>
		<p style="word-break: break-all; background-color: #f1f1f1; padding: 10px;">{{.ResetLink}}</p>
		<p><strong>This link will expire in {{.ExpiryHours}} hour{{if ne .ExpiryHours 1}}s{{end}}.</strong></p>
		<p>If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged until you create a new one.</p>
		<p>Thanks,<br>The Influenza Team</p>
	</div>
</body>
</html>
`

const passwordResetText = `Hello {{.Name}},

We received a request to reset your password for your Influenza account.

Reset it here: {{.ResetLink}}

This link will expire in {{.ExpiryHours}} hour{{if ne .ExpiryHours 1}}s{{end}}.

If you didn't request a password reset, you can safely ignore this email.
`

var (
	passwordResetHTMLTmpl = htmltemplate.Must(htmltemplate.New("password-reset").Parse(passwordResetHTML))
	passwordResetTextTmpl = texttemplate.Must(texttemplate.New("password-reset").Parse(passwordResetText))
)

// RenderPasswordReset produces the HTML and plain-text bodies of the password
// reset email. The reset link carries the plaintext token, so the rendered
// output must never be logged.
func RenderPasswordReset(data PasswordResetData) (htmlBody, textBody string, err error) {
	var html bytes.Buffer
	if err := passwordResetHTMLTmpl.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("failed to render password reset html: %w", err)
	}

	var text bytes.Buffer
	if err := passwordResetTextTmpl.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("failed to render password reset text: %w", err)
	}

	return html.String(), text.String(), nil
}
