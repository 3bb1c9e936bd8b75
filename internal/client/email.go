package client

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/influenza/backend/internal/config"
	"github.com/influenza/backend/internal/template"
)

// EmailClient sends transactional mail via Amazon SES. With no from-address
// configured it runs disabled and skips every send, which keeps local
// development working without AWS credentials.
type EmailClient struct {
	client      *sesv2.Client
	fromEmail   string
	fromName    string
	frontendURL string
	enabled     bool
	logger      *zap.Logger
}

func NewEmailClient(ctx context.Context, cfg config.EmailConfig, logger *zap.Logger) (*EmailClient, error) {
	if cfg.FromEmail == "" {
		logger.Info("email client disabled: SES_FROM_EMAIL not configured")
		return &EmailClient{enabled: false, logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &EmailClient{
		client:      sesv2.NewFromConfig(awsCfg),
		fromEmail:   cfg.FromEmail,
		fromName:    cfg.FromName,
		frontendURL: cfg.FrontendURL,
		enabled:     true,
		logger:      logger,
	}, nil
}

func (c *EmailClient) IsEnabled() bool {
	return c.enabled
}

// SendPasswordResetEmail mails the plaintext reset token embedded in a reset
// link. The link expires after one hour, matching the stored token expiry.
func (c *EmailClient) SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error {
	if !c.enabled {
		c.logger.Info("skipping password reset email (client disabled)", zap.String("to", toEmail))
		return nil
	}

	htmlBody, textBody, err := template.RenderPasswordReset(template.PasswordResetData{
		Name:        toName,
		ResetLink:   fmt.Sprintf("%s/reset-password?token=%s", c.frontendURL, resetToken),
		ExpiryHours: 1,
	})
	if err != nil {
		return err
	}

	return c.send(ctx, toEmail, "Reset Your Password - Influenza", htmlBody, textBody)
}

func (c *EmailClient) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := c.fromEmail
	if c.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := c.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	c.logger.Info("email sent", zap.String("to", toEmail), zap.String("subject", subject))
	return nil
}
