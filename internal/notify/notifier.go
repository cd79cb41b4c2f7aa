// Package notify sends transactional email and SMS through AWS.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"webgen-bot/internal/common/config"
	"webgen-bot/internal/common/errors"
	"webgen-bot/internal/common/logger"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Notifier struct {
	config    config.NotificationConfig
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

func New(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Notifier{
		config:    cfg,
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		logger:    log.With(map[string]interface{}{"component": "notifier"}),
	}, nil
}

// NewWithClients wires explicit clients, used by tests.
func NewWithClients(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{config: cfg, sesClient: sesClient, snsClient: snsClient, logger: log}
}

// SendWelcome emails a new registration. Disabled email config is a no-op.
func (n *Notifier) SendWelcome(ctx context.Context, email, name string) error {
	subject := "¡Bienvenido! Tu cuenta está lista"
	body := fmt.Sprintf(
		"Hola %s,\n\nTu cuenta quedó creada. Escríbenos por WhatsApp cuando quieras crear tu página web.\n\n— El equipo",
		name,
	)
	return n.sendEmail(ctx, "welcome", email, subject, body)
}

// SendPageReady emails the public link of a freshly generated page.
func (n *Notifier) SendPageReady(ctx context.Context, email, name, link string) error {
	subject := "Tu página web está lista 🎉"
	body := fmt.Sprintf(
		"Hola %s,\n\nTu página web ya está publicada:\n%s\n\nResponde por WhatsApp si quieres ajustes.\n\n— El equipo",
		name, link,
	)
	return n.sendEmail(ctx, "page-ready", email, subject, body)
}

// SendSMS publishes a text message. Only used for high-priority notices.
func (n *Notifier) SendSMS(ctx context.Context, phone, message string) error {
	if !n.config.SMS.Enabled || phone == "" {
		return nil
	}
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String("+" + phone),
		Message:     aws.String(message),
	})
	if err != nil {
		n.logger.Error("SMS send failed", map[string]interface{}{
			"phone": phone, "error": err.Error(),
		})
		return errors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}

func (n *Notifier) sendEmail(ctx context.Context, kind, email, subject, body string) error {
	if !n.config.Email.Enabled || email == "" {
		return nil
	}

	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.config.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		n.logger.Error("email send failed", map[string]interface{}{
			"kind": kind, "email": email, "error": err.Error(),
		})
		return errors.NewNotificationSendFailedError(kind, err)
	}

	n.logger.Info("notification sent", map[string]interface{}{
		"kind": kind, "email": email,
	})
	return nil
}
