package handlers

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/nadmax/fieldops/internal/export"
	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Mailer interface {
	SendReport(ctx context.Context, to string, artifact *export.Artifact) error
}

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromName, fromAddress string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (m *SendGridMailer) SendReport(ctx context.Context, to string, artifact *export.Artifact) error {
	message := buildReportMessage(m.from, to, artifact)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	log.Info().Str("to", to).Int("status", response.StatusCode).Str("file", artifact.Filename).Msg("Report e-mailed")
	return nil
}

func buildReportMessage(from *mail.Email, to string, artifact *export.Artifact) *mail.SGMailV3 {
	subject := "Task report: " + artifact.Filename
	body := "The requested task report is attached as " + artifact.Filename + "."

	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, "<p>"+body+"</p>")

	attachment := mail.NewAttachment()
	attachment.SetContent(base64.StdEncoding.EncodeToString(artifact.Data))
	attachment.SetType(artifact.ContentType)
	attachment.SetFilename(artifact.Filename)
	attachment.SetDisposition("attachment")
	message.AddAttachment(attachment)

	return message
}
