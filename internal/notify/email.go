package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/userdir"
)

// sendFunc posts one message and returns the provider status code and body.
type sendFunc func(message *mail.SGMailV3) (int, string, error)

// EmailSender mails notifications through SendGrid.
type EmailSender struct {
	send      sendFunc
	fromEmail string
	fromName  string
	directory userdir.Directory
}

func NewEmailSender(apiKey, fromEmail, fromName string, directory userdir.Directory) *EmailSender {
	client := sendgrid.NewSendClient(apiKey)
	return &EmailSender{
		send: func(message *mail.SGMailV3) (int, string, error) {
			resp, err := client.Send(message)
			if err != nil {
				return 0, "", err
			}
			return resp.StatusCode, resp.Body, nil
		},
		fromEmail: fromEmail,
		fromName:  fromName,
		directory: directory,
	}
}

func (s *EmailSender) Name() string { return "sendgrid" }

func (s *EmailSender) Send(ctx context.Context, n domain.Notification) error {
	profile, err := s.directory.Lookup(ctx, n.UserID)
	if err != nil {
		return err
	}
	if profile.Email == "" {
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(profile.Name, profile.Email)
	message := mail.NewSingleEmail(from, n.Title, to, n.Message, "")

	logger.ExternalServiceCall("sendgrid", "Send", "user_id", n.UserID, "type", n.Type)
	status, body, err := s.send(message)
	if err == nil && status >= 400 {
		err = fmt.Errorf("sendgrid returned status %d: %s", status, body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "user_id", n.UserID, "status", status)
	return err
}
