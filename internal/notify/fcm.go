package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/userdir"
)

type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender pushes notifications to the device registered by the user.
type FCMSender struct {
	client    messenger
	directory userdir.Directory
}

func NewFCMSender(ctx context.Context, credentialsFile string, directory userdir.Directory) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FCMSender{client: client, directory: directory}, nil
}

func (s *FCMSender) Name() string { return "fcm" }

func (s *FCMSender) Send(ctx context.Context, n domain.Notification) error {
	profile, err := s.directory.Lookup(ctx, n.UserID)
	if err != nil {
		return err
	}
	if profile.FCMToken == "" {
		return nil
	}

	data := map[string]string{"type": string(n.Type)}
	for k, v := range n.Attributes {
		data[k] = v
	}
	logger.ExternalServiceCall("fcm", "Send", "user_id", n.UserID, "type", n.Type)
	_, err = s.client.Send(ctx, &messaging.Message{
		Token: profile.FCMToken,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: data,
	})
	logger.ExternalServiceResult("fcm", "Send", err, "user_id", n.UserID)
	if messaging.IsUnregistered(err) {
		// The device is gone; nothing to retry.
		return nil
	}
	return err
}
