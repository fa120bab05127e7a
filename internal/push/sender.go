// Package push delivers mobile notifications.
package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrUnregistered is returned when the device token is no longer valid.
var ErrUnregistered = errors.New("push token is no longer registered")

// Message is a single device notification.
type Message struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender defines the interface for sending push notifications.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an FCM sender when a credentials file is configured and a
// logging sender otherwise.
func NewSender(ctx context.Context, credentialsFile string, logger *zap.Logger) (Sender, error) {
	if credentialsFile == "" {
		logger.Info("FIREBASE_CREDENTIALS_FILE not set, push notifications will be logged only")
		return NewLoggingSender(logger), nil
	}
	return NewFCMSender(ctx, credentialsFile, logger)
}

// messenger is the subset of *messaging.Client used by FCMSender.
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender sends notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client messenger
	logger *zap.Logger
}

// NewFCMSender initialises a Firebase app from a service account file.
func NewFCMSender(ctx context.Context, credentialsFile string, logger *zap.Logger) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

// Send delivers msg, mapping an unregistered token to ErrUnregistered.
func (s *FCMSender) Send(ctx context.Context, msg Message) error {
	message := &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{Title: msg.Title, Body: msg.Body},
					Sound: "default",
				},
			},
		},
	}

	id, err := s.client.Send(ctx, message)
	if err != nil {
		if messaging.IsRegistrationTokenNotRegistered(err) {
			return ErrUnregistered
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	s.logger.Debug("push notification sent", zap.String("message_id", id))
	return nil
}

// LoggingSender is a push sender that only logs.
type LoggingSender struct {
	logger *zap.Logger
}

// NewLoggingSender creates a LoggingSender.
func NewLoggingSender(logger *zap.Logger) *LoggingSender {
	return &LoggingSender{logger: logger}
}

func (s *LoggingSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("push notification (not sent)",
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.Int("data_keys", len(msg.Data)),
	)
	return nil
}
