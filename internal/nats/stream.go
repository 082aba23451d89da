package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/socialhub/social-platform/internal/model"
)

const (
	// StreamName is the name of the social events stream.
	StreamName = "SOCIAL"

	// SubjectPrefix is the prefix for all social event subjects.
	SubjectPrefix = "social"
)

// StreamManager publishes domain events to JetStream.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the social stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Messages and notifications of the social platform",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a message sent in a conversation.
func MessageSubject(conversationID string) string {
	return fmt.Sprintf("%s.conversation.%s.message", SubjectPrefix, conversationID)
}

// NotificationSubject returns the subject for a notification addressed to a user.
func NotificationSubject(userID string, kind model.NotificationType) string {
	return fmt.Sprintf("%s.user.%s.notification.%s", SubjectPrefix, userID, strings.ToLower(string(kind)))
}

// PublishMessage publishes a sent message.
func (m *StreamManager) PublishMessage(ctx context.Context, msg *model.Message) error {
	_, err := m.publish(ctx, MessageSubject(msg.ConversationID), msg)
	return err
}

// PublishNotification publishes a stored notification.
func (m *StreamManager) PublishNotification(ctx context.Context, n *model.Notification) error {
	_, err := m.publish(ctx, NotificationSubject(n.UserID, n.Type), n)
	return err
}

func (m *StreamManager) publish(ctx context.Context, subject string, v any) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	return ack.Sequence, nil
}
