package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
	"github.com/socialhub/social-platform/pkg/logger"
	"github.com/socialhub/social-platform/pkg/metrics"
)

// MaxMessageLength is the longest message body accepted, in characters.
const MaxMessageLength = 10000

// MessageService handles message operations.
type MessageService struct {
	clock
	store         store.Store
	notifications *NotificationService
	publisher     Publisher
	logger        *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(
	st store.Store,
	notifications *NotificationService,
	pub Publisher,
	log *logger.Logger,
) *MessageService {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &MessageService{
		store:         st,
		notifications: notifications,
		publisher:     pub,
		logger:        log,
	}
}

// ValidateContent trims text and checks it is a sendable message body.
func ValidateContent(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", invalidInput("message is not valid UTF-8")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", invalidInput("message is empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return "", invalidInput("message exceeds %d characters", MaxMessageLength)
	}
	return trimmed, nil
}

// Send stores a message from the requester and notifies the other participants.
// The message, the conversation timestamp and the notifications commit together.
func (s *MessageService) Send(ctx context.Context, requesterID, conversationID, text string) (_ *model.Message, err error) {
	ctx, span := startSpan(ctx, "MessageService.Send",
		attribute.String("user.id", requesterID),
		attribute.String("conversation.id", conversationID),
	)
	defer func() { endSpan(span, err) }()

	sender, err := requireUser(ctx, s.store, requesterID)
	if err != nil {
		return nil, err
	}
	content, err := ValidateContent(text)
	if err != nil {
		return nil, err
	}
	conv, err := authorizeConversation(ctx, s.store, requesterID, conversationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		SenderID:       requesterID,
		Content:        content,
		CreatedAt:      now,
	}

	var notifications []model.Notification
	for _, p := range conv.Participants {
		if p.UserID == requesterID {
			continue
		}
		n, err := s.notifications.Build(p.UserID, requesterID, model.NotificationMessage,
			model.NotificationRef{MessageID: msg.ID}, now)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	err = s.store.Tx(ctx, func(tx store.Store) error {
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return err
		}
		if err := tx.TouchConversation(ctx, conv.ID, now); err != nil {
			return err
		}
		return tx.CreateNotifications(ctx, notifications)
	})
	if err != nil {
		return nil, upstream("send message", err)
	}

	metrics.MessagesTotal.Inc()
	s.logger.Debug("message sent",
		zap.String("message_id", msg.ID),
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", requesterID),
	)

	if err := s.publisher.PublishMessage(ctx, msg); err != nil {
		metrics.EventsPublishFailures.WithLabelValues("message").Inc()
		s.logger.Warn("failed to publish message",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
	s.notifications.Publish(ctx, notifications)

	msg.Sender = sender.Profile()
	return msg, nil
}

// List returns the conversation's messages oldest first with sender profiles.
// It does not touch the read marker.
func (s *MessageService) List(ctx context.Context, requesterID, conversationID string) (_ []model.Message, err error) {
	ctx, span := startSpan(ctx, "MessageService.List",
		attribute.String("user.id", requesterID),
		attribute.String("conversation.id", conversationID),
	)
	defer func() { endSpan(span, err) }()

	if _, err := requireUser(ctx, s.store, requesterID); err != nil {
		return nil, err
	}
	conv, err := authorizeConversation(ctx, s.store, requesterID, conversationID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, upstream("list messages", err)
	}
	if len(msgs) == 0 {
		return []model.Message{}, nil
	}

	senderIDs := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		senderIDs = append(senderIDs, p.UserID)
	}
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
	}
	profiles, err := loadProfiles(ctx, s.store, senderIDs)
	if err != nil {
		return nil, upstream("load senders", err)
	}
	for i := range msgs {
		msgs[i].Sender = profiles[msgs[i].SenderID]
	}

	span.SetAttributes(attribute.Int("message.count", len(msgs)))
	return msgs, nil
}

// AcknowledgeRead moves the requester's read marker to upTo. A zero or future
// upTo means now. The marker never moves backwards; the effective value is returned.
func (s *MessageService) AcknowledgeRead(ctx context.Context, requesterID, conversationID string, upTo time.Time) (_ time.Time, err error) {
	ctx, span := startSpan(ctx, "MessageService.AcknowledgeRead",
		attribute.String("user.id", requesterID),
		attribute.String("conversation.id", conversationID),
	)
	defer func() { endSpan(span, err) }()

	if _, err := requireUser(ctx, s.store, requesterID); err != nil {
		return time.Time{}, err
	}
	conv, err := authorizeConversation(ctx, s.store, requesterID, conversationID)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now()
	if upTo.IsZero() || upTo.After(now) {
		upTo = now
	}
	marker, err := s.store.AdvanceLastRead(ctx, conv.ID, requesterID, upTo.UTC())
	if err != nil {
		return time.Time{}, upstream("advance read marker", err)
	}
	return marker, nil
}

// ListAndAcknowledge lists the conversation and then marks it read up to now.
// A failure to move the marker is logged and does not fail the listing.
func (s *MessageService) ListAndAcknowledge(ctx context.Context, requesterID, conversationID string) ([]model.Message, error) {
	msgs, err := s.List(ctx, requesterID, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.AcknowledgeRead(ctx, requesterID, conversationID, time.Time{}); err != nil {
		s.logger.Warn("failed to acknowledge read",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", requesterID),
			zap.Error(err),
		)
	}
	return msgs, nil
}

// CountUnread returns how many messages from other senders the requester has
// not yet read, across all conversations. Failures are logged and reported as zero.
func (s *MessageService) CountUnread(ctx context.Context, requesterID string) int64 {
	if requesterID == "" {
		return 0
	}
	count, err := s.store.CountUnreadMessages(ctx, requesterID)
	if err != nil {
		s.logger.Error("failed to count unread messages",
			zap.String("user_id", requesterID),
			zap.Error(err),
		)
		return 0
	}
	return count
}
