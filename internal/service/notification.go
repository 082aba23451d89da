package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
	"github.com/socialhub/social-platform/pkg/logger"
	"github.com/socialhub/social-platform/pkg/metrics"
)

// NotificationService records and serves notifications.
type NotificationService struct {
	clock
	store     store.Store
	publisher Publisher
	logger    *logger.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(st store.Store, pub Publisher, log *logger.Logger) *NotificationService {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &NotificationService{store: st, publisher: pub, logger: log}
}

// Build validates and assembles a notification without storing it.
func (s *NotificationService) Build(targetUserID, actorID string, kind model.NotificationType, ref model.NotificationRef, at time.Time) (model.Notification, error) {
	if targetUserID == "" {
		return model.Notification{}, invalidInput("target user is required")
	}
	if actorID == "" {
		return model.Notification{}, invalidInput("actor is required")
	}
	if !kind.Valid() {
		return model.Notification{}, invalidInput("unknown notification type %q", kind)
	}

	n := model.Notification{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    targetUserID,
		CreatorID: actorID,
		Type:      kind,
		CreatedAt: at,
	}
	if ref.MessageID != "" {
		id := ref.MessageID
		n.MessageID = &id
	}
	if ref.PostID != "" {
		id := ref.PostID
		n.PostID = &id
	}
	return n, nil
}

// Emit stores one notification for targetUserID and publishes it.
// Duplicates are not collapsed.
func (s *NotificationService) Emit(ctx context.Context, targetUserID, actorID string, kind model.NotificationType, ref model.NotificationRef) (_ *model.Notification, err error) {
	ctx, span := startSpan(ctx, "NotificationService.Emit",
		attribute.String("notification.type", string(kind)),
	)
	defer func() { endSpan(span, err) }()

	n, err := s.Build(targetUserID, actorID, kind, ref, s.now())
	if err != nil {
		return nil, err
	}
	batch := []model.Notification{n}
	if err := s.store.CreateNotifications(ctx, batch); err != nil {
		return nil, upstream("create notification", err)
	}
	s.Publish(ctx, batch)
	return &n, nil
}

// Publish records metrics for committed notifications and publishes them.
func (s *NotificationService) Publish(ctx context.Context, notifications []model.Notification) {
	for i := range notifications {
		n := &notifications[i]
		metrics.NotificationsTotal.WithLabelValues(string(n.Type)).Inc()
		if err := s.publisher.PublishNotification(ctx, n); err != nil {
			metrics.EventsPublishFailures.WithLabelValues("notification").Inc()
			s.logger.Warn("failed to publish notification",
				zap.String("notification_id", n.ID),
				zap.String("user_id", n.UserID),
				zap.Error(err),
			)
		}
	}
}

// MarkRead flags the requester's notifications among ids as read.
// Ids owned by other users or already read are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, requesterID string, ids []string) (_ int64, err error) {
	ctx, span := startSpan(ctx, "NotificationService.MarkRead",
		attribute.String("user.id", requesterID),
	)
	defer func() { endSpan(span, err) }()

	if _, err := requireUser(ctx, s.store, requesterID); err != nil {
		return 0, err
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	updated, err := s.store.MarkNotificationsRead(ctx, requesterID, ids)
	if err != nil {
		return 0, upstream("mark notifications read", err)
	}
	span.SetAttributes(attribute.Int64("notification.updated", updated))
	return updated, nil
}

// List returns the requester's notifications newest first, with the actor
// profile and message or post previews attached where the target still exists.
func (s *NotificationService) List(ctx context.Context, requesterID string) (_ []model.Notification, err error) {
	ctx, span := startSpan(ctx, "NotificationService.List",
		attribute.String("user.id", requesterID),
	)
	defer func() { endSpan(span, err) }()

	if _, err := requireUser(ctx, s.store, requesterID); err != nil {
		return nil, err
	}

	notifications, err := s.store.ListNotifications(ctx, requesterID)
	if err != nil {
		return nil, upstream("list notifications", err)
	}
	if len(notifications) == 0 {
		return []model.Notification{}, nil
	}

	var creatorIDs, messageIDs, postIDs []string
	for _, n := range notifications {
		creatorIDs = append(creatorIDs, n.CreatorID)
		if n.MessageID != nil {
			messageIDs = append(messageIDs, *n.MessageID)
		}
		if n.PostID != nil {
			postIDs = append(postIDs, *n.PostID)
		}
	}

	creators, err := loadProfiles(ctx, s.store, creatorIDs)
	if err != nil {
		return nil, upstream("load creators", err)
	}
	messages, err := s.store.GetMessages(ctx, dedupe(messageIDs))
	if err != nil {
		return nil, upstream("load messages", err)
	}
	posts, err := s.store.GetPosts(ctx, dedupe(postIDs))
	if err != nil {
		return nil, upstream("load posts", err)
	}

	for i := range notifications {
		n := &notifications[i]
		n.Creator = creators[n.CreatorID]
		if n.MessageID != nil {
			if m, ok := messages[*n.MessageID]; ok {
				n.Message = &model.MessageSummary{
					ID:             m.ID,
					Content:        m.Content,
					ConversationID: m.ConversationID,
				}
			}
		}
		if n.PostID != nil {
			if p, ok := posts[*n.PostID]; ok {
				n.Post = &model.PostSummary{
					ID:      p.ID,
					Content: p.Content,
					Image:   p.Image,
				}
			}
		}
	}

	return notifications, nil
}

// CountUnread returns the requester's unread notification count.
// Failures are logged and reported as zero.
func (s *NotificationService) CountUnread(ctx context.Context, requesterID string) int64 {
	if requesterID == "" {
		return 0
	}
	count, err := s.store.CountUnreadNotifications(ctx, requesterID)
	if err != nil {
		s.logger.Error("failed to count unread notifications",
			zap.String("user_id", requesterID),
			zap.Error(err),
		)
		return 0
	}
	return count
}
