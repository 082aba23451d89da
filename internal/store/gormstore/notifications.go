package gormstore

import (
	"context"

	"github.com/socialhub/social-platform/internal/model"
)

// CreateNotifications inserts notifications in one statement.
func (s *Store) CreateNotifications(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return translate(s.conn(ctx).Create(&notifications).Error)
}

// ListNotifications loads a user's notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	var notifications []model.Notification
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, translate(err)
	}
	return notifications, nil
}

// MarkNotificationsRead flags the caller's unread notifications among ids.
func (s *Store) MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		UpdateColumn("is_read", true)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

// CountUnreadNotifications counts a user's unread notifications.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}

// GetPosts loads post previews keyed by id.
func (s *Store) GetPosts(ctx context.Context, ids []string) (map[string]*model.Post, error) {
	result := make(map[string]*model.Post, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var posts []model.Post
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, translate(err)
	}
	for i := range posts {
		result[posts[i].ID] = &posts[i]
	}
	return result, nil
}
