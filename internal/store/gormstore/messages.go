package gormstore

import (
	"context"

	"github.com/socialhub/social-platform/internal/model"
)

// CreateMessage inserts a message.
func (s *Store) CreateMessage(ctx context.Context, msg *model.Message) error {
	return translate(s.conn(ctx).Create(msg).Error)
}

// ListMessages loads a conversation's messages oldest first. Ties on the
// timestamp fall back to id order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	err := s.conn(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, translate(err)
	}
	return msgs, nil
}

// LatestMessages loads the newest message of each conversation.
func (s *Store) LatestMessages(ctx context.Context, conversationIDs []string) (map[string]*model.Message, error) {
	result := make(map[string]*model.Message, len(conversationIDs))
	for _, id := range conversationIDs {
		var msgs []model.Message
		err := s.conn(ctx).
			Where("conversation_id = ?", id).
			Order("created_at DESC, id DESC").
			Limit(1).
			Find(&msgs).Error
		if err != nil {
			return nil, translate(err)
		}
		if len(msgs) > 0 {
			result[id] = &msgs[0]
		}
	}
	return result, nil
}

// GetMessages loads messages keyed by id.
func (s *Store) GetMessages(ctx context.Context, ids []string) (map[string]*model.Message, error) {
	result := make(map[string]*model.Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var msgs []model.Message
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, translate(err)
	}
	for i := range msgs {
		result[msgs[i].ID] = &msgs[i]
	}
	return result, nil
}

// CountUnreadMessages counts messages from others newer than each read marker.
func (s *Store) CountUnreadMessages(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.conn(ctx).
		Table("messages AS m").
		Joins("JOIN conversation_participants AS p ON p.conversation_id = m.conversation_id").
		Where("p.user_id = ? AND m.sender_id <> ? AND m.created_at > p.last_read_at", userID, userID).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}
