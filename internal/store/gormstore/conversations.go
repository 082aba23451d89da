package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
)

func preloadParticipants(db *gorm.DB) *gorm.DB {
	return db.Order("conversation_participants.joined_at ASC, conversation_participants.user_id ASC")
}

// FindConversationByPair loads the conversation for an unordered participant pair.
func (s *Store) FindConversationByPair(ctx context.Context, pairKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.conn(ctx).
		Preload("Participants", preloadParticipants).
		Where("pair_key = ?", pairKey).
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// CreateConversation inserts the conversation together with its participants.
func (s *Store) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	return translate(s.conn(ctx).Omit("Messages").Create(conv).Error)
}

// GetConversation loads a conversation with its participants.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.conn(ctx).
		Preload("Participants", preloadParticipants).
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// ListConversations loads every conversation the user participates in.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := s.conn(ctx).
		Joins("JOIN conversation_participants AS me ON me.conversation_id = conversations.id AND me.user_id = ?", userID).
		Preload("Participants", preloadParticipants).
		Order("conversations.updated_at DESC, conversations.id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, translate(err)
	}
	return convs, nil
}

// TouchConversation sets the conversation's updated timestamp.
func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res := s.conn(ctx).Model(&model.Conversation{}).Where("id = ?", id).UpdateColumn("updated_at", at)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetParticipant loads a single participation row.
func (s *Store) GetParticipant(ctx context.Context, conversationID, userID string) (*model.Participant, error) {
	var p model.Participant
	err := s.conn(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// AdvanceLastRead moves the read marker forward with a conditional update,
// so concurrent acknowledgements never move it back.
func (s *Store) AdvanceLastRead(ctx context.Context, conversationID, userID string, at time.Time) (time.Time, error) {
	res := s.conn(ctx).Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND last_read_at < ?", conversationID, userID, at).
		UpdateColumn("last_read_at", at)
	if res.Error != nil {
		return time.Time{}, translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return at, nil
	}

	p, err := s.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return time.Time{}, err
	}
	return p.LastReadAt, nil
}
