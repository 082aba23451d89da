package gormstore

import (
	"context"
	"time"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
)

// GetUser loads a user by internal id.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.conn(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByExternalID loads a user by identity-provider subject.
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var user model.User
	if err := s.conn(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUsers loads users keyed by id. Missing ids are absent from the map.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]*model.User, error) {
	result := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []model.User
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return translate(s.conn(ctx).Create(user).Error)
}

// UpdateUserProfile rewrites the profile fields of a user.
func (s *Store) UpdateUserProfile(ctx context.Context, id string, name *string, username string, image *string) error {
	res := s.conn(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"name":     name,
		"username": username,
		"image":    image,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetPresence stores the presence flag and last-seen time.
func (s *Store) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	res := s.conn(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"is_online": online,
		"last_seen": at,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
