// Package store defines the persistence gateway used by the services.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/socialhub/social-platform/internal/model"
)

var (
	// ErrNotFound is returned when a point lookup matches no row.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when an insert violates a unique key.
	ErrConflict = errors.New("store: unique constraint violated")
)

// UserStore persists users and their presence fields.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUserProfile(ctx context.Context, id string, name *string, username string, image *string) error
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
}

// ConversationStore persists conversations and participant read markers.
type ConversationStore interface {
	// FindConversationByPair returns the conversation with its participants.
	FindConversationByPair(ctx context.Context, pairKey string) (*model.Conversation, error)
	// CreateConversation inserts the conversation and its participants.
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// ListConversations returns the user's conversations with participants,
	// most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	GetParticipant(ctx context.Context, conversationID, userID string) (*model.Participant, error)
	// AdvanceLastRead moves the marker to at when at is later than the stored
	// value and returns the marker in effect afterwards.
	AdvanceLastRead(ctx context.Context, conversationID, userID string, at time.Time) (time.Time, error)
}

// MessageStore persists messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	// ListMessages returns messages oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	LatestMessages(ctx context.Context, conversationIDs []string) (map[string]*model.Message, error)
	GetMessages(ctx context.Context, ids []string) (map[string]*model.Message, error)
	// CountUnreadMessages sums, across the user's conversations, messages from
	// other senders created after the user's read marker.
	CountUnreadMessages(ctx context.Context, userID string) (int64, error)
}

// NotificationStore persists notifications and post previews.
type NotificationStore interface {
	CreateNotifications(ctx context.Context, notifications []model.Notification) error
	// ListNotifications returns the user's notifications, newest first.
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	// MarkNotificationsRead flags ids owned by userID and returns the number changed.
	MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	GetPosts(ctx context.Context, ids []string) (map[string]*model.Post, error)
}

// Store is the full persistence gateway.
type Store interface {
	UserStore
	ConversationStore
	MessageStore
	NotificationStore

	// Tx runs fn in a transaction; fn must only use the Store it is given.
	Tx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
