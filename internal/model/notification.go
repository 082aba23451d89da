package model

import (
	"time"
)

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotificationLike    NotificationType = "LIKE"
	NotificationComment NotificationType = "COMMENT"
	NotificationFollow  NotificationType = "FOLLOW"
	NotificationMessage NotificationType = "MESSAGE"
)

// Valid reports whether t is a known notification kind.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow, NotificationMessage:
		return true
	}
	return false
}

// Notification is a durable record of an event relevant to a user.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string           `gorm:"type:varchar(36);not null;index:idx_notifications_user_created,priority:1" json:"userId"`
	CreatorID string           `gorm:"type:varchar(36);not null" json:"creatorId"`
	Type      NotificationType `gorm:"type:varchar(16);not null" json:"type"`
	MessageID *string          `gorm:"type:varchar(36)" json:"messageId,omitempty"`
	PostID    *string          `gorm:"type:varchar(36)" json:"postId,omitempty"`
	Read      bool             `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt time.Time        `gorm:"not null;index:idx_notifications_user_created,priority:2" json:"createdAt"`

	Creator *Profile        `gorm:"-" json:"creator,omitempty"`
	Message *MessageSummary `gorm:"-" json:"message,omitempty"`
	Post    *PostSummary    `gorm:"-" json:"post,omitempty"`
}

// NotificationRef points at the message or post that triggered a notification.
type NotificationRef struct {
	MessageID string
	PostID    string
}

// MessageSummary is the message preview embedded in a notification.
type MessageSummary struct {
	ID             string `json:"id"`
	Content        string `json:"content"`
	ConversationID string `json:"conversationId"`
}

// Post is the read-only view of a post, used for notification previews.
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID  string    `gorm:"type:varchar(36);not null;index" json:"authorId"`
	Content   *string   `gorm:"type:text" json:"content"`
	Image     *string   `gorm:"type:text" json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostSummary is the post preview embedded in a notification.
type PostSummary struct {
	ID      string  `json:"id"`
	Content *string `json:"content"`
	Image   *string `json:"image"`
}

// MarkNotificationsReadRequest lists the notifications to flag as read.
type MarkNotificationsReadRequest struct {
	IDs []string `json:"ids"`
}

// MarkNotificationsReadResponse reports how many notifications changed.
type MarkNotificationsReadResponse struct {
	Result
	Updated int64 `json:"updated"`
}

// ListNotificationsResponse is the response for listing notifications.
type ListNotificationsResponse struct {
	Result
	Notifications []Notification `json:"notifications"`
}
