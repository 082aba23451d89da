package model

import (
	"sort"
	"strings"
	"time"
)

// Conversation represents a two-party messaging thread.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PairKey   string    `gorm:"uniqueIndex;type:varchar(80);not null" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`

	Participants []Participant `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"participants"`
	Messages     []Message     `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages"`
}

// Participant attaches a user to a conversation with a read marker.
// Primary key: (ConversationID, UserID).
type Participant struct {
	ConversationID string    `gorm:"primaryKey;type:varchar(36)" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:varchar(36);index" json:"userId"`
	LastReadAt     time.Time `gorm:"not null" json:"lastReadAt"`
	JoinedAt       time.Time `gorm:"not null" json:"joinedAt"`

	User *Profile `gorm:"-" json:"user,omitempty"`
}

// TableName pins the participant table name.
func (Participant) TableName() string {
	return "conversation_participants"
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// PairKey returns the order-independent key of a two-party conversation.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// CreateConversationRequest is the request to start or reopen a conversation.
type CreateConversationRequest struct {
	ParticipantID string `json:"participantId"`
}

// ConversationResponse wraps a single conversation.
type ConversationResponse struct {
	Result
	Conversation *Conversation `json:"conversation,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Result
	Conversations []Conversation `json:"conversations"`
	CurrentUserID string         `json:"currentUserId,omitempty"`
}
