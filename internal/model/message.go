package model

import (
	"time"
)

// Message is an immutable entry in a conversation.
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       string    `gorm:"type:varchar(36);not null;index" json:"senderId"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2" json:"createdAt"`

	Sender *Profile `gorm:"-" json:"sender,omitempty"`
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// AcknowledgeReadRequest moves the caller's read marker forward.
// A nil Until means "now".
type AcknowledgeReadRequest struct {
	Until *time.Time `json:"until,omitempty"`
}

// MessageResponse is the response after sending a message.
type MessageResponse struct {
	Result
	Message *Message `json:"message,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Result
	Messages []Message `json:"messages"`
}

// AcknowledgeReadResponse carries the effective read marker.
type AcknowledgeReadResponse struct {
	Result
	LastReadAt time.Time `json:"lastReadAt"`
}
