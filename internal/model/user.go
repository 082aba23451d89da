// Package model defines data structures for the social platform.
package model

import (
	"time"
)

// User is the internal account record mapped from an identity-provider subject.
type User struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExternalID string    `gorm:"uniqueIndex;type:varchar(128);not null" json:"-"`
	Name       *string   `gorm:"type:varchar(128)" json:"name"`
	Username   string    `gorm:"uniqueIndex;type:varchar(64);not null" json:"username"`
	Image      *string   `gorm:"type:text" json:"image"`
	IsOnline   bool      `gorm:"not null;default:false" json:"isOnline"`
	LastSeen   time.Time `gorm:"not null" json:"lastSeen"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Profile is the projection of a user embedded in other payloads.
// Clients bind to these field names.
type Profile struct {
	ID       string    `json:"id"`
	Name     *string   `json:"name"`
	Username string    `json:"username"`
	Image    *string   `json:"image"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// Profile returns the public projection of the user.
func (u *User) Profile() *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Image:    u.Image,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

// PresenceStatus is the presence view of a single user.
type PresenceStatus struct {
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// SyncUserRequest is the request to create or refresh the caller's account.
type SyncUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Username string  `json:"username"`
	Image    *string `json:"image,omitempty"`
}

// SetPresenceRequest is the request to update the caller's presence flag.
type SetPresenceRequest struct {
	IsOnline *bool `json:"isOnline"`
}

// UserResponse wraps a single user profile.
type UserResponse struct {
	Result
	User *Profile `json:"user,omitempty"`
}

// PresenceResponse wraps a presence read.
type PresenceResponse struct {
	Result
	Data *PresenceStatus `json:"data,omitempty"`
}

// PresenceUpdateResponse wraps the caller's profile after a presence write.
type PresenceUpdateResponse struct {
	Result
	Data *Profile `json:"data,omitempty"`
}

// Result is the envelope every API response carries.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CountResponse carries a badge count.
type CountResponse struct {
	Result
	Count int64 `json:"count"`
}
