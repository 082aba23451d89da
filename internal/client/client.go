// Package client is an HTTP client for the social platform API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/socialhub/social-platform/internal/model"
)

// APIError is a non-success response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client calls the API on behalf of one bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. baseURL includes the /api/v1 prefix.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListConversations returns the caller's conversations and internal user id.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, string, error) {
	var resp model.ListConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Conversations, resp.CurrentUserID, nil
}

// ListMessages returns a conversation's messages and marks them read.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var resp model.ListMessagesResponse
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage posts a message to a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*model.Message, error) {
	var resp model.MessageResponse
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, model.SendMessageRequest{Content: content}, &resp); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// UnreadMessages returns the unread message badge count.
func (c *Client) UnreadMessages(ctx context.Context) (int64, error) {
	var resp model.CountResponse
	if err := c.do(ctx, http.MethodGet, "/messages/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// UnreadNotifications returns the unread notification badge count.
func (c *Client) UnreadNotifications(ctx context.Context) (int64, error) {
	var resp model.CountResponse
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// SetOnline reports the caller's presence.
func (c *Client) SetOnline(ctx context.Context, online bool) error {
	var resp model.PresenceUpdateResponse
	return c.do(ctx, http.MethodPost, "/online-status", model.SetPresenceRequest{IsOnline: &online}, &resp)
}

// Presence returns another user's presence.
func (c *Client) Presence(ctx context.Context, userID string) (*model.PresenceStatus, error) {
	var resp model.PresenceResponse
	if err := c.do(ctx, http.MethodGet, "/online-status?userId="+url.QueryEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope model.Result
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(snippet))
		if json.Unmarshal(snippet, &envelope) == nil && envelope.Error != "" {
			msg = envelope.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
