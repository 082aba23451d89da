package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/pkg/logger"
)

// Polling concerns.
const (
	ConcernConversations = "conversations"
	ConcernMessages      = "messages"
	ConcernPresence      = "presence"
	ConcernBadges        = "badges"
	ConcernHeartbeat     = "heartbeat"
)

const pendingPrefix = "pending-"

// ErrNoConversation is returned by Send when no conversation is selected.
var ErrNoConversation = errors.New("no conversation selected")

// API is the subset of the HTTP client the inbox polls.
type API interface {
	ListConversations(ctx context.Context) ([]model.Conversation, string, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	SendMessage(ctx context.Context, conversationID, content string) (*model.Message, error)
	UnreadMessages(ctx context.Context) (int64, error)
	UnreadNotifications(ctx context.Context) (int64, error)
	SetOnline(ctx context.Context, online bool) error
	Presence(ctx context.Context, userID string) (*model.PresenceStatus, error)
}

// Intervals sets the refresh period of each concern.
type Intervals struct {
	Conversations time.Duration
	Messages      time.Duration
	Presence      time.Duration
	Badges        time.Duration
	Heartbeat     time.Duration
}

// DefaultIntervals returns the standard refresh periods.
func DefaultIntervals() Intervals {
	return Intervals{
		Conversations: 10 * time.Second,
		Messages:      5 * time.Second,
		Presence:      30 * time.Second,
		Badges:        30 * time.Second,
		Heartbeat:     30 * time.Second,
	}
}

// State is the inbox view state.
type State struct {
	CurrentUserID       string
	Conversations       []model.Conversation
	SelectedID          string
	Messages            []model.Message
	UnreadMessages      int64
	UnreadNotifications int64
	Presence            map[string]model.PresenceStatus
	Draft               string
}

// Inbox owns the view state of the messages page and the polls that keep it fresh.
type Inbox struct {
	api       API
	scheduler *Scheduler
	intervals Intervals
	logger    *logger.Logger

	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewInbox creates an unmounted inbox.
func NewInbox(api API, intervals Intervals, log *logger.Logger) *Inbox {
	return &Inbox{
		api:       api,
		scheduler: NewScheduler(log),
		intervals: intervals,
		logger:    log,
		state:     State{Presence: make(map[string]model.PresenceStatus)},
	}
}

// OnChange registers fn to receive a snapshot after every state change.
// It must be set before Mount.
func (i *Inbox) OnChange(fn func(State)) {
	i.mu.Lock()
	i.onChange = fn
	i.mu.Unlock()
}

// Mount starts the conversation list, badge and presence heartbeat polls.
// The heartbeat reports the user online immediately.
func (i *Inbox) Mount() {
	i.scheduler.Schedule(Key{Concern: ConcernConversations}, i.intervals.Conversations, i.refreshConversations)
	i.scheduler.Schedule(Key{Concern: ConcernBadges}, i.intervals.Badges, i.refreshBadges)
	i.scheduler.Schedule(Key{Concern: ConcernHeartbeat}, i.intervals.Heartbeat, i.heartbeat)
}

// Unmount cancels every poll and reports the user offline. The offline
// report is best effort.
func (i *Inbox) Unmount(ctx context.Context) {
	i.scheduler.Stop()
	if err := i.api.SetOnline(ctx, false); err != nil {
		i.logger.Debug("failed to report offline", zap.Error(err))
	}
}

// Select switches the open conversation, replacing its message poll.
// An empty id closes the conversation.
func (i *Inbox) Select(conversationID string) {
	i.scheduler.CancelConcern(ConcernMessages)

	i.update(func(s *State) {
		if s.SelectedID != conversationID {
			s.Messages = nil
		}
		s.SelectedID = conversationID
	})

	if conversationID == "" {
		return
	}
	i.scheduler.Schedule(Key{Concern: ConcernMessages, Subject: conversationID}, i.intervals.Messages,
		func(ctx context.Context) error { return i.refreshMessages(ctx, conversationID) })
}

// WatchPresence starts polling a user's presence.
func (i *Inbox) WatchPresence(userID string) {
	if userID == "" {
		return
	}
	i.scheduler.Schedule(Key{Concern: ConcernPresence, Subject: userID}, i.intervals.Presence,
		func(ctx context.Context) error { return i.refreshPresence(ctx, userID) })
}

// UnwatchPresence stops polling a user's presence and forgets it.
func (i *Inbox) UnwatchPresence(userID string) {
	i.scheduler.Cancel(Key{Concern: ConcernPresence, Subject: userID})
	i.update(func(s *State) { delete(s.Presence, userID) })
}

// SetDraft replaces the compose draft.
func (i *Inbox) SetDraft(text string) {
	i.update(func(s *State) { s.Draft = text })
}

// Send posts text to the selected conversation. The message is shown at once
// and dropped again if the send fails, in which case the draft is restored
// and the error returned.
func (i *Inbox) Send(ctx context.Context, text string) (*model.Message, error) {
	content, err := service.ValidateContent(text)
	if err != nil {
		i.SetDraft(text)
		return nil, err
	}

	pending := model.Message{
		ID:        pendingPrefix + uuid.NewString(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	var conversationID string
	i.update(func(s *State) {
		conversationID = s.SelectedID
		if conversationID == "" {
			s.Draft = text
			return
		}
		pending.ConversationID = conversationID
		pending.SenderID = s.CurrentUserID
		s.Messages = append(s.Messages, pending)
		s.Draft = ""
	})
	if conversationID == "" {
		return nil, ErrNoConversation
	}

	msg, err := i.api.SendMessage(ctx, conversationID, content)
	i.update(func(s *State) {
		s.Messages = removeMessage(s.Messages, pending.ID)
		if err != nil {
			s.Draft = text
			return
		}
		if s.SelectedID == conversationID && !hasMessage(s.Messages, msg.ID) {
			s.Messages = append(s.Messages, *msg)
		}
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Snapshot returns a copy of the current state.
func (i *Inbox) Snapshot() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.clone()
}

// Scheduler exposes the inbox's task scheduler.
func (i *Inbox) Scheduler() *Scheduler {
	return i.scheduler
}

func (i *Inbox) refreshConversations(ctx context.Context) error {
	convs, currentUserID, err := i.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	i.update(func(s *State) {
		s.Conversations = convs
		s.CurrentUserID = currentUserID
	})
	return nil
}

func (i *Inbox) refreshMessages(ctx context.Context, conversationID string) error {
	msgs, err := i.api.ListMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	i.update(func(s *State) {
		if s.SelectedID != conversationID {
			return
		}
		merged := msgs
		for _, m := range s.Messages {
			if strings.HasPrefix(m.ID, pendingPrefix) {
				merged = append(merged, m)
			}
		}
		s.Messages = merged
	})
	return nil
}

func (i *Inbox) refreshBadges(ctx context.Context) error {
	messages, err := i.api.UnreadMessages(ctx)
	if err != nil {
		return err
	}
	notifications, err := i.api.UnreadNotifications(ctx)
	if err != nil {
		return err
	}
	i.update(func(s *State) {
		s.UnreadMessages = messages
		s.UnreadNotifications = notifications
	})
	return nil
}

func (i *Inbox) refreshPresence(ctx context.Context, userID string) error {
	status, err := i.api.Presence(ctx, userID)
	if err != nil {
		return err
	}
	if !i.scheduler.Scheduled(Key{Concern: ConcernPresence, Subject: userID}) {
		return nil
	}
	i.update(func(s *State) { s.Presence[userID] = *status })
	return nil
}

// heartbeat failures are dropped; presence is best effort.
func (i *Inbox) heartbeat(ctx context.Context) error {
	if err := i.api.SetOnline(ctx, true); err != nil {
		i.logger.Debug("presence heartbeat failed", zap.Error(err))
	}
	return nil
}

func (i *Inbox) update(fn func(s *State)) {
	i.mu.Lock()
	fn(&i.state)
	notify := i.onChange
	snapshot := i.state.clone()
	i.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

func (s State) clone() State {
	out := s
	out.Conversations = append([]model.Conversation(nil), s.Conversations...)
	out.Messages = append([]model.Message(nil), s.Messages...)
	out.Presence = make(map[string]model.PresenceStatus, len(s.Presence))
	for k, v := range s.Presence {
		out.Presence[k] = v
	}
	return out
}

func removeMessage(msgs []model.Message, id string) []model.Message {
	out := msgs[:0]
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func hasMessage(msgs []model.Message, id string) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}
