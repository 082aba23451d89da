// Package memstore implements the persistence gateway in process memory.
// It backs development mode and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
)

type participantKey struct {
	conversationID string
	userID         string
}

// Store keeps every table in maps guarded by a single RWMutex.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users         map[string]*model.User
	conversations map[string]*model.Conversation
	participants  map[participantKey]*model.Participant
	messages      map[string]*model.Message
	notifications map[string]*model.Notification
	posts         map[string]*model.Post
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]*model.User),
		conversations: make(map[string]*model.Conversation),
		participants:  make(map[participantKey]*model.Participant),
		messages:      make(map[string]*model.Message),
		notifications: make(map[string]*model.Notification),
		posts:         make(map[string]*model.Post),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Tx serializes transactions and restores the previous state when fn fails.
// Writes made outside a transaction while it runs are lost on rollback.
func (s *Store) Tx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users         map[string]*model.User
	conversations map[string]*model.Conversation
	participants  map[participantKey]*model.Participant
	messages      map[string]*model.Message
	notifications map[string]*model.Notification
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		users:         make(map[string]*model.User, len(s.users)),
		conversations: make(map[string]*model.Conversation, len(s.conversations)),
		participants:  make(map[participantKey]*model.Participant, len(s.participants)),
		messages:      make(map[string]*model.Message, len(s.messages)),
		notifications: make(map[string]*model.Notification, len(s.notifications)),
	}
	for k, v := range s.users {
		c := *v
		snap.users[k] = &c
	}
	for k, v := range s.conversations {
		c := *v
		snap.conversations[k] = &c
	}
	for k, v := range s.participants {
		c := *v
		snap.participants[k] = &c
	}
	for k, v := range s.messages {
		c := *v
		snap.messages[k] = &c
	}
	for k, v := range s.notifications {
		c := *v
		snap.notifications[k] = &c
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = snap.users
	s.conversations = snap.conversations
	s.participants = snap.participants
	s.messages = snap.messages
	s.notifications = snap.notifications
}

// PutPost seeds a post preview; posts are owned by another service.
func (s *Store) PutPost(post model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = &post
}

// GetUser loads a user by internal id.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

// GetUserByExternalID loads a user by identity-provider subject.
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ExternalID == externalID {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

// GetUsers loads users keyed by id.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			c := *u
			result[id] = &c
		}
	}
	return result, nil
}

// CreateUser inserts a user, enforcing unique external id and username.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return store.ErrConflict
	}
	for _, u := range s.users {
		if u.ExternalID == user.ExternalID || u.Username == user.Username {
			return store.ErrConflict
		}
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

// UpdateUserProfile rewrites the profile fields of a user.
func (s *Store) UpdateUserProfile(ctx context.Context, id string, name *string, username string, image *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, other := range s.users {
		if other.ID != id && other.Username == username {
			return store.ErrConflict
		}
	}
	u.Name = name
	u.Username = username
	u.Image = image
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// SetPresence stores the presence flag and last-seen time.
func (s *Store) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.IsOnline = online
	u.LastSeen = at
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// participantsOf returns copies of a conversation's participants in join order.
// Callers hold the lock.
func (s *Store) participantsOf(conversationID string) []model.Participant {
	var out []model.Participant
	for k, p := range s.participants {
		if k.conversationID == conversationID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (s *Store) conversationCopy(conv *model.Conversation) *model.Conversation {
	c := model.Conversation{
		ID:        conv.ID,
		PairKey:   conv.PairKey,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	c.Participants = s.participantsOf(conv.ID)
	return &c
}

// FindConversationByPair loads the conversation for an unordered participant pair.
func (s *Store) FindConversationByPair(ctx context.Context, pairKey string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conv := range s.conversations {
		if conv.PairKey == pairKey {
			return s.conversationCopy(conv), nil
		}
	}
	return nil, store.ErrNotFound
}

// CreateConversation inserts the conversation and its participants.
func (s *Store) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return store.ErrConflict
	}
	for _, existing := range s.conversations {
		if existing.PairKey == conv.PairKey {
			return store.ErrConflict
		}
	}

	s.conversations[conv.ID] = &model.Conversation{
		ID:        conv.ID,
		PairKey:   conv.PairKey,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	for _, p := range conv.Participants {
		p := p
		p.User = nil
		s.participants[participantKey{conv.ID, p.UserID}] = &p
	}
	return nil
}

// GetConversation loads a conversation with its participants.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.conversationCopy(conv), nil
}

// ListConversations loads every conversation the user participates in.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := []model.Conversation{}
	for k := range s.participants {
		if k.userID != userID {
			continue
		}
		if conv, ok := s.conversations[k.conversationID]; ok {
			convs = append(convs, *s.conversationCopy(conv))
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID > convs[j].ID
	})
	return convs, nil
}

// TouchConversation sets the conversation's updated timestamp.
func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return store.ErrNotFound
	}
	conv.UpdatedAt = at
	return nil
}

// GetParticipant loads a single participation row.
func (s *Store) GetParticipant(ctx context.Context, conversationID, userID string) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[participantKey{conversationID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

// AdvanceLastRead moves the read marker forward only.
func (s *Store) AdvanceLastRead(ctx context.Context, conversationID, userID string, at time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantKey{conversationID, userID}]
	if !ok {
		return time.Time{}, store.ErrNotFound
	}
	if p.LastReadAt.Before(at) {
		p.LastReadAt = at
	}
	return p.LastReadAt, nil
}

// CreateMessage inserts a message.
func (s *Store) CreateMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.ID]; ok {
		return store.ErrConflict
	}
	c := *msg
	c.Sender = nil
	s.messages[msg.ID] = &c
	return nil
}

func sortMessages(msgs []model.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// ListMessages loads a conversation's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := []model.Message{}
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			msgs = append(msgs, *m)
		}
	}
	sortMessages(msgs)
	return msgs, nil
}

// LatestMessages loads the newest message of each conversation.
func (s *Store) LatestMessages(ctx context.Context, conversationIDs []string) (map[string]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		wanted[id] = true
	}

	result := make(map[string]*model.Message, len(conversationIDs))
	for _, m := range s.messages {
		if !wanted[m.ConversationID] {
			continue
		}
		cur, ok := result[m.ConversationID]
		if !ok || m.CreatedAt.After(cur.CreatedAt) || (m.CreatedAt.Equal(cur.CreatedAt) && m.ID > cur.ID) {
			c := *m
			result[m.ConversationID] = &c
		}
	}
	return result, nil
}

// GetMessages loads messages keyed by id.
func (s *Store) GetMessages(ctx context.Context, ids []string) (map[string]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*model.Message, len(ids))
	for _, id := range ids {
		if m, ok := s.messages[id]; ok {
			c := *m
			result[id] = &c
		}
	}
	return result, nil
}

// CountUnreadMessages counts messages from others newer than each read marker.
func (s *Store) CountUnreadMessages(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for k, p := range s.participants {
		if k.userID != userID {
			continue
		}
		for _, m := range s.messages {
			if m.ConversationID == k.conversationID && m.SenderID != userID && m.CreatedAt.After(p.LastReadAt) {
				count++
			}
		}
	}
	return count, nil
}

// CreateNotifications inserts notifications.
func (s *Store) CreateNotifications(ctx context.Context, notifications []model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifications {
		if _, ok := s.notifications[n.ID]; ok {
			return store.ErrConflict
		}
	}
	for _, n := range notifications {
		n := n
		n.Creator, n.Message, n.Post = nil, nil, nil
		s.notifications[n.ID] = &n
	}
	return nil
}

// ListNotifications loads a user's notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Notification{}
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// MarkNotificationsRead flags the caller's unread notifications among ids.
func (s *Store) MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, id := range ids {
		n, ok := s.notifications[id]
		if !ok || n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		updated++
	}
	return updated, nil
}

// CountUnreadNotifications counts a user's unread notifications.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// GetPosts loads post previews keyed by id.
func (s *Store) GetPosts(ctx context.Context, ids []string) (map[string]*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*model.Post, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			c := *p
			result[id] = &c
		}
	}
	return result, nil
}
