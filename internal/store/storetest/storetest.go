// Package storetest holds the behavior suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
)

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("ConversationPairs", func(t *testing.T) { testConversationPairs(t, newStore(t)) })
	t.Run("ConversationOrdering", func(t *testing.T) { testConversationOrdering(t, newStore(t)) })
	t.Run("ReadMarker", func(t *testing.T) { testReadMarker(t, newStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("UnreadCount", func(t *testing.T) { testUnreadCount(t, newStore(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
}

func baseTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewUser inserts a user with unique identifiers.
func NewUser(t *testing.T, s store.Store) *model.User {
	t.Helper()

	id := uuid.Must(uuid.NewV7()).String()
	u := &model.User{
		ID:         id,
		ExternalID: "ext_" + id,
		Username:   "user_" + id[len(id)-12:],
		LastSeen:   baseTime(),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

// NewConversation inserts a two-party conversation created at at.
func NewConversation(t *testing.T, s store.Store, a, b string, at time.Time) *model.Conversation {
	t.Helper()

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		PairKey:   model.PairKey(a, b),
		CreatedAt: at,
		UpdatedAt: at,
		Participants: []model.Participant{
			{UserID: a, LastReadAt: at, JoinedAt: at},
			{UserID: b, LastReadAt: at, JoinedAt: at},
		},
	}
	if err := s.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return conv
}

// NewMessage inserts a message created at at.
func NewMessage(t *testing.T, s store.Store, conversationID, senderID string, at time.Time) *model.Message {
	t.Helper()

	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        "hello",
		CreatedAt:      at,
	}
	if err := s.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	return msg
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s)

	got, err := s.GetUserByExternalID(ctx, u.ExternalID)
	if err != nil {
		t.Fatalf("GetUserByExternalID: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("expected id %s, got %s", u.ID, got.ID)
	}

	dup := &model.User{ID: uuid.NewString(), ExternalID: u.ExternalID, Username: "other_" + u.Username, LastSeen: baseTime()}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate external id, got %v", err)
	}

	if _, err := s.GetUser(ctx, uuid.NewString()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	at := baseTime().Add(time.Minute)
	if err := s.SetPresence(ctx, u.ID, true, at); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	got, err = s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !got.IsOnline || !got.LastSeen.Equal(at) {
		t.Errorf("expected online at %v, got online=%v at %v", at, got.IsOnline, got.LastSeen)
	}

	if err := s.SetPresence(ctx, uuid.NewString(), true, at); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}

	users, err := s.GetUsers(ctx, []string{u.ID, uuid.NewString()})
	if err != nil {
		t.Fatalf("GetUsers: %v", err)
	}
	if len(users) != 1 || users[u.ID] == nil {
		t.Errorf("expected exactly the known user, got %d entries", len(users))
	}
}

func testConversationPairs(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := NewUser(t, s), NewUser(t, s)
	conv := NewConversation(t, s, a.ID, b.ID, baseTime())

	found, err := s.FindConversationByPair(ctx, model.PairKey(b.ID, a.ID))
	if err != nil {
		t.Fatalf("FindConversationByPair: %v", err)
	}
	if found.ID != conv.ID {
		t.Errorf("expected conversation %s, got %s", conv.ID, found.ID)
	}
	if len(found.Participants) != 2 {
		t.Errorf("expected 2 participants, got %d", len(found.Participants))
	}

	dup := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		PairKey:   model.PairKey(b.ID, a.ID),
		CreatedAt: baseTime(),
		UpdatedAt: baseTime(),
	}
	if err := s.CreateConversation(ctx, dup); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate pair, got %v", err)
	}

	if _, err := s.FindConversationByPair(ctx, model.PairKey(a.ID, uuid.NewString())); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testConversationOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := baseTime()
	me, b, c := NewUser(t, s), NewUser(t, s), NewUser(t, s)

	first := NewConversation(t, s, me.ID, b.ID, base)
	second := NewConversation(t, s, me.ID, c.ID, base.Add(time.Second))

	convs, err := s.ListConversations(ctx, me.ID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != second.ID {
		t.Fatalf("expected newest conversation first, got %+v", convs)
	}

	if err := s.TouchConversation(ctx, first.ID, base.Add(time.Minute)); err != nil {
		t.Fatalf("TouchConversation: %v", err)
	}
	convs, err = s.ListConversations(ctx, me.ID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if convs[0].ID != first.ID {
		t.Errorf("expected touched conversation first, got %s", convs[0].ID)
	}
	for _, conv := range convs {
		if len(conv.Participants) != 2 {
			t.Errorf("expected participants preloaded for %s", conv.ID)
		}
	}

	other, err := s.ListConversations(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no conversations for unknown user, got %d", len(other))
	}
}

func testReadMarker(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := baseTime()
	a, b := NewUser(t, s), NewUser(t, s)
	conv := NewConversation(t, s, a.ID, b.ID, base)

	later := base.Add(time.Minute)
	got, err := s.AdvanceLastRead(ctx, conv.ID, a.ID, later)
	if err != nil {
		t.Fatalf("AdvanceLastRead: %v", err)
	}
	if !got.Equal(later) {
		t.Errorf("expected marker %v, got %v", later, got)
	}

	got, err = s.AdvanceLastRead(ctx, conv.ID, a.ID, base)
	if err != nil {
		t.Fatalf("AdvanceLastRead: %v", err)
	}
	if !got.Equal(later) {
		t.Errorf("marker moved backwards: expected %v, got %v", later, got)
	}

	if _, err := s.AdvanceLastRead(ctx, conv.ID, uuid.NewString(), later); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for non participant, got %v", err)
	}
}

func testMessages(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := baseTime()
	a, b := NewUser(t, s), NewUser(t, s)
	conv := NewConversation(t, s, a.ID, b.ID, base)

	third := NewMessage(t, s, conv.ID, a.ID, base.Add(3*time.Second))
	first := NewMessage(t, s, conv.ID, b.ID, base.Add(1*time.Second))
	NewMessage(t, s, conv.ID, a.ID, base.Add(2*time.Second))

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].ID != first.ID {
		t.Errorf("expected oldest message first")
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Errorf("messages out of order at %d", i)
		}
	}

	latest, err := s.LatestMessages(ctx, []string{conv.ID, uuid.NewString()})
	if err != nil {
		t.Fatalf("LatestMessages: %v", err)
	}
	if len(latest) != 1 || latest[conv.ID].ID != third.ID {
		t.Errorf("expected latest message %s", third.ID)
	}

	byID, err := s.GetMessages(ctx, []string{first.ID})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if byID[first.ID] == nil || byID[first.ID].ConversationID != conv.ID {
		t.Errorf("expected message %s by id", first.ID)
	}
}

func testUnreadCount(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := baseTime()
	p, other, third := NewUser(t, s), NewUser(t, s), NewUser(t, s)
	conv := NewConversation(t, s, p.ID, other.ID, base)
	conv2 := NewConversation(t, s, p.ID, third.ID, base)

	// Two messages before the read marker, three after.
	NewMessage(t, s, conv.ID, other.ID, base.Add(1*time.Second))
	NewMessage(t, s, conv.ID, other.ID, base.Add(2*time.Second))
	if _, err := s.AdvanceLastRead(ctx, conv.ID, p.ID, base.Add(3*time.Second)); err != nil {
		t.Fatalf("AdvanceLastRead: %v", err)
	}
	NewMessage(t, s, conv.ID, other.ID, base.Add(4*time.Second))
	NewMessage(t, s, conv.ID, other.ID, base.Add(5*time.Second))
	NewMessage(t, s, conv.ID, other.ID, base.Add(6*time.Second))
	// Own messages never count.
	NewMessage(t, s, conv.ID, p.ID, base.Add(7*time.Second))
	NewMessage(t, s, conv2.ID, third.ID, base.Add(8*time.Second))

	count, err := s.CountUnreadMessages(ctx, p.ID)
	if err != nil {
		t.Fatalf("CountUnreadMessages: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 unread (3 + 1), got %d", count)
	}
}

func testNotifications(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := baseTime()
	owner, actor := NewUser(t, s), NewUser(t, s)

	var ids []string
	var notifications []model.Notification
	for i := 0; i < 3; i++ {
		n := model.Notification{
			ID:        uuid.Must(uuid.NewV7()).String(),
			UserID:    owner.ID,
			CreatorID: actor.ID,
			Type:      model.NotificationFollow,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		ids = append(ids, n.ID)
		notifications = append(notifications, n)
	}
	foreign := model.Notification{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    actor.ID,
		CreatorID: owner.ID,
		Type:      model.NotificationLike,
		CreatedAt: base,
	}
	notifications = append(notifications, foreign)

	if err := s.CreateNotifications(ctx, notifications); err != nil {
		t.Fatalf("CreateNotifications: %v", err)
	}

	list, err := s.ListNotifications(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 3 || list[0].ID != ids[2] {
		t.Fatalf("expected 3 notifications newest first, got %d", len(list))
	}

	updated, err := s.MarkNotificationsRead(ctx, owner.ID, []string{ids[0], foreign.ID})
	if err != nil {
		t.Fatalf("MarkNotificationsRead: %v", err)
	}
	if updated != 1 {
		t.Errorf("expected 1 updated, got %d", updated)
	}

	foreignList, err := s.ListNotifications(ctx, actor.ID)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(foreignList) != 1 || foreignList[0].Read {
		t.Errorf("foreign notification must stay unread")
	}

	count, err := s.CountUnreadNotifications(ctx, owner.ID)
	if err != nil {
		t.Fatalf("CountUnreadNotifications: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 unread, got %d", count)
	}
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := NewUser(t, s), NewUser(t, s)
	conv := NewConversation(t, s, a.ID, b.ID, baseTime())

	boom := errors.New("boom")
	err := s.Tx(ctx, func(tx store.Store) error {
		NewMessage(t, tx, conv.ID, a.ID, baseTime())
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected tx error to propagate, got %v", err)
	}

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected rollback to discard message, got %d", len(msgs))
	}
}
