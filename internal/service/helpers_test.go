package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/socialhub/social-platform/internal/cache"
	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
	"github.com/socialhub/social-platform/internal/store/memstore"
	"github.com/socialhub/social-platform/internal/store/storetest"
	"github.com/socialhub/social-platform/pkg/logger"
)

// fakeClock advances by one millisecond on every reading.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu            sync.Mutex
	messages      []model.Message
	notifications []model.Notification
	err           error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, msg *model.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, *msg)
	return p.err
}

func (p *recordingPublisher) PublishNotification(_ context.Context, n *model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, *n)
	return p.err
}

// mapCache is a Cache without expiry.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

var _ cache.Cache = (*mapCache)(nil)

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.data[k]; ok {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *mapCache) Ping(context.Context) error { return nil }
func (c *mapCache) Close() error               { return nil }

// fixture wires every service to one in-memory store and clock.
type fixture struct {
	store         *memstore.Store
	clock         *fakeClock
	publisher     *recordingPublisher
	cache         *mapCache
	users         *UserService
	conversations *ConversationService
	messages      *MessageService
	notifications *NotificationService
	presence      *PresenceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memstore.New())
}

func newFixtureWithStore(t *testing.T, st *memstore.Store) *fixture {
	t.Helper()
	return buildFixture(t, st, st)
}

// buildFixture lets a test wrap the store handed to the services while
// keeping direct access to the underlying memstore.
func buildFixture(t *testing.T, mem *memstore.Store, st store.Store) *fixture {
	t.Helper()

	log := logger.NewNop()
	clk := newFakeClock()
	pub := &recordingPublisher{}
	c := newMapCache()

	f := &fixture{
		store:         mem,
		clock:         clk,
		publisher:     pub,
		cache:         c,
		users:         NewUserService(st, log),
		conversations: NewConversationService(st, log),
		notifications: NewNotificationService(st, pub, log),
		presence:      NewPresenceService(st, c, time.Minute, log),
	}
	f.messages = NewMessageService(st, f.notifications, pub, log)

	f.users.SetClock(clk.Now)
	f.conversations.SetClock(clk.Now)
	f.notifications.SetClock(clk.Now)
	f.messages.SetClock(clk.Now)
	f.presence.SetClock(clk.Now)
	return f
}

func (f *fixture) newUser(t *testing.T) *model.User {
	t.Helper()
	return storetest.NewUser(t, f.store)
}

func (f *fixture) newConversation(t *testing.T, a, b string) *model.Conversation {
	t.Helper()
	conv, err := f.conversations.Create(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Create conversation: %v", err)
	}
	return conv
}

func (f *fixture) send(t *testing.T, senderID, conversationID, text string) *model.Message {
	t.Helper()
	msg, err := f.messages.Send(context.Background(), senderID, conversationID, text)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	return msg
}

func assertErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected error %v, got %v", want, err)
	}
}
