// Package service implements the messaging, presence and notification
// operations on top of the persistence gateway.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
)

var tracer = otel.Tracer("github.com/socialhub/social-platform/internal/service")

// Publisher receives domain events after the write that produced them has
// committed. Delivery is best effort.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *model.Message) error
	PublishNotification(ctx context.Context, n *model.Notification) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishMessage implements Publisher.
func (NopPublisher) PublishMessage(context.Context, *model.Message) error { return nil }

// PublishNotification implements Publisher.
func (NopPublisher) PublishNotification(context.Context, *model.Notification) error { return nil }

// clock is embedded by every service so tests can pin time.
type clock struct {
	nowFn func() time.Time
}

// SetClock replaces the time source.
func (c *clock) SetClock(now func() time.Time) {
	c.nowFn = now
}

// now returns the current time in UTC at the precision the database keeps.
func (c *clock) now() time.Time {
	t := time.Now()
	if c.nowFn != nil {
		t = c.nowFn()
	}
	return t.UTC().Truncate(time.Microsecond)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// requireUser resolves the requester. An empty or unknown id is unauthenticated.
func requireUser(ctx context.Context, users store.UserStore, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	u, err := users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, upstream("load requester", err)
	}
	return u, nil
}

// loadProfiles fetches the profiles of ids, skipping unknown users.
func loadProfiles(ctx context.Context, users store.UserStore, ids []string) (map[string]*model.Profile, error) {
	found, err := users.GetUsers(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]*model.Profile, len(found))
	for id, u := range found {
		profiles[id] = u.Profile()
	}
	return profiles, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
