package service

import (
	"context"
	"strings"
	"testing"

	"github.com/socialhub/social-platform/internal/model"
)

func strPtr(s string) *string { return &s }

func TestSyncCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.users.Sync(ctx, "ext-1", &model.SyncUserRequest{Name: strPtr(" Ada "), Username: "ada"})
	if err != nil {
		t.Fatalf("Sync create: %v", err)
	}
	if created.ID == "" || created.Username != "ada" || created.Name == nil || *created.Name != "Ada" {
		t.Errorf("unexpected profile %+v", created)
	}

	id, err := f.users.ResolveExternalID(ctx, "ext-1")
	if err != nil || id != created.ID {
		t.Fatalf("ResolveExternalID = %q, %v; want %q", id, err, created.ID)
	}

	updated, err := f.users.Sync(ctx, "ext-1", &model.SyncUserRequest{Username: "ada_l", Image: strPtr("https://img/ada.png")})
	if err != nil {
		t.Fatalf("Sync update: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("sync must keep the id, got %s want %s", updated.ID, created.ID)
	}
	if updated.Username != "ada_l" || updated.Image == nil || updated.Name != nil {
		t.Errorf("unexpected updated profile %+v", updated)
	}

	got, err := f.users.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Username != "ada_l" {
		t.Errorf("Get username = %q", got.Username)
	}
}

func TestSyncValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.users.Sync(ctx, "ext-1", &model.SyncUserRequest{Username: "taken"}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	tests := []struct {
		name     string
		external string
		req      *model.SyncUserRequest
		want     error
	}{
		{"no subject", "", &model.SyncUserRequest{Username: "x"}, ErrUnauthenticated},
		{"nil request", "ext-2", nil, ErrInvalidInput},
		{"empty username", "ext-2", &model.SyncUserRequest{Username: "  "}, ErrInvalidInput},
		{"username with space", "ext-2", &model.SyncUserRequest{Username: "a b"}, ErrInvalidInput},
		{"long username", "ext-2", &model.SyncUserRequest{Username: strings.Repeat("u", maxUsernameLength+1)}, ErrInvalidInput},
		{"long name", "ext-2", &model.SyncUserRequest{Username: "ok", Name: strPtr(strings.Repeat("n", maxNameLength+1))}, ErrInvalidInput},
		{"taken username", "ext-2", &model.SyncUserRequest{Username: "taken"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Sync(ctx, tt.external, tt.req)
			assertErr(t, err, tt.want)
		})
	}
}

func TestResolveAndGetErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.ResolveExternalID(ctx, "")
	assertErr(t, err, ErrUnauthenticated)
	_, err = f.users.ResolveExternalID(ctx, "unknown")
	assertErr(t, err, ErrNotFound)
	_, err = f.users.Get(ctx, "")
	assertErr(t, err, ErrInvalidInput)
	_, err = f.users.Get(ctx, "missing")
	assertErr(t, err, ErrNotFound)
}
