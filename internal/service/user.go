package service

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
	"github.com/socialhub/social-platform/pkg/logger"
)

const (
	maxUsernameLength = 50
	maxNameLength     = 100
)

// UserService maps identity-provider subjects to users and serves profiles.
type UserService struct {
	clock
	store  store.Store
	logger *logger.Logger
}

// NewUserService creates a new user service.
func NewUserService(st store.Store, log *logger.Logger) *UserService {
	return &UserService{store: st, logger: log}
}

// ResolveExternalID returns the internal id for an identity-provider subject.
func (s *UserService) ResolveExternalID(ctx context.Context, externalID string) (string, error) {
	if externalID == "" {
		return "", ErrUnauthenticated
	}
	u, err := s.store.GetUserByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", upstream("resolve external id", err)
	}
	return u.ID, nil
}

// Sync creates the user on first sign-in and refreshes profile fields afterwards.
func (s *UserService) Sync(ctx context.Context, externalID string, req *model.SyncUserRequest) (_ *model.Profile, err error) {
	ctx, span := startSpan(ctx, "UserService.Sync")
	defer func() { endSpan(span, err) }()

	if externalID == "" {
		return nil, ErrUnauthenticated
	}
	username, name, err := validateProfile(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetUserByExternalID(ctx, externalID)
	switch {
	case err == nil:
		if err := s.store.UpdateUserProfile(ctx, existing.ID, name, username, req.Image); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, invalidInput("username %q is taken", username)
			}
			return nil, upstream("update user", err)
		}
		u, err := s.store.GetUser(ctx, existing.ID)
		if err != nil {
			return nil, upstream("reload user", err)
		}
		return u.Profile(), nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, upstream("lookup user", err)
	}

	now := s.now()
	u := &model.User{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ExternalID: externalID,
		Name:       name,
		Username:   username,
		Image:      req.Image,
		LastSeen:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return nil, upstream("create user", err)
		}
		// Either a concurrent sign-in won the insert or the username is taken.
		if again, lookupErr := s.store.GetUserByExternalID(ctx, externalID); lookupErr == nil {
			return again.Profile(), nil
		}
		return nil, invalidInput("username %q is taken", username)
	}

	span.SetAttributes(attribute.String("user.id", u.ID))
	s.logger.Info("user created",
		zap.String("user_id", u.ID),
		zap.String("username", u.Username),
	)
	return u.Profile(), nil
}

// Get returns the profile of a user.
func (s *UserService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, invalidInput("user id is required")
	}
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, upstream("load user", err)
	}
	return u.Profile(), nil
}

func validateProfile(req *model.SyncUserRequest) (string, *string, error) {
	if req == nil {
		return "", nil, invalidInput("request body is required")
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return "", nil, invalidInput("username is required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return "", nil, invalidInput("username exceeds %d characters", maxUsernameLength)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return "", nil, invalidInput("username must not contain spaces")
	}

	var name *string
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if utf8.RuneCountInString(trimmed) > maxNameLength {
			return "", nil, invalidInput("name exceeds %d characters", maxNameLength)
		}
		if trimmed != "" {
			name = &trimmed
		}
	}
	return username, name, nil
}
