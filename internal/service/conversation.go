package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/store"
	"github.com/socialhub/social-platform/pkg/logger"
	"github.com/socialhub/social-platform/pkg/metrics"
)

// ConversationService handles conversation operations.
type ConversationService struct {
	clock
	store  store.Store
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{store: st, logger: log}
}

// Create returns the conversation between the requester and otherUserID,
// creating it when the pair has none yet.
func (s *ConversationService) Create(ctx context.Context, requesterID, otherUserID string) (_ *model.Conversation, err error) {
	ctx, span := startSpan(ctx, "ConversationService.Create",
		attribute.String("user.id", requesterID),
	)
	defer func() { endSpan(span, err) }()

	if _, err := requireUser(ctx, s.store, requesterID); err != nil {
		return nil, err
	}
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" {
		return nil, invalidInput("participant id is required")
	}
	if otherUserID == requesterID {
		return nil, invalidInput("cannot start a conversation with yourself")
	}
	if _, err := s.store.GetUser(ctx, otherUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, upstream("load participant", err)
	}

	pairKey := model.PairKey(requesterID, otherUserID)
	conv, err := s.store.FindConversationByPair(ctx, pairKey)
	switch {
	case err == nil:
		return s.view(ctx, conv)
	case !errors.Is(err, store.ErrNotFound):
		return nil, upstream("find conversation", err)
	}

	now := s.now()
	conv = &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		PairKey:   pairKey,
		CreatedAt: now,
		UpdatedAt: now,
		Participants: []model.Participant{
			{UserID: requesterID, LastReadAt: now, JoinedAt: now},
			{UserID: otherUserID, LastReadAt: now, JoinedAt: now},
		},
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return nil, upstream("create conversation", err)
		}
		// A concurrent request created the pair first.
		existing, findErr := s.store.FindConversationByPair(ctx, pairKey)
		if findErr != nil {
			return nil, upstream("find conversation after conflict", findErr)
		}
		return s.view(ctx, existing)
	}

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", requesterID),
	)

	return s.view(ctx, conv)
}

// List returns the requester's conversations, most recently active first,
// each with participant profiles and its latest message.
func (s *ConversationService) List(ctx context.Context, requesterID string) (_ []model.Conversation, err error) {
	ctx, span := startSpan(ctx, "ConversationService.List",
		attribute.String("user.id", requesterID),
	)
	defer func() { endSpan(span, err) }()

	if _, err := requireUser(ctx, s.store, requesterID); err != nil {
		return nil, err
	}

	convs, err := s.store.ListConversations(ctx, requesterID)
	if err != nil {
		return nil, upstream("list conversations", err)
	}
	if len(convs) == 0 {
		return []model.Conversation{}, nil
	}

	ids := make([]string, len(convs))
	var userIDs []string
	for i := range convs {
		ids[i] = convs[i].ID
		for _, p := range convs[i].Participants {
			userIDs = append(userIDs, p.UserID)
		}
	}

	latest, err := s.store.LatestMessages(ctx, ids)
	if err != nil {
		return nil, upstream("load latest messages", err)
	}
	profiles, err := loadProfiles(ctx, s.store, userIDs)
	if err != nil {
		return nil, upstream("load profiles", err)
	}

	for i := range convs {
		attachParticipants(&convs[i], profiles)
		convs[i].Messages = []model.Message{}
		if msg, ok := latest[convs[i].ID]; ok {
			m := *msg
			m.Sender = profiles[m.SenderID]
			convs[i].Messages = append(convs[i].Messages, m)
		}
	}

	span.SetAttributes(attribute.Int("conversation.count", len(convs)))
	return convs, nil
}

// Get returns a single conversation the requester participates in.
func (s *ConversationService) Get(ctx context.Context, requesterID, conversationID string) (_ *model.Conversation, err error) {
	ctx, span := startSpan(ctx, "ConversationService.Get",
		attribute.String("user.id", requesterID),
		attribute.String("conversation.id", conversationID),
	)
	defer func() { endSpan(span, err) }()

	if _, err := requireUser(ctx, s.store, requesterID); err != nil {
		return nil, err
	}
	conv, err := authorizeConversation(ctx, s.store, requesterID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, conv)
}

// view attaches participant profiles and the latest message.
func (s *ConversationService) view(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	userIDs := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		userIDs = append(userIDs, p.UserID)
	}
	profiles, err := loadProfiles(ctx, s.store, userIDs)
	if err != nil {
		return nil, upstream("load profiles", err)
	}
	latest, err := s.store.LatestMessages(ctx, []string{conv.ID})
	if err != nil {
		return nil, upstream("load latest message", err)
	}

	out := *conv
	out.Participants = append([]model.Participant(nil), conv.Participants...)
	attachParticipants(&out, profiles)
	out.Messages = []model.Message{}
	if msg, ok := latest[conv.ID]; ok {
		m := *msg
		m.Sender = profiles[m.SenderID]
		out.Messages = append(out.Messages, m)
	}
	return &out, nil
}

func attachParticipants(conv *model.Conversation, profiles map[string]*model.Profile) {
	for i := range conv.Participants {
		conv.Participants[i].User = profiles[conv.Participants[i].UserID]
	}
}

// authorizeConversation loads the conversation and checks membership.
// Missing conversations are NotFound; non-members are Forbidden.
func authorizeConversation(ctx context.Context, st store.ConversationStore, userID, conversationID string) (*model.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrNotFound
	}
	conv, err := st.GetConversation(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, upstream("load conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrForbidden
	}
	return conv, nil
}
