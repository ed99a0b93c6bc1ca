// Package chat resolves the active conversation for a clone and drives
// the send flow of one chat view.
package chat

import (
	"context"
	stderrors "errors"
	"fmt"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/observability"
)

// ErrChatUnavailable wraps every initialization failure. Views render
// the unavailable screen for it and do not retry.
var ErrChatUnavailable = stderrors.New("chat unavailable")

// Backend is the subset of the API client the chat flow uses
type Backend interface {
	GetClone(ctx context.Context, cloneID string) (*models.Clone, error)
	ListConversations(ctx context.Context, cloneID string) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, cloneID, title string) (*models.Conversation, error)
	ListMessages(ctx context.Context, cloneID, conversationID string) ([]models.Message, error)
	SendMessage(ctx context.Context, cloneID, conversationID, content string) (*models.ChatResponse, error)
}

// Chat is a fully resolved chat view
type Chat struct {
	Clone        models.Clone
	Conversation models.Conversation
	History      []models.Message
	// Created is true when this initialization created the conversation
	Created bool
}

// DefaultTitle names a conversation created on first visit
func DefaultTitle(cloneName string) string {
	return "Chat with " + cloneName
}

// Initializer resolves clone, conversation and history in order
type Initializer struct {
	backend Backend
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewInitializer(backend Backend, log *logger.Logger, metrics *observability.Metrics) *Initializer {
	if log == nil {
		log = logger.Nop()
	}
	return &Initializer{backend: backend, log: log, metrics: metrics}
}

// Initialize returns a complete chat or an error wrapping both
// ErrChatUnavailable and the cause. It never returns a partial chat.
func (i *Initializer) Initialize(ctx context.Context, cloneID string) (chat *Chat, err error) {
	log := i.log.WithClone(cloneID)
	defer func() {
		i.metrics.RecordInitialization(ctx, err)
		if err != nil {
			log.Warn("Chat unavailable", "kind", string(errors.KindOf(err)), "error", err.Error())
			err = fmt.Errorf("%w: %w", ErrChatUnavailable, err)
			chat = nil
		}
	}()

	if cloneID == "" {
		return nil, errors.NewValidationError("MISSING_CLONE", "no clone selected")
	}

	clone, err := i.backend.GetClone(ctx, cloneID)
	if err != nil {
		return nil, err
	}

	convs, err := i.backend.ListConversations(ctx, cloneID)
	if err != nil {
		return nil, err
	}

	chat = &Chat{Clone: *clone}
	if len(convs) > 0 {
		// Backend order decides which conversation is active
		chat.Conversation = convs[0]
	} else {
		conv, err := i.backend.CreateConversation(ctx, cloneID, DefaultTitle(clone.Name))
		if err != nil {
			return nil, err
		}
		chat.Conversation = *conv
		chat.Created = true
		log.WithConversation(conv.ID).Info("Created conversation")
	}

	history, err := i.backend.ListMessages(ctx, cloneID, chat.Conversation.ID)
	if err != nil {
		return nil, err
	}
	chat.History = history

	return chat, nil
}
