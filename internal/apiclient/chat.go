package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"
)

func clonePath(cloneID string) string {
	return "/api/clones/" + url.PathEscape(cloneID)
}

func conversationPath(cloneID, conversationID string) string {
	return clonePath(cloneID) + "/conversations/" + url.PathEscape(conversationID)
}

// GetClone fetches one clone. A missing clone is a not_found error.
func (c *Client) GetClone(ctx context.Context, cloneID string) (*models.Clone, error) {
	var clone models.Clone
	if err := c.do(ctx, call{op: "GetClone", method: http.MethodGet, path: clonePath(cloneID), auth: true}, &clone); err != nil {
		return nil, err
	}
	if clone.ID == "" || clone.Name == "" {
		return nil, errors.NewShapeError("GetClone: clone is missing id or name")
	}
	return &clone, nil
}

// ListConversations returns the clone's conversations in backend order
func (c *Client) ListConversations(ctx context.Context, cloneID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := c.do(ctx, call{op: "ListConversations", method: http.MethodGet, path: clonePath(cloneID) + "/conversations", auth: true}, &convs); err != nil {
		return nil, err
	}
	for i := range convs {
		if convs[i].ID == "" {
			return nil, errors.NewShapeError(fmt.Sprintf("ListConversations: entry %d is missing id", i))
		}
	}
	return convs, nil
}

// CreateConversation starts a new conversation with the given title
func (c *Client) CreateConversation(ctx context.Context, cloneID, title string) (*models.Conversation, error) {
	var conv models.Conversation
	body := models.CreateConversationRequest{Title: title}
	if err := c.do(ctx, call{op: "CreateConversation", method: http.MethodPost, path: clonePath(cloneID) + "/conversations", body: body, auth: true}, &conv); err != nil {
		return nil, err
	}
	if conv.ID == "" {
		return nil, errors.NewShapeError("CreateConversation: conversation is missing id")
	}
	return &conv, nil
}

// ListMessages returns a conversation's history in arrival order
func (c *Client) ListMessages(ctx context.Context, cloneID, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	path := conversationPath(cloneID, conversationID) + "/messages"
	if err := c.do(ctx, call{op: "ListMessages", method: http.MethodGet, path: path, auth: true}, &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			return nil, errors.NewShapeError(fmt.Sprintf("ListMessages: entry %d: %v", i, err))
		}
	}
	return msgs, nil
}

// SendMessage posts the user's text and returns the confirmed exchange.
// The exchange is decoded but not validated; callers decide how to treat
// a partial response.
func (c *Client) SendMessage(ctx context.Context, cloneID, conversationID, content string) (*models.ChatResponse, error) {
	var resp models.ChatResponse
	path := conversationPath(cloneID, conversationID) + "/messages"
	body := models.SendMessageRequest{Content: content}
	if err := c.do(ctx, call{op: "SendMessage", method: http.MethodPost, path: path, body: body, auth: true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SynthesizeSpeech asks the backend to voice text as the clone
func (c *Client) SynthesizeSpeech(ctx context.Context, cloneID, text string) (*models.SpeechAudio, error) {
	var audio models.SpeechAudio
	body := models.SpeechRequest{Text: text}
	if err := c.do(ctx, call{op: "SynthesizeSpeech", method: http.MethodPost, path: clonePath(cloneID) + "/tts", body: body, auth: true}, &audio); err != nil {
		return nil, err
	}
	if audio.AudioBase64 == "" {
		return nil, errors.NewShapeError("SynthesizeSpeech: missing audio_base64")
	}
	return &audio, nil
}
