package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"
)

func validateClone(in *models.CloneInput) error {
	if err := in.Validate(); err != nil {
		return errors.NewValidationError("INVALID_CLONE", err.Error())
	}
	return nil
}

// ListClones returns the signed-in user's clones
func (c *Client) ListClones(ctx context.Context) ([]models.Clone, error) {
	var clones []models.Clone
	if err := c.do(ctx, call{op: "ListClones", method: http.MethodGet, path: "/api/clones", auth: true}, &clones); err != nil {
		return nil, err
	}
	return clones, nil
}

// CreateClone validates the tone sliders locally before creating
func (c *Client) CreateClone(ctx context.Context, in models.CloneInput) (*models.Clone, error) {
	if err := validateClone(&in); err != nil {
		return nil, err
	}
	var clone models.Clone
	if err := c.do(ctx, call{op: "CreateClone", method: http.MethodPost, path: "/api/clones", body: in, auth: true}, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// UpdateClone replaces a clone's settings
func (c *Client) UpdateClone(ctx context.Context, cloneID string, in models.CloneInput) (*models.Clone, error) {
	if err := validateClone(&in); err != nil {
		return nil, err
	}
	var clone models.Clone
	if err := c.do(ctx, call{op: "UpdateClone", method: http.MethodPut, path: clonePath(cloneID), body: in, auth: true}, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// DeleteClone removes a clone
func (c *Client) DeleteClone(ctx context.Context, cloneID string) error {
	return c.do(ctx, call{op: "DeleteClone", method: http.MethodDelete, path: clonePath(cloneID), auth: true}, nil)
}

// ListMemories returns what the clone remembers
func (c *Client) ListMemories(ctx context.Context, cloneID string) ([]models.Memory, error) {
	var memories []models.Memory
	if err := c.do(ctx, call{op: "ListMemories", method: http.MethodGet, path: clonePath(cloneID) + "/memories", auth: true}, &memories); err != nil {
		return nil, err
	}
	return memories, nil
}

// AddMemory stores a new memory
func (c *Client) AddMemory(ctx context.Context, cloneID, content string) (*models.Memory, error) {
	if content == "" {
		return nil, errors.NewValidationError("EMPTY_MEMORY", "memory cannot be empty")
	}
	var memory models.Memory
	body := models.MemoryInput{Content: content}
	if err := c.do(ctx, call{op: "AddMemory", method: http.MethodPost, path: clonePath(cloneID) + "/memories", body: body, auth: true}, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

// DeleteMemory removes one memory
func (c *Client) DeleteMemory(ctx context.Context, cloneID, memoryID string) error {
	path := clonePath(cloneID) + "/memories/" + url.PathEscape(memoryID)
	return c.do(ctx, call{op: "DeleteMemory", method: http.MethodDelete, path: path, auth: true}, nil)
}
