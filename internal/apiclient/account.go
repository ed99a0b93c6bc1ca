package apiclient

import (
	"context"
	"io"
	"net/http"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"
)

// Login exchanges credentials for a token. Credentials are never logged.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	if email == "" || password == "" {
		return nil, errors.NewValidationError("MISSING_CREDENTIALS", "email and password are required")
	}
	return c.authenticate(ctx, "Login", "/api/auth/login", models.LoginRequest{Email: email, Password: password})
}

// Register creates an account and signs it in
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	if req.Email == "" || req.Password == "" {
		return nil, errors.NewValidationError("MISSING_CREDENTIALS", "email and password are required")
	}
	return c.authenticate(ctx, "Register", "/api/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, op, path string, body any) (*models.AuthResult, error) {
	var result models.AuthResult
	if err := c.do(ctx, call{op: op, method: http.MethodPost, path: path, body: body}, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, errors.NewShapeError(op + ": missing access_token")
	}
	return &result, nil
}

// Me returns the account behind the current token
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, call{op: "Me", method: http.MethodGet, path: "/api/auth/me", auth: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetConsent returns the account's consent toggles
func (c *Client) GetConsent(ctx context.Context) (models.Consent, error) {
	consent := models.Consent{}
	if err := c.do(ctx, call{op: "GetConsent", method: http.MethodGet, path: "/api/account/consent", auth: true}, &consent); err != nil {
		return nil, err
	}
	return consent, nil
}

// UpdateConsent stores the toggles and returns the backend's view of them
func (c *Client) UpdateConsent(ctx context.Context, consent models.Consent) (models.Consent, error) {
	updated := models.Consent{}
	if err := c.do(ctx, call{op: "UpdateConsent", method: http.MethodPut, path: "/api/account/consent", body: consent, auth: true}, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Download is a streamed response body
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

// ExportAccount streams the account's data export. The caller closes Body.
func (c *Client) ExportAccount(ctx context.Context) (*Download, error) {
	resp, err := c.send(ctx, call{op: "ExportAccount", method: http.MethodGet, path: "/api/account/export", auth: true})
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	return &Download{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Filename:      "clone-account-export.json",
	}, nil
}
