package validator

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

func TestValidateChatResponse(t *testing.T) {
	ctx := context.Background()
	v, err := NewBackendValidator(ctx)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, "http://api.test/api/clones/c1/conversations/conv1/messages", nil)

	good := `{"user_message":{"id":"u1","role":"user","content":"hi"},"clone_message":{"id":"m1","role":"clone","content":"hello"}}`
	assert.NoError(t, v.ValidateResponse(ctx, req, http.StatusOK, jsonHeader(), []byte(good)))

	missing := `{"user_message":{"id":"u1","role":"user","content":"hi"}}`
	assert.Error(t, v.ValidateResponse(ctx, req, http.StatusOK, jsonHeader(), []byte(missing)))
}

func TestValidateSpeech(t *testing.T) {
	ctx := context.Background()
	v, err := NewBackendValidator(ctx)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, "http://api.test/api/clones/c1/tts", nil)

	assert.NoError(t, v.ValidateResponse(ctx, req, http.StatusOK, jsonHeader(), []byte(`{"audio_base64":"AAAA","format":"mp3"}`)))
	assert.Error(t, v.ValidateResponse(ctx, req, http.StatusOK, jsonHeader(), []byte(`{"format":"mp3"}`)))
}

func TestUndescribedRoutesPass(t *testing.T) {
	ctx := context.Background()
	v, err := NewBackendValidator(ctx)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "http://api.test/api/account/export", nil)
	assert.NoError(t, v.ValidateResponse(ctx, req, http.StatusOK, jsonHeader(), []byte(`anything`)))
}
