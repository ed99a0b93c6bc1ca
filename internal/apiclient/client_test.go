package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/middleware"
	"digital-clone/frontend/pkg/resilience"
	"digital-clone/frontend/pkg/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token() (string, error) { return s.token, s.err }

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	c := New(srv.URL, opts...).WithTokens(staticTokens{token: "tok"})
	return c, &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestMissingTokenFailsFast(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Clone{ID: "c1", Name: "Max"})
	})

	_, err := c.WithTokens(nil).GetClone(context.Background(), "c1")
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized))

	expired := errors.NewUnauthorizedError("TOKEN_EXPIRED", "expired")
	_, err = c.WithTokens(staticTokens{err: expired}).SynthesizeSpeech(context.Background(), "c1", "hi")
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized))

	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestAuthenticatedRequestHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "req-7", r.Header.Get(middleware.RequestIDHeader))
		assert.Equal(t, "/api/clones/c%201", r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, models.Clone{ID: "c 1", Name: "Max"})
	})

	ctx := middleware.WithRequestID(context.Background(), "req-7")
	clone, err := c.GetClone(ctx, "c 1")
	require.NoError(t, err)
	assert.Equal(t, "Max", clone.Name)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   errors.Kind
		msg    string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"token expired"}`, errors.KindUnauthorized, "token expired"},
		{"not found", http.StatusNotFound, ``, errors.KindNotFound, "not found"},
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`, errors.KindNetwork, "db down"},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"too long"}}`, errors.KindNetwork, "too long"},
		{"unprocessable", http.StatusUnprocessableEntity, `not json`, errors.KindNetwork, "status 422"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.GetClone(context.Background(), "c1")
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	c := New("http://127.0.0.1:1", WithLogger(logger.Nop()), WithHTTPClient(&http.Client{Timeout: time.Second})).
		WithTokens(staticTokens{token: "tok"})

	_, err := c.ListConversations(context.Background(), "c1")
	assert.True(t, errors.IsKind(err, errors.KindNetwork))
	assert.True(t, IsBackendFault(err))
}

func TestShapeErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/clones/c1":
			_, _ = io.WriteString(w, `{"id": 1`)
		case "/api/clones/c1/tts":
			writeJSON(w, http.StatusOK, map[string]string{"format": "mp3"})
		case "/api/clones/c1/conversations/conv/messages":
			writeJSON(w, http.StatusOK, []map[string]string{{"id": "m1", "role": "user"}})
		case "/api/clones/c1/conversations":
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	_, err := c.GetClone(ctx, "c1")
	assert.True(t, errors.IsKind(err, errors.KindShape), "malformed json")

	_, err = c.SynthesizeSpeech(ctx, "c1", "hello")
	assert.True(t, errors.IsKind(err, errors.KindShape), "missing audio")

	_, err = c.ListMessages(ctx, "c1", "conv")
	assert.True(t, errors.IsKind(err, errors.KindShape), "message without content")

	_, err = c.ListConversations(ctx, "c1")
	assert.True(t, errors.IsKind(err, errors.KindShape), "empty body")
}

func TestSendMessageReturnsPartialExchange(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello there", req.Content)
		writeJSON(w, http.StatusOK, map[string]any{
			"user_message": models.Message{ID: "u1", Role: models.RoleUser, Content: req.Content},
		})
	})

	resp, err := c.SendMessage(context.Background(), "c1", "conv", "Hello there")
	require.NoError(t, err)
	assert.Nil(t, resp.CloneMessage)
	assert.ErrorContains(t, resp.Validate(), "clone_message")
}

func TestSchemaValidationRejectsPartialExchange(t *testing.T) {
	v, err := validator.NewBackendValidator(context.Background())
	require.NoError(t, err)

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"user_message": models.Message{ID: "u1", Role: models.RoleUser, Content: "hi"},
		})
	}, WithValidator(v))

	_, err = c.SendMessage(context.Background(), "c1", "conv", "hi")
	assert.True(t, errors.IsKind(err, errors.KindShape))
}

func TestBreakerOpensOnServerFaultsOnly(t *testing.T) {
	status := int32(http.StatusNotFound)
	breaker := NewBreaker(resilience.Config{Name: "backend", FailureThreshold: 2, SuccessThreshold: 1, RetryTimeout: time.Hour}, logger.Nop())
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}, WithBreaker(breaker))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.GetClone(ctx, "c1")
		assert.True(t, errors.IsKind(err, errors.KindNotFound))
	}
	assert.Equal(t, resilience.StateClosed, breaker.State())

	atomic.StoreInt32(&status, http.StatusBadGateway)
	for i := 0; i < 2; i++ {
		_, _ = c.GetClone(ctx, "c1")
	}
	assert.Equal(t, resilience.StateOpen, breaker.State())

	before := atomic.LoadInt32(hits)
	_, err := c.GetClone(ctx, "c1")
	assert.True(t, errors.IsKind(err, errors.KindNetwork))
	assert.Equal(t, before, atomic.LoadInt32(hits))
}

func TestLoginDoesNotRequireToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "jwt", "user": map[string]string{"id": "u1"}})
	})

	res, err := c.WithTokens(nil).Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)

	_, err = c.Login(context.Background(), "", "pw")
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestCreateCloneValidatesToneLocally(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Clone{ID: "c1", Name: "Max"})
	})

	_, err := c.CreateClone(context.Background(), models.CloneInput{Name: "Max", Tone: models.Tone{Warmth: 2}})
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestExportStreamsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = io.WriteString(w, "PK-data")
	})

	dl, err := c.ExportAccount(context.Background())
	require.NoError(t, err)
	defer dl.Body.Close()

	data, _ := io.ReadAll(dl.Body)
	assert.Equal(t, "PK-data", string(data))
	assert.Equal(t, "application/zip", dl.ContentType)
}
