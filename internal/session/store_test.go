package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"digital-clone/frontend/internal/models"
	apperrors "digital-clone/frontend/pkg/errors"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	result *models.AuthResult
	err    error
	email  string
}

func (f *fakeAuth) Login(_ context.Context, email, _ string) (*models.AuthResult, error) {
	f.email = email
	return f.result, f.err
}

func (f *fakeAuth) Register(_ context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	f.email = req.Email
	return f.result, f.err
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: gojwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("backend-key"))
	require.NoError(t, err)
	return s
}

func TestTokenWithoutLoginIsUnauthorized(t *testing.T) {
	s := NewStore(nil, nil)

	_, err := s.Token()
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
}

func TestLoginPersistsAndLogoutClears(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s := NewStore(p, nil)
	auth := &fakeAuth{result: &models.AuthResult{Token: "opaque", User: &models.User{ID: "u1", Name: "Ada"}}}

	user, err := s.Login(ctx, auth, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "opaque", tok)

	stored, _ := p.Load(ctx)
	require.NotNil(t, stored)
	assert.Equal(t, "opaque", stored.Token)

	require.NoError(t, s.Logout(ctx))
	stored, _ = p.Load(ctx)
	assert.Nil(t, stored)
	assert.False(t, s.Authenticated())
}

func TestFailedLoginKeepsPreviousState(t *testing.T) {
	s := NewStore(nil, nil)
	auth := &fakeAuth{err: apperrors.NewUnauthorizedError("BAD_CREDENTIALS", "wrong password")}

	_, err := s.Login(context.Background(), auth, "a@b.c", "nope")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	assert.False(t, s.Authenticated())
}

func TestRegisterSignsIn(t *testing.T) {
	s := NewStore(nil, nil)
	auth := &fakeAuth{result: &models.AuthResult{Token: "t", User: &models.User{ID: "u2"}}}

	_, err := s.Register(context.Background(), auth, models.RegisterRequest{Name: "B", Email: "b@c.d", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "b@c.d", auth.email)
	assert.Equal(t, "u2", s.User().ID)
}

func TestHydrateDropsExpiredToken(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	require.NoError(t, p.Save(ctx, &State{Token: tokenExpiringAt(t, time.Now().Add(-time.Minute))}))

	s := NewStore(p, nil)
	require.NoError(t, s.Hydrate(ctx))

	assert.False(t, s.Authenticated())
	stored, _ := p.Load(ctx)
	assert.Nil(t, stored)
}

func TestTokenExpiresWhileHeld(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	exp := time.Now().Add(time.Hour)
	require.NoError(t, p.Save(ctx, &State{Token: tokenExpiringAt(t, exp)}))

	s := NewStore(p, nil)
	require.NoError(t, s.Hydrate(ctx))
	_, err := s.Token()
	require.NoError(t, err)

	s.now = func() time.Time { return exp.Add(time.Second) }
	_, err = s.Token()
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	assert.Equal(t, "TOKEN_EXPIRED", apperrors.FromError(err).Code)
}

func TestHydratePropagatesLoadError(t *testing.T) {
	s := NewStore(failingPersister{}, nil)
	assert.Error(t, s.Hydrate(context.Background()))
}

type failingPersister struct{}

func (failingPersister) Load(context.Context) (*State, error) { return nil, errors.New("disk gone") }
func (failingPersister) Save(context.Context, *State) error   { return errors.New("disk gone") }
func (failingPersister) Clear(context.Context) error          { return nil }

func TestFilePersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewFilePersister(filepath.Join(t.TempDir(), "nested", "session.json"))

	st, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, p.Save(ctx, &State{Token: "tok", User: &models.User{ID: "u1"}}))
	st, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", st.Token)
	assert.Equal(t, "u1", st.User.ID)

	require.NoError(t, p.Clear(ctx))
	require.NoError(t, p.Clear(ctx))
}

func TestMemoryFactorySharesPerSession(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFactory()

	require.NoError(t, f("a").Save(ctx, &State{Token: "ta"}))

	st, _ := f("a").Load(ctx)
	require.NotNil(t, st)
	assert.Equal(t, "ta", st.Token)

	st, _ = f("b").Load(ctx)
	assert.Nil(t, st)
}
