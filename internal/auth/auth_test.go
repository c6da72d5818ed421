package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(zaptest.NewLogger(t), store.NewUsers(store.NewTestStore(t)), Config{
		Secret:   "test-secret",
		HashCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	return s
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService(zaptest.NewLogger(t), nil, Config{})
	require.Error(t, err)
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, err := s.Register(ctx, RegisterRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{store.RoleAdmin, store.RoleUser}, first.Roles)

	second, err := s.Register(ctx, RegisterRequest{Username: "bob", Password: "password2"})
	require.NoError(t, err)
	require.Equal(t, []string{store.RoleUser}, second.Roles)

	_, err = s.Register(ctx, RegisterRequest{Username: "bob", Password: "password3"})
	require.Equal(t, errs.EConflict, errs.Code(err))

	_, err = s.Register(ctx, RegisterRequest{Username: "carol", Password: "123"})
	require.Equal(t, errs.EInvalid, errs.Code(err))
}

func TestLoginAuthenticateLogout(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)

	_, err = s.Login(ctx, LoginRequest{Username: "alice", Password: "wrong"}, ClientInfo{})
	require.Equal(t, errs.EUnauthorized, errs.Code(err))
	_, err = s.Login(ctx, LoginRequest{Username: "nobody", Password: "password1"}, ClientInfo{})
	require.Equal(t, errs.EUnauthorized, errs.Code(err))

	pair, err := s.Login(ctx, LoginRequest{Username: "alice", Password: "password1"}, ClientInfo{IP: "10.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)

	claims, err := s.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.True(t, claims.HasRole(store.RoleAdmin))

	me, err := s.Me(ctx, claims)
	require.NoError(t, err)
	require.Equal(t, "alice", me.Username)

	// a refresh token is not a bearer token
	_, err = s.Authenticate(ctx, pair.RefreshToken)
	require.Equal(t, errs.EUnauthorized, errs.Code(err))

	require.NoError(t, s.Logout(ctx, claims))
	_, err = s.Authenticate(ctx, pair.AccessToken)
	require.Equal(t, errs.EUnauthorized, errs.Code(err))
}

func TestLoginEndsPreviousSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)

	first, err := s.Login(ctx, LoginRequest{Username: "alice", Password: "password1"}, ClientInfo{})
	require.NoError(t, err)
	second, err := s.Login(ctx, LoginRequest{Username: "alice", Password: "password1"}, ClientInfo{})
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, first.AccessToken)
	require.Equal(t, errs.EUnauthorized, errs.Code(err))
	_, err = s.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	pair, err := s.Login(ctx, LoginRequest{Username: "alice", Password: "password1"}, ClientInfo{})
	require.NoError(t, err)

	next, err := s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// the old refresh token was replaced
	_, err = s.Refresh(ctx, pair.RefreshToken)
	require.Equal(t, errs.EUnauthorized, errs.Code(err))

	_, err = s.Refresh(ctx, next.AccessToken)
	require.Equal(t, errs.EUnauthorized, errs.Code(err))

	_, err = s.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)
}

func TestExpiredAndForeignTokens(t *testing.T) {
	sg := signer{secret: []byte("test-secret"), issuer: "cmp"}
	c := Claims{UserID: 1, SessionID: "s1"}

	expired, _, err := sg.sign(c, kindAccess, -time.Minute, time.Now())
	require.NoError(t, err)
	_, err = sg.parse(expired, kindAccess)
	require.Equal(t, errs.EUnauthorized, errs.Code(err))

	other := signer{secret: []byte("other-secret"), issuer: "cmp"}
	foreign, _, err := other.sign(c, kindAccess, time.Minute, time.Now())
	require.NoError(t, err)
	_, err = sg.parse(foreign, kindAccess)
	require.Equal(t, errs.EUnauthorized, errs.Code(err))

	ok, _, err := sg.sign(c, kindAccess, time.Minute, time.Now())
	require.NoError(t, err)
	got, err := sg.parse(ok, kindAccess)
	require.NoError(t, err)
	require.Equal(t, "s1", got.SessionID)
}
