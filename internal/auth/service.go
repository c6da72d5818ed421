// Package auth implements local accounts, login sessions and bearer tokens.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

const minPasswordLength = 6

var errBadCredentials = &errs.Error{
	Code: errs.EUnauthorized,
	Msg:  "invalid username or password",
}

type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Mobile   string `json:"mobile"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ClientInfo describes where a login came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Profile struct {
	store.User
	Roles []string `json:"roles"`
}

type Service struct {
	log    *zap.Logger
	users  *store.Users
	cfg    Config
	signer signer
	now    func() time.Time
}

func NewService(log *zap.Logger, users *store.Users, cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 2 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "cmp"
	}
	return &Service{
		log:    log,
		users:  users,
		cfg:    cfg,
		signer: signer{secret: []byte(cfg.Secret), issuer: cfg.Issuer},
		now:    time.Now,
	}, nil
}

// Register creates an account with the user role. The very first account
// also gets admin.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return nil, errs.New(errs.EInvalid, "username is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, errs.Newf(errs.EInvalid, "password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.HashCost)
	if err != nil {
		return nil, err
	}

	u := &store.User{
		Username:       req.Username,
		HashedPassword: string(hash),
		Email:          req.Email,
		Nickname:       req.Nickname,
		Mobile:         req.Mobile,
	}
	roles, err := s.users.Create(ctx, u, []string{store.RoleUser}, true)
	if err != nil {
		return nil, err
	}
	s.log.Info("Registered user", zap.String("username", u.Username), zap.Strings("roles", roles))
	return &Profile{User: *u, Roles: roles}, nil
}

// Login checks the password and opens a session. Earlier sessions of the
// user are closed.
func (s *Service) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, req.Username)
	if errs.IsNotFound(err) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}
	roles, err := s.users.Roles(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	claims := Claims{UserID: u.ID, Username: u.Username, SessionID: uuid.NewString(), Roles: roles}
	pair, refreshExp, err := s.issue(claims)
	if err != nil {
		return nil, err
	}
	sess := &store.Session{
		ID:           claims.SessionID,
		UserID:       u.ID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    refreshExp,
		IP:           client.IP,
		UserAgent:    client.UserAgent,
	}
	if err := s.users.ReplaceSessions(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("User logged in", zap.String("username", u.Username), zap.String("ip", client.IP))
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token
// must be the one last issued for its session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	c, err := s.signer.parse(refreshToken, kindRefresh)
	if err != nil {
		return nil, err
	}
	sess, err := s.users.GetSession(ctx, c.SessionID)
	if errs.IsNotFound(err) {
		return nil, errInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if sess.RefreshToken != refreshToken || !s.now().Before(sess.ExpiresAt) {
		return nil, errInvalidToken
	}
	roles, err := s.users.Roles(ctx, c.UserID)
	if err != nil {
		return nil, err
	}

	pair, refreshExp, err := s.issue(Claims{UserID: c.UserID, Username: c.Username, SessionID: c.SessionID, Roles: roles})
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateSessionToken(ctx, sess.ID, pair.RefreshToken, refreshExp); err != nil {
		if errs.IsNotFound(err) {
			return nil, errInvalidToken
		}
		return nil, err
	}
	return pair, nil
}

func (s *Service) Logout(ctx context.Context, c *Claims) error {
	return s.users.DeleteSession(ctx, c.SessionID)
}

// Authenticate validates a bearer token and checks that its session is
// still open.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	c, err := s.signer.parse(accessToken, kindAccess)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetSession(ctx, c.SessionID); err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.New(errs.EUnauthorized, "session has ended")
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) Me(ctx context.Context, c *Claims) (*Profile, error) {
	u, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	roles, err := s.users.Roles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: *u, Roles: roles}, nil
}

func (s *Service) issue(c Claims) (*TokenPair, time.Time, error) {
	now := s.now()
	access, _, err := s.signer.sign(c, kindAccess, s.cfg.AccessTTL, now)
	if err != nil {
		return nil, time.Time{}, err
	}
	refresh, refreshExp, err := s.signer.sign(c, kindRefresh, s.cfg.RefreshTTL, now)
	if err != nil {
		return nil, time.Time{}, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
	}, refreshExp, nil
}
