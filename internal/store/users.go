package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/emaland/cmp/internal/errs"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

var (
	errUserNotFound = &errs.Error{
		Code: errs.ENotFound,
		Msg:  "user not found",
	}
	errSessionNotFound = &errs.Error{
		Code: errs.ENotFound,
		Msg:  "session not found",
	}
)

type User struct {
	ID             int64     `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	Email          string    `json:"email" db:"email"`
	Nickname       string    `json:"nickname" db:"nickname"`
	Mobile         string    `json:"mobile" db:"mobile"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type Session struct {
	ID           string    `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	IP           string    `json:"ip" db:"ip"`
	UserAgent    string    `json:"user_agent" db:"user_agent"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

var userColumns = []string{"id", "username", "hashed_password", "email", "nickname", "mobile", "created_at", "updated_at"}

var sessionColumns = []string{"id", "user_id", "refresh_token", "expires_at", "ip", "user_agent", "created_at"}

// Users stores accounts, their roles and their login sessions.
type Users struct {
	store *SqlStore
	now   func() time.Time
}

func NewUsers(store *SqlStore) *Users {
	return &Users{store: store, now: time.Now}
}

// Create inserts u with roles. When firstAdmin is set and no user exists
// yet the admin role is added, inside the same transaction as the count.
func (r *Users) Create(ctx context.Context, u *User, roles []string, firstAdmin bool) ([]string, error) {
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	tx, err := r.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	if firstAdmin {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
			tx.Rollback()
			return nil, err
		}
		if n == 0 {
			roles = append(roles, RoleAdmin)
		}
	}

	now := r.now().UTC()
	query, args, err := sq.Insert("users").
		Columns("username", "hashed_password", "email", "nickname", "mobile", "created_at", "updated_at").
		Values(u.Username, u.HashedPassword, u.Email, u.Nickname, u.Mobile, now, now).
		ToSql()
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return nil, errs.Newf(errs.EConflict, "username %s is taken", u.Username)
		}
		return nil, err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		tx.Rollback()
		return nil, err
	}
	u.CreatedAt, u.UpdatedAt = now, now

	for _, role := range roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name = ?`,
			u.ID, role); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.Roles(ctx, u.ID)
}

func (r *Users) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getWhere(ctx, sq.Eq{"id": id})
}

func (r *Users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getWhere(ctx, sq.Eq{"username": username})
}

func (r *Users) getWhere(ctx context.Context, pred sq.Eq) (*User, error) {
	query, args, err := sq.Select(userColumns...).From("users").Where(pred).ToSql()
	if err != nil {
		return nil, err
	}
	var u User
	if err := r.store.DB.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Roles returns the user's role names in name order.
func (r *Users) Roles(ctx context.Context, userID int64) ([]string, error) {
	query, args, err := sq.Select("roles.name").
		From("roles").
		Join("user_roles ON user_roles.role_id = roles.id").
		Where(sq.Eq{"user_roles.user_id": userID}).
		OrderBy("roles.name").
		ToSql()
	if err != nil {
		return nil, err
	}
	roles := []string{}
	if err := r.store.DB.SelectContext(ctx, &roles, query, args...); err != nil {
		return nil, err
	}
	return roles, nil
}

// ReplaceSessions deletes every session of s.UserID and stores s.
func (r *Users) ReplaceSessions(ctx context.Context, s *Session) error {
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	tx, err := r.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, s.UserID); err != nil {
		tx.Rollback()
		return err
	}

	s.CreatedAt = r.now().UTC()
	query, args, err := sq.Insert("sessions").
		Columns(sessionColumns...).
		Values(s.ID, s.UserID, s.RefreshToken, s.ExpiresAt.UTC(), s.IP, s.UserAgent, s.CreatedAt).
		ToSql()
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *Users) GetSession(ctx context.Context, id string) (*Session, error) {
	query, args, err := sq.Select(sessionColumns...).From("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var s Session
	if err := r.store.DB.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpdateSessionToken rotates the refresh token of a session.
func (r *Users) UpdateSessionToken(ctx context.Context, id, refreshToken string, expiresAt time.Time) error {
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	res, err := r.store.DB.ExecContext(ctx,
		`UPDATE sessions SET refresh_token = ?, expires_at = ? WHERE id = ?`,
		refreshToken, expiresAt.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errSessionNotFound
	}
	return nil
}

func (r *Users) DeleteSession(ctx context.Context, id string) error {
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()
	_, err := r.store.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}
