package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
)

var errProviderNotFound = &errs.Error{
	Code: errs.ENotFound,
	Msg:  "cloud provider not found",
}

// Provider is a registered cloud account. AccessKeySecret holds the
// plaintext secret once loaded; it is stored encrypted.
type Provider struct {
	ID              int64     `json:"id" db:"id"`
	ProviderCode    string    `json:"provider_code" db:"provider_code"`
	ProviderName    string    `json:"provider_name" db:"provider_name"`
	AccessKeyID     string    `json:"access_key_id" db:"access_key_id"`
	AccessKeySecret string    `json:"-" db:"access_key_secret"`
	Endpoint        string    `json:"endpoint" db:"endpoint"`
	Description     string    `json:"description" db:"description"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

func (p Provider) Credentials() cloud.Credentials {
	return cloud.Credentials{
		ProviderCode:    p.ProviderCode,
		AccessKeyID:     p.AccessKeyID,
		AccessKeySecret: p.AccessKeySecret,
		Endpoint:        p.Endpoint,
	}
}

// ProviderUpdate holds the fields to change; nil fields are left alone.
type ProviderUpdate struct {
	ProviderName    *string `json:"provider_name"`
	AccessKeyID     *string `json:"access_key_id"`
	AccessKeySecret *string `json:"access_key_secret"`
	Endpoint        *string `json:"endpoint"`
	Description     *string `json:"description"`
}

var providerColumns = []string{
	"id", "provider_code", "provider_name", "access_key_id", "access_key_secret",
	"endpoint", "description", "created_at", "updated_at",
}

type Providers struct {
	store  *SqlStore
	cipher *Cipher
	now    func() time.Time
}

func NewProviders(store *SqlStore, cipher *Cipher) *Providers {
	return &Providers{store: store, cipher: cipher, now: time.Now}
}

// Create inserts p and sets its id and timestamps.
func (r *Providers) Create(ctx context.Context, p *Provider) error {
	secret, err := r.cipher.Encrypt(p.AccessKeySecret)
	if err != nil {
		return err
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	now := r.now().UTC()
	query, args, err := sq.Insert("cloud_providers").
		Columns("provider_code", "provider_name", "access_key_id", "access_key_secret", "endpoint", "description", "created_at", "updated_at").
		Values(p.ProviderCode, p.ProviderName, p.AccessKeyID, secret, p.Endpoint, p.Description, now, now).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Newf(errs.EConflict, "cloud provider %s already exists", p.ProviderCode)
		}
		return err
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (r *Providers) Get(ctx context.Context, id int64) (*Provider, error) {
	return r.getWhere(ctx, sq.Eq{"id": id})
}

func (r *Providers) GetByCode(ctx context.Context, code string) (*Provider, error) {
	return r.getWhere(ctx, sq.Eq{"provider_code": code})
}

func (r *Providers) getWhere(ctx context.Context, pred sq.Eq) (*Provider, error) {
	query, args, err := sq.Select(providerColumns...).From("cloud_providers").Where(pred).ToSql()
	if err != nil {
		return nil, err
	}
	var p Provider
	if err := r.store.DB.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errProviderNotFound
		}
		return nil, err
	}
	if p.AccessKeySecret, err = r.cipher.Decrypt(p.AccessKeySecret); err != nil {
		return nil, errs.Wrap(err, errs.EInternal, "decrypting provider secret")
	}
	return &p, nil
}

// Update applies u to the provider and returns the result.
func (r *Providers) Update(ctx context.Context, id int64, u ProviderUpdate) (*Provider, error) {
	set := sq.Eq{"updated_at": r.now().UTC()}
	if u.ProviderName != nil {
		set["provider_name"] = *u.ProviderName
	}
	if u.AccessKeyID != nil {
		set["access_key_id"] = *u.AccessKeyID
	}
	if u.AccessKeySecret != nil {
		secret, err := r.cipher.Encrypt(*u.AccessKeySecret)
		if err != nil {
			return nil, err
		}
		set["access_key_secret"] = secret
	}
	if u.Endpoint != nil {
		set["endpoint"] = *u.Endpoint
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}

	r.store.Mu.Lock()
	query, args, err := sq.Update("cloud_providers").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		r.store.Mu.Unlock()
		return nil, err
	}
	res, err := r.store.DB.ExecContext(ctx, query, args...)
	r.store.Mu.Unlock()
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errProviderNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes the provider and returns what was deleted.
func (r *Providers) Delete(ctx context.Context, id int64) (*Provider, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	query, args, err := sq.Delete("cloud_providers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.store.DB.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return p, nil
}

// Page lists providers ordered by id without their secrets.
func (r *Providers) Page(ctx context.Context, page, pageSize int) ([]Provider, int, error) {
	var total int
	if err := r.store.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM cloud_providers`); err != nil {
		return nil, 0, err
	}
	out := []Provider{}
	if pageSize < 1 || page < 1 || page-1 > total/pageSize {
		return out, total, nil
	}

	query, args, err := sq.Select(providerColumns...).
		From("cloud_providers").
		OrderBy("id").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	if err := r.store.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].AccessKeySecret = ""
	}
	return out, total, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
