package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/emaland/cmp/internal/errs"
)

var (
	errGroupNotFound = &errs.Error{
		Code: errs.ENotFound,
		Msg:  "resource group not found",
	}
	errBindingNotFound = &errs.Error{
		Code: errs.ENotFound,
		Msg:  "resource group binding not found",
	}
)

// ResourceGroup collects resources across providers under one code.
type ResourceGroup struct {
	ID                   int64     `json:"id" db:"id"`
	Name                 string    `json:"name" db:"name"`
	Code                 string    `json:"code" db:"code"`
	CloudProviderCode    string    `json:"cloud_provider_code" db:"cloud_provider_code"`
	CloudResourceGroupID string    `json:"cloud_resource_group_id" db:"cloud_resource_group_id"`
	Description          string    `json:"description" db:"description"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// ResourceGroupUpdate holds the fields to change; nil fields are left alone.
type ResourceGroupUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Binding attaches one resource to a group. A resource belongs to at most
// one group.
type Binding struct {
	ID                int64     `json:"id" db:"id"`
	ResourceGroupID   int64     `json:"resource_group_id" db:"resource_group_id"`
	CloudProviderCode string    `json:"cloud_provider_code" db:"cloud_provider_code"`
	ResourceType      string    `json:"resource_type" db:"resource_type"`
	ResourceID        string    `json:"resource_id" db:"resource_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

var groupColumns = []string{
	"id", "name", "code", "cloud_provider_code", "cloud_resource_group_id",
	"description", "created_at", "updated_at",
}

var bindingColumns = []string{
	"id", "resource_group_id", "cloud_provider_code", "resource_type", "resource_id", "created_at",
}

type ResourceGroups struct {
	store *SqlStore
	now   func() time.Time
}

func NewResourceGroups(store *SqlStore) *ResourceGroups {
	return &ResourceGroups{store: store, now: time.Now}
}

// Create inserts g and sets its id and timestamps.
func (r *ResourceGroups) Create(ctx context.Context, g *ResourceGroup) error {
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	now := r.now().UTC()
	query, args, err := sq.Insert("resource_groups").
		Columns("name", "code", "cloud_provider_code", "cloud_resource_group_id", "description", "created_at", "updated_at").
		Values(g.Name, g.Code, g.CloudProviderCode, g.CloudResourceGroupID, g.Description, now, now).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Newf(errs.EConflict, "resource group %s already exists", g.Code)
		}
		return err
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	g.CreatedAt, g.UpdatedAt = now, now
	return nil
}

func (r *ResourceGroups) Get(ctx context.Context, id int64) (*ResourceGroup, error) {
	query, args, err := sq.Select(groupColumns...).From("resource_groups").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var g ResourceGroup
	if err := r.store.DB.GetContext(ctx, &g, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errGroupNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *ResourceGroups) Update(ctx context.Context, id int64, u ResourceGroupUpdate) (*ResourceGroup, error) {
	set := sq.Eq{"updated_at": r.now().UTC()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}

	r.store.Mu.Lock()
	query, args, err := sq.Update("resource_groups").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
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
		return nil, errGroupNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes the group and, by cascade, its bindings.
func (r *ResourceGroups) Delete(ctx context.Context, id int64) error {
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	query, args, err := sq.Delete("resource_groups").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errGroupNotFound
	}
	return nil
}

// Page lists groups ordered by id.
func (r *ResourceGroups) Page(ctx context.Context, page, pageSize int) ([]ResourceGroup, int, error) {
	var total int
	if err := r.store.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM resource_groups`); err != nil {
		return nil, 0, err
	}
	out := []ResourceGroup{}
	if pageSize < 1 || page < 1 || page-1 > total/pageSize {
		return out, total, nil
	}
	query, args, err := sq.Select(groupColumns...).
		From("resource_groups").
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
	return out, total, nil
}

// Bind attaches a resource to a group. Binding an already bound resource
// is a conflict, whichever group holds it.
func (r *ResourceGroups) Bind(ctx context.Context, b *Binding) error {
	if _, err := r.Get(ctx, b.ResourceGroupID); err != nil {
		return err
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	now := r.now().UTC()
	query, args, err := sq.Insert("resource_group_bindings").
		Columns("resource_group_id", "cloud_provider_code", "resource_type", "resource_id", "created_at").
		Values(b.ResourceGroupID, b.CloudProviderCode, b.ResourceType, b.ResourceID, now).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Newf(errs.EConflict, "%s %s is already bound to a resource group", b.ResourceType, b.ResourceID)
		}
		return err
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	b.CreatedAt = now
	return nil
}

func (r *ResourceGroups) Unbind(ctx context.Context, bindingID int64) error {
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	query, args, err := sq.Delete("resource_group_bindings").Where(sq.Eq{"id": bindingID}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errBindingNotFound
	}
	return nil
}

// Bindings pages through the bindings of one group, oldest first.
func (r *ResourceGroups) Bindings(ctx context.Context, groupID int64, page, pageSize int) ([]Binding, int, error) {
	countQuery, countArgs, err := sq.Select("COUNT(*)").
		From("resource_group_bindings").
		Where(sq.Eq{"resource_group_id": groupID}).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.store.DB.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, err
	}
	out := []Binding{}
	if pageSize < 1 || page < 1 || page-1 > total/pageSize {
		return out, total, nil
	}
	query, args, err := sq.Select(bindingColumns...).
		From("resource_group_bindings").
		Where(sq.Eq{"resource_group_id": groupID}).
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
	return out, total, nil
}
