// Package inventory manages provider credentials and the region and zone
// mirror.
package inventory

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

// Registry is the part of *cloud.Registry the services use.
type Registry interface {
	Supports(providerCode string) bool
	Get(ctx context.Context, creds cloud.Credentials) (cloud.Adapter, error)
	Invalidate(providerCode string)
}

// ProviderCreate is the body of a provider registration.
type ProviderCreate struct {
	ProviderCode    string `json:"provider_code"`
	ProviderName    string `json:"provider_name"`
	AccessKeyID     string `json:"access_key_id"`
	AccessKeySecret string `json:"access_key_secret"`
	Endpoint        string `json:"endpoint"`
	Description     string `json:"description"`
	// Verify checks the credentials against the vendor before saving.
	Verify bool `json:"verify"`
}

func (c ProviderCreate) validate() error {
	switch {
	case strings.TrimSpace(c.ProviderCode) == "":
		return errs.New(errs.EInvalid, "provider_code is required")
	case c.AccessKeyID == "" || c.AccessKeySecret == "":
		return errs.New(errs.EInvalid, "access_key_id and access_key_secret are required")
	}
	return nil
}

type ProviderService struct {
	log      *zap.Logger
	repo     *store.Providers
	registry Registry
}

func NewProviderService(log *zap.Logger, repo *store.Providers, registry Registry) *ProviderService {
	return &ProviderService{log: log, repo: repo, registry: registry}
}

func (s *ProviderService) Create(ctx context.Context, c ProviderCreate) (*store.Provider, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if !s.registry.Supports(c.ProviderCode) {
		return nil, errs.Newf(errs.EInvalid, "unsupported cloud provider: %s", c.ProviderCode)
	}

	p := &store.Provider{
		ProviderCode:    c.ProviderCode,
		ProviderName:    c.ProviderName,
		AccessKeyID:     c.AccessKeyID,
		AccessKeySecret: c.AccessKeySecret,
		Endpoint:        c.Endpoint,
		Description:     c.Description,
	}
	if c.Verify {
		if err := s.verify(ctx, p.Credentials()); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("Registered cloud provider", zap.String("provider_code", p.ProviderCode))
	return p, nil
}

func (s *ProviderService) verify(ctx context.Context, creds cloud.Credentials) error {
	a, err := s.registry.Get(ctx, creds)
	if err == nil {
		err = a.Validate(ctx)
	}
	// a failed check must not leave the rejected client cached
	s.registry.Invalidate(creds.ProviderCode)
	if err != nil {
		var uv *cloud.UnsupportedVendorError
		if errors.As(err, &uv) {
			return errs.New(errs.EInvalid, uv.Error())
		}
		return &errs.Error{Code: errs.EInvalid, Msg: "cloud provider rejected the credentials", Err: err}
	}
	return nil
}

func (s *ProviderService) Get(ctx context.Context, id int64) (*store.Provider, error) {
	return s.repo.Get(ctx, id)
}

func (s *ProviderService) Update(ctx context.Context, id int64, u store.ProviderUpdate) (*store.Provider, error) {
	p, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.registry.Invalidate(p.ProviderCode)
	s.log.Info("Updated cloud provider", zap.String("provider_code", p.ProviderCode))
	return p, nil
}

func (s *ProviderService) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.registry.Invalidate(p.ProviderCode)
	s.log.Info("Deleted cloud provider", zap.String("provider_code", p.ProviderCode))
	return nil
}

// Page lists providers. page starts at 1.
func (s *ProviderService) Page(ctx context.Context, page, pageSize int) ([]store.Provider, int, error) {
	if err := checkPage(page, pageSize); err != nil {
		return nil, 0, err
	}
	return s.repo.Page(ctx, page, pageSize)
}

func checkPage(page, pageSize int) error {
	if page < 1 || pageSize < 1 || pageSize > 100 {
		return errs.New(errs.EInvalid, "page must be at least 1 and page_size between 1 and 100")
	}
	return nil
}
