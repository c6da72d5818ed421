package inventory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

// Resource types a binding may name.
var bindableTypes = map[string]bool{
	"instance":       true,
	"vpc":            true,
	"vswitch":        true,
	"security_group": true,
	"image":          true,
	"disk":           true,
	"bucket":         true,
}

type GroupCreate struct {
	Name                 string `json:"name"`
	Code                 string `json:"code"`
	CloudProviderCode    string `json:"cloud_provider_code"`
	CloudResourceGroupID string `json:"cloud_resource_group_id"`
	Description          string `json:"description"`
}

type BindRequest struct {
	ResourceGroupID   int64  `json:"resource_group_id"`
	CloudProviderCode string `json:"cloud_provider_code"`
	ResourceType      string `json:"resource_type"`
	ResourceID        string `json:"resource_id"`
}

// GroupService manages resource groups and their bindings.
type GroupService struct {
	log  *zap.Logger
	repo *store.ResourceGroups
}

func NewGroupService(log *zap.Logger, repo *store.ResourceGroups) *GroupService {
	return &GroupService{log: log, repo: repo}
}

func (s *GroupService) Create(ctx context.Context, req GroupCreate) (*store.ResourceGroup, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(req.Code)
	if req.Name == "" || req.Code == "" {
		return nil, errs.New(errs.EInvalid, "name and code are required")
	}
	g := &store.ResourceGroup{
		Name:                 req.Name,
		Code:                 req.Code,
		CloudProviderCode:    req.CloudProviderCode,
		CloudResourceGroupID: req.CloudResourceGroupID,
		Description:          req.Description,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}
	s.log.Info("Created resource group", zap.String("code", g.Code), zap.Int64("id", g.ID))
	return g, nil
}

func (s *GroupService) Get(ctx context.Context, id int64) (*store.ResourceGroup, error) {
	return s.repo.Get(ctx, id)
}

func (s *GroupService) Update(ctx context.Context, id int64, u store.ResourceGroupUpdate) (*store.ResourceGroup, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, errs.New(errs.EInvalid, "name must not be empty")
	}
	return s.repo.Update(ctx, id, u)
}

// Delete removes the group together with its bindings.
func (s *GroupService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("Deleted resource group", zap.Int64("id", id))
	return nil
}

func (s *GroupService) Page(ctx context.Context, page, pageSize int) ([]store.ResourceGroup, int, error) {
	if err := checkPage(page, pageSize); err != nil {
		return nil, 0, err
	}
	return s.repo.Page(ctx, page, pageSize)
}

func (s *GroupService) Bind(ctx context.Context, req BindRequest) (*store.Binding, error) {
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if req.ResourceGroupID < 1 || req.ResourceID == "" {
		return nil, errs.New(errs.EInvalid, "resource_group_id and resource_id are required")
	}
	if !bindableTypes[req.ResourceType] {
		return nil, errs.Newf(errs.EInvalid, "unknown resource_type %q", req.ResourceType)
	}
	b := &store.Binding{
		ResourceGroupID:   req.ResourceGroupID,
		CloudProviderCode: req.CloudProviderCode,
		ResourceType:      req.ResourceType,
		ResourceID:        req.ResourceID,
	}
	if err := s.repo.Bind(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *GroupService) Unbind(ctx context.Context, bindingID int64) error {
	return s.repo.Unbind(ctx, bindingID)
}

func (s *GroupService) Bindings(ctx context.Context, groupID int64, page, pageSize int) ([]store.Binding, int, error) {
	if err := checkPage(page, pageSize); err != nil {
		return nil, 0, err
	}
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, 0, err
	}
	return s.repo.Bindings(ctx, groupID, page, pageSize)
}
