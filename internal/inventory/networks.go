package inventory

import (
	"context"

	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

// NetworkService serves VPCs, vswitches and security groups the same way
// RegionService serves regions: local mirror first, vendor on a miss.
type NetworkService struct {
	log       *zap.Logger
	providers *store.Providers
	networks  *store.Networks
	registry  Registry
}

func NewNetworkService(log *zap.Logger, providers *store.Providers, networks *store.Networks, registry Registry) *NetworkService {
	return &NetworkService{log: log, providers: providers, networks: networks, registry: registry}
}

func requireRegion(providerCode, regionID string) error {
	if providerCode == "" || regionID == "" {
		return errs.New(errs.EInvalid, "provider_code and region_id are required")
	}
	return nil
}

func (s *NetworkService) ListVPCs(ctx context.Context, providerCode, regionID string) ([]cloud.VPC, error) {
	if err := requireRegion(providerCode, regionID); err != nil {
		return nil, err
	}
	cached, err := s.networks.ListVPCs(ctx, providerCode, regionID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	a, err := resolveAdapter(ctx, s.providers, s.registry, providerCode)
	if err != nil {
		return nil, err
	}
	fetched, err := a.ListVPCs(ctx, regionID)
	if err != nil {
		return nil, vendorFailure("inventory.ListVPCs", err)
	}
	for i := range fetched {
		fetched[i].ProviderCode = providerCode
		fetched[i].RegionID = regionID
	}
	if err := s.networks.UpsertVPCs(ctx, providerCode, fetched); err != nil {
		return nil, err
	}
	s.log.Debug("Mirrored vpcs",
		zap.String("provider_code", providerCode),
		zap.String("region_id", regionID),
		zap.Int("count", len(fetched)))
	return fetched, nil
}

// ListVSwitches lists the vswitches of a region, or of one VPC when vpcID
// is set.
func (s *NetworkService) ListVSwitches(ctx context.Context, providerCode, regionID, vpcID string) ([]cloud.VSwitch, error) {
	if err := requireRegion(providerCode, regionID); err != nil {
		return nil, err
	}
	cached, err := s.networks.ListVSwitches(ctx, providerCode, regionID, vpcID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	a, err := resolveAdapter(ctx, s.providers, s.registry, providerCode)
	if err != nil {
		return nil, err
	}
	fetched, err := a.ListVSwitches(ctx, regionID, vpcID)
	if err != nil {
		return nil, vendorFailure("inventory.ListVSwitches", err)
	}
	for i := range fetched {
		fetched[i].ProviderCode = providerCode
		fetched[i].RegionID = regionID
	}
	if err := s.networks.UpsertVSwitches(ctx, providerCode, fetched); err != nil {
		return nil, err
	}
	s.log.Debug("Mirrored vswitches",
		zap.String("provider_code", providerCode),
		zap.String("region_id", regionID),
		zap.String("vpc_id", vpcID),
		zap.Int("count", len(fetched)))
	return fetched, nil
}

func (s *NetworkService) ListSecurityGroups(ctx context.Context, providerCode, regionID, vpcID string) ([]cloud.SecurityGroup, error) {
	if err := requireRegion(providerCode, regionID); err != nil {
		return nil, err
	}
	cached, err := s.networks.ListSecurityGroups(ctx, providerCode, regionID, vpcID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	a, err := resolveAdapter(ctx, s.providers, s.registry, providerCode)
	if err != nil {
		return nil, err
	}
	fetched, err := a.ListSecurityGroups(ctx, regionID, vpcID)
	if err != nil {
		return nil, vendorFailure("inventory.ListSecurityGroups", err)
	}
	for i := range fetched {
		fetched[i].ProviderCode = providerCode
		fetched[i].RegionID = regionID
	}
	if err := s.networks.UpsertSecurityGroups(ctx, providerCode, fetched); err != nil {
		return nil, err
	}
	s.log.Debug("Mirrored security groups",
		zap.String("provider_code", providerCode),
		zap.String("region_id", regionID),
		zap.String("vpc_id", vpcID),
		zap.Int("count", len(fetched)))
	return fetched, nil
}

// ListImages is not mirrored; every call goes to the vendor.
func (s *NetworkService) ListImages(ctx context.Context, providerCode string, q cloud.ImageQuery) ([]cloud.Image, error) {
	if err := requireRegion(providerCode, q.RegionID); err != nil {
		return nil, err
	}
	switch q.OSType {
	case "", "linux", "windows":
	default:
		return nil, errs.Newf(errs.EInvalid, "unknown os_type %q", q.OSType)
	}
	a, err := resolveAdapter(ctx, s.providers, s.registry, providerCode)
	if err != nil {
		return nil, err
	}
	images, err := a.ListImages(ctx, q)
	if err != nil {
		return nil, vendorFailure("inventory.ListImages", err)
	}
	return images, nil
}
