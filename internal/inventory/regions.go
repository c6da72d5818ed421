package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

// RegionService serves regions and zones from the local mirror and fills
// the mirror from the vendor on a miss.
type RegionService struct {
	log       *zap.Logger
	providers *store.Providers
	regions   *store.Regions
	registry  Registry
}

func NewRegionService(log *zap.Logger, providers *store.Providers, regions *store.Regions, registry Registry) *RegionService {
	return &RegionService{log: log, providers: providers, regions: regions, registry: registry}
}

func (s *RegionService) adapter(ctx context.Context, providerCode string) (cloud.Adapter, error) {
	return resolveAdapter(ctx, s.providers, s.registry, providerCode)
}

// resolveAdapter looks up the provider's credentials and returns its
// adapter.
func resolveAdapter(ctx context.Context, providers *store.Providers, registry Registry, providerCode string) (cloud.Adapter, error) {
	p, err := providers.GetByCode(ctx, providerCode)
	if err != nil {
		return nil, err
	}
	a, err := registry.Get(ctx, p.Credentials())
	if err != nil {
		var uv *cloud.UnsupportedVendorError
		if errors.As(err, &uv) {
			return nil, errs.New(errs.EInvalid, uv.Error())
		}
		return nil, errs.Wrap(err, errs.EUnavailable, "connecting to cloud provider")
	}
	return a, nil
}

func vendorFailure(op string, err error) error {
	if errors.Is(err, cloud.ErrNotSupported) {
		return &errs.Error{Code: errs.EInvalid, Op: op, Msg: "operation not supported by this cloud provider", Err: err}
	}
	return &errs.Error{Code: errs.EUnavailable, Op: op, Msg: "cloud provider request failed", Err: err}
}

func (s *RegionService) ListRegions(ctx context.Context, providerCode string) ([]cloud.Region, error) {
	if providerCode == "" {
		return nil, errs.New(errs.EInvalid, "provider_code is required")
	}
	cached, err := s.regions.ListRegions(ctx, providerCode)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	a, err := s.adapter(ctx, providerCode)
	if err != nil {
		return nil, err
	}
	fetched, err := a.ListRegions(ctx)
	if err != nil {
		return nil, &errs.Error{Code: errs.EUnavailable, Op: "inventory.ListRegions", Msg: "cloud provider request failed", Err: err}
	}
	for i := range fetched {
		fetched[i].ProviderCode = providerCode
	}
	if err := s.regions.UpsertRegions(ctx, providerCode, fetched); err != nil {
		return nil, err
	}
	s.log.Debug("Mirrored regions", zap.String("provider_code", providerCode), zap.Int("count", len(fetched)))
	return fetched, nil
}

func (s *RegionService) ListZones(ctx context.Context, providerCode, regionID string) ([]cloud.Zone, error) {
	if providerCode == "" || regionID == "" {
		return nil, errs.New(errs.EInvalid, "provider_code and region_id are required")
	}
	cached, err := s.regions.ListZones(ctx, providerCode, regionID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	a, err := s.adapter(ctx, providerCode)
	if err != nil {
		return nil, err
	}
	fetched, err := a.ListZones(ctx, regionID)
	if err != nil {
		return nil, &errs.Error{Code: errs.EUnavailable, Op: "inventory.ListZones", Msg: "cloud provider request failed", Err: err}
	}
	for i := range fetched {
		fetched[i].ProviderCode = providerCode
	}
	if err := s.regions.UpsertZones(ctx, providerCode, fetched); err != nil {
		return nil, err
	}
	s.log.Debug("Mirrored zones",
		zap.String("provider_code", providerCode),
		zap.String("region_id", regionID),
		zap.Int("count", len(fetched)))
	return fetched, nil
}
