package instancetype

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

// CatalogStore is the persisted instance type catalog.
type CatalogStore interface {
	BulkUpsert(ctx context.Context, providerCode string, records []cloud.InstanceType) error
	GetByProvider(ctx context.Context, providerCode string) ([]cloud.InstanceType, error)
	BatchFetchByIDs(ctx context.Context, providerCode string, ids []string) (map[string]cloud.InstanceType, error)
}

// ProviderLookup resolves a provider code to its credentials.
type ProviderLookup interface {
	GetByCode(ctx context.Context, code string) (*store.Provider, error)
}

// AdapterSource hands out vendor adapters; *cloud.Registry implements it.
type AdapterSource interface {
	Get(ctx context.Context, creds cloud.Credentials) (cloud.Adapter, error)
}

type Service struct {
	log       *zap.Logger
	providers ProviderLookup
	catalog   CatalogStore
	adapters  AdapterSource
	pricing   *FanOut
}

func NewService(log *zap.Logger, providers ProviderLookup, catalog CatalogStore, adapters AdapterSource, cfg PricingConfig) *Service {
	return &Service{
		log:       log,
		providers: providers,
		catalog:   catalog,
		adapters:  adapters,
		pricing:   NewFanOut(cfg, log.With(zap.String("component", "pricing"))),
	}
}

func (s *Service) PrometheusCollectors() []prometheus.Collector {
	return s.pricing.metrics.PrometheusCollectors()
}

func (s *Service) adapterFor(ctx context.Context, providerCode string) (cloud.Adapter, error) {
	p, err := s.providers.GetByCode(ctx, providerCode)
	if err != nil {
		return nil, err
	}
	a, err := s.adapters.Get(ctx, p.Credentials())
	if err != nil {
		var uv *cloud.UnsupportedVendorError
		if errors.As(err, &uv) {
			return nil, errs.New(errs.EInvalid, uv.Error())
		}
		return nil, errs.Wrap(err, errs.EUnavailable, "connecting to cloud provider")
	}
	return a, nil
}

func vendorError(op string, err error) error {
	if errors.Is(err, cloud.ErrNotSupported) {
		return &errs.Error{Code: errs.EInvalid, Op: op, Msg: "operation not supported by this cloud provider", Err: err}
	}
	if errs.Code(err) != errs.EInternal {
		return err
	}
	return &errs.Error{Code: errs.EUnavailable, Op: op, Msg: "cloud provider request failed", Err: err}
}

// SearchAvailable lists the catalog records orderable in the criteria's
// zone, filtered and paged, with live prices for the returned page only.
func (s *Service) SearchAvailable(ctx context.Context, c Criteria) (*Page, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	adapter, err := s.adapterFor(ctx, c.ProviderCode)
	if err != nil {
		return nil, err
	}

	avail, err := adapter.ListAvailableInstanceTypes(ctx, cloud.AvailabilityQuery{
		RegionID:       c.RegionID,
		ZoneID:         c.ZoneID,
		ChargeType:     c.ChargeType,
		DiskCategory:   c.DiskCategory,
		IncludeSoldOut: !c.HideSoldOut,
	})
	if err != nil {
		return nil, vendorError("instancetype.SearchAvailable", err)
	}

	catalog, err := s.catalog.BatchFetchByIDs(ctx, c.ProviderCode, availableIDs(avail))
	if err != nil {
		return nil, err
	}
	merged := Merge(avail, catalog)
	if dropped := len(availableIDs(avail)) - len(merged); dropped > 0 {
		s.log.Debug("Dropped instance types missing from catalog",
			zap.String("provider_code", c.ProviderCode),
			zap.Int("dropped", dropped))
	}
	filtered := Filter(merged, c)

	return s.pricePage(ctx, adapter, c, filtered), nil
}

func (s *Service) pricePage(ctx context.Context, adapter cloud.Adapter, c Criteria, filtered []Candidate) *Page {
	page := &Page{
		Total:    len(filtered),
		Page:     c.Page,
		PageSize: c.PageSize,
		Items:    []Item{},
	}
	start, end := pageBounds(len(filtered), c.Page, c.PageSize)
	if start == end {
		return page
	}
	paged := filtered[start:end]

	ids := make([]string, 0, len(paged))
	for _, p := range paged {
		ids = append(ids, p.InstanceTypeID)
	}
	prices := s.pricing.Run(ctx, ids, func(ctx context.Context, id string) (float64, error) {
		opts, err := adapter.ListPricingOptions(ctx, cloud.PriceQuery{
			RegionID:     c.RegionID,
			InstanceType: id,
			ChargeType:   c.ChargeType,
			Period:       1,
		})
		if err != nil {
			return 0, err
		}
		return opts[cloud.PriceKeyInstanceType], nil
	})
	page.Items = assemble(paged, prices, c.ZoneID)
	return page
}

// SyncCatalog fetches the vendor catalog and upserts it. It returns the
// number of records written.
func (s *Service) SyncCatalog(ctx context.Context, providerCode string, filter cloud.CatalogFilter) (int, error) {
	adapter, err := s.adapterFor(ctx, providerCode)
	if err != nil {
		return 0, err
	}
	records, err := adapter.ListAllInstanceTypes(ctx, filter)
	if err != nil {
		return 0, vendorError("instancetype.SyncCatalog", err)
	}
	if err := s.catalog.BulkUpsert(ctx, providerCode, records); err != nil {
		return 0, err
	}
	s.log.Info("Synced instance type catalog",
		zap.String("provider_code", providerCode),
		zap.Int("count", len(records)))
	return len(records), nil
}

// SyncTypes describes the named instance types at the vendor and upserts
// them, bypassing the catalog filter. Names the vendor does not return are
// reported back as missing.
func (s *Service) SyncTypes(ctx context.Context, providerCode string, ids []string) (int, []string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil, errs.New(errs.EInvalid, "at least one instance type is required")
	}
	adapter, err := s.adapterFor(ctx, providerCode)
	if err != nil {
		return 0, nil, err
	}
	records, err := adapter.DescribeInstanceTypes(ctx, ids)
	if err != nil {
		return 0, nil, vendorError("instancetype.SyncTypes", err)
	}
	if err := s.catalog.BulkUpsert(ctx, providerCode, records); err != nil {
		return 0, nil, err
	}

	found := make(map[string]bool, len(records))
	for _, r := range records {
		found[r.InstanceTypeID] = true
	}
	missing := []string{}
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	s.log.Info("Synced instance types",
		zap.String("provider_code", providerCode),
		zap.Int("count", len(records)),
		zap.Strings("missing", missing))
	return len(records), missing, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ListCatalog returns the locally mirrored catalog of a provider.
func (s *Service) ListCatalog(ctx context.Context, providerCode string) ([]cloud.InstanceType, error) {
	if _, err := s.providers.GetByCode(ctx, providerCode); err != nil {
		return nil, err
	}
	return s.catalog.GetByProvider(ctx, providerCode)
}

// PricingOptions quotes one instance type directly. Unlike the search fan
// out, vendor errors are returned.
func (s *Service) PricingOptions(ctx context.Context, providerCode string, q cloud.PriceQuery) (map[string]float64, error) {
	if q.RegionID == "" || q.InstanceType == "" {
		return nil, errs.New(errs.EInvalid, "region_id and instance_type are required")
	}
	adapter, err := s.adapterFor(ctx, providerCode)
	if err != nil {
		return nil, err
	}
	prices, err := adapter.ListPricingOptions(ctx, q)
	if err != nil {
		return nil, vendorError("instancetype.PricingOptions", err)
	}
	return prices, nil
}
