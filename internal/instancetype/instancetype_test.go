package instancetype

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/store"
)

type fakeAdapter struct {
	cloud.Adapter

	catalog []cloud.InstanceType
	avail   []cloud.Availability
	priceOf func(id string) (float64, error)

	mu      sync.Mutex
	priced  []string
	lastQry cloud.AvailabilityQuery
}

func (f *fakeAdapter) ListAllInstanceTypes(ctx context.Context, filter cloud.CatalogFilter) ([]cloud.InstanceType, error) {
	var out []cloud.InstanceType
	for _, it := range f.catalog {
		if filter.Match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeAdapter) DescribeInstanceTypes(ctx context.Context, ids []string) ([]cloud.InstanceType, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []cloud.InstanceType{}
	for _, it := range f.catalog {
		if want[it.InstanceTypeID] {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeAdapter) ListAvailableInstanceTypes(ctx context.Context, q cloud.AvailabilityQuery) ([]cloud.Availability, error) {
	f.lastQry = q
	return f.avail, nil
}

func (f *fakeAdapter) ListPricingOptions(ctx context.Context, q cloud.PriceQuery) (map[string]float64, error) {
	f.mu.Lock()
	f.priced = append(f.priced, q.InstanceType)
	f.mu.Unlock()
	p, err := f.priceOf(q.InstanceType)
	if err != nil {
		return nil, err
	}
	return map[string]float64{cloud.PriceKeyInstanceType: p, cloud.PriceKeySystemDisk: 0.01}, nil
}

func (f *fakeAdapter) pricedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.priced...)
	sort.Strings(out)
	return out
}

type fakeProviders struct{}

func (fakeProviders) GetByCode(ctx context.Context, code string) (*store.Provider, error) {
	if code != "aliyun" {
		return nil, errs.New(errs.ENotFound, "cloud provider not found")
	}
	return &store.Provider{ProviderCode: code, AccessKeyID: "ak", AccessKeySecret: "sk"}, nil
}

type staticAdapters struct{ a cloud.Adapter }

func (s staticAdapters) Get(ctx context.Context, creds cloud.Credentials) (cloud.Adapter, error) {
	return s.a, nil
}

func testPricingConfig() PricingConfig {
	return PricingConfig{Workers: 4, Timeout: time.Second, Retries: 1, Backoff: time.Millisecond}
}

func newTestService(t *testing.T, a *fakeAdapter) (*Service, *store.InstanceTypes) {
	t.Helper()
	catalog := store.NewInstanceTypes(store.NewTestStore(t))
	svc := NewService(zaptest.NewLogger(t), fakeProviders{}, catalog, staticAdapters{a: a}, testPricingConfig())
	return svc, catalog
}

func withStock(id string) cloud.Availability {
	return cloud.Availability{InstanceTypeID: id, Status: cloud.StatusAvailable, StatusCategory: cloud.CategoryWithStock}
}

func intp(v int) *int { return &v }

func TestFilterExactCPU(t *testing.T) {
	catalog := map[string]cloud.InstanceType{
		"ecs.g7.large": {InstanceTypeID: "ecs.g7.large", CPUCoreCount: 4, MemorySize: 16},
		"ecs.c7.large": {InstanceTypeID: "ecs.c7.large", CPUCoreCount: 8, MemorySize: 16},
	}
	merged := Merge([]cloud.Availability{withStock("ecs.g7.large"), withStock("ecs.c7.large")}, catalog)

	got := Filter(merged, Criteria{CPU: intp(4)})
	require.Len(t, got, 1)
	require.Equal(t, "ecs.g7.large", got[0].InstanceTypeID)

	// exact match, not a lower bound
	require.Empty(t, Filter(merged, Criteria{CPU: intp(2)}))

	mem := 16.0
	require.Len(t, Filter(merged, Criteria{Memory: &mem}), 2)
}

func TestFilterHideSoldOut(t *testing.T) {
	avail := []cloud.Availability{
		withStock("a"),
		{InstanceTypeID: "b", Status: cloud.StatusAvailable, StatusCategory: cloud.CategoryClosedWithStock},
		{InstanceTypeID: "c", Status: cloud.StatusAvailable, StatusCategory: cloud.CategoryWithoutStock},
		withStock("d"),
	}
	catalog := map[string]cloud.InstanceType{}
	for _, a := range avail {
		catalog[a.InstanceTypeID] = cloud.InstanceType{InstanceTypeID: a.InstanceTypeID}
	}
	merged := Merge(avail, catalog)

	hidden := Filter(merged, Criteria{HideSoldOut: true})
	require.Len(t, hidden, 2)
	for _, c := range hidden {
		require.Equal(t, cloud.CategoryWithStock, c.StatusCategory)
	}
	require.Len(t, Filter(merged, Criteria{}), 4)
}

func TestFilterGPU(t *testing.T) {
	catalog := map[string]cloud.InstanceType{
		"ecs.gn7i-c8g1.2xlarge": {InstanceTypeID: "ecs.gn7i-c8g1.2xlarge", GPUSpec: "NVIDIA A10"},
		"ecs.gn6v-c8g1.2xlarge": {InstanceTypeID: "ecs.gn6v-c8g1.2xlarge", GPUSpec: "NVIDIA V100"},
		"ecs.g7.large":          {InstanceTypeID: "ecs.g7.large"},
	}
	merged := Merge([]cloud.Availability{
		withStock("ecs.gn7i-c8g1.2xlarge"),
		withStock("ecs.gn6v-c8g1.2xlarge"),
		withStock("ecs.g7.large"),
	}, catalog)

	bySpec := Filter(merged, Criteria{GPUSpec: "a10"})
	require.Len(t, bySpec, 1)
	require.Equal(t, "ecs.gn7i-c8g1.2xlarge", bySpec[0].InstanceTypeID)

	// records without a gpu spec never match a spec filter
	require.Len(t, Filter(merged, Criteria{GPUSpec: "nvidia"}), 2)

	byName := Filter(merged, Criteria{GPUName: "GN6V"})
	require.Len(t, byName, 1)
	require.Equal(t, "ecs.gn6v-c8g1.2xlarge", byName[0].InstanceTypeID)
}

func TestMergeKeepsVendorOrder(t *testing.T) {
	catalog := map[string]cloud.InstanceType{
		"z": {InstanceTypeID: "z"},
		"a": {InstanceTypeID: "a"},
		"m": {InstanceTypeID: "m"},
	}
	avail := []cloud.Availability{
		withStock("z"),
		withStock("unknown"),
		withStock("a"),
		{InstanceTypeID: "z", StatusCategory: cloud.CategoryWithoutStock},
		withStock("m"),
	}
	got := Merge(avail, catalog)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.InstanceTypeID)
	}
	require.Equal(t, []string{"z", "a", "m"}, ids)
	require.Equal(t, cloud.CategoryWithStock, got[0].StatusCategory, "first entry for an id wins")
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		total, page, size int
		start, end        int
	}{
		{45, 1, 20, 0, 20},
		{45, 3, 20, 40, 45},
		{45, 4, 20, 45, 45},
		{0, 1, 20, 0, 0},
		{20, 2, 20, 20, 20},
		{45, math.MaxInt64/4 + 2, 4, 45, 45},
		{45, math.MaxInt, 100, 45, 45},
	}
	for _, tt := range tests {
		start, end := pageBounds(tt.total, tt.page, tt.size)
		require.Equal(t, tt.start, start, "%+v", tt)
		require.Equal(t, tt.end, end, "%+v", tt)
	}
}

func TestCriteriaValidate(t *testing.T) {
	ok := Criteria{ProviderCode: "aliyun", RegionID: "cn-hangzhou", ChargeType: cloud.PostPaid, Page: 1, PageSize: 20}
	require.NoError(t, ok.Validate())

	bad := []func(c *Criteria){
		func(c *Criteria) { c.ProviderCode = "" },
		func(c *Criteria) { c.RegionID = "" },
		func(c *Criteria) { c.Page = 0 },
		func(c *Criteria) { c.PageSize = 0 },
		func(c *Criteria) { c.PageSize = MaxPageSize + 1 },
		func(c *Criteria) { c.ChargeType = "Monthly" },
	}
	for i, mutate := range bad {
		c := ok
		mutate(&c)
		err := c.Validate()
		require.Equal(t, errs.EInvalid, errs.Code(err), "case %d", i)
	}
}

func seedSearch(t *testing.T, n int) (*Service, *fakeAdapter) {
	t.Helper()
	a := &fakeAdapter{priceOf: func(id string) (float64, error) { return 1.5, nil }}
	var records []cloud.InstanceType
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ecs.t%02d", i)
		records = append(records, cloud.InstanceType{InstanceTypeID: id, InstanceFamily: "ecs.t", CPUCoreCount: 2, MemorySize: 4})
		a.avail = append(a.avail, withStock(id))
	}
	svc, catalog := newTestService(t, a)
	require.NoError(t, catalog.BulkUpsert(context.Background(), "aliyun", records))
	return svc, a
}

func TestSearchPricesOnlyThePage(t *testing.T) {
	svc, a := seedSearch(t, 45)

	page, err := svc.SearchAvailable(context.Background(), Criteria{
		ProviderCode: "aliyun",
		RegionID:     "cn-hangzhou",
		ZoneID:       "cn-hangzhou-h",
		ChargeType:   cloud.PostPaid,
		HideSoldOut:  true,
		Page:         3,
		PageSize:     20,
	})
	require.NoError(t, err)
	require.Equal(t, 45, page.Total)
	require.Len(t, page.Items, 5)

	want := []string{"ecs.t40", "ecs.t41", "ecs.t42", "ecs.t43", "ecs.t44"}
	for i, item := range page.Items {
		require.Equal(t, want[i], item.InstanceTypeID)
		require.Equal(t, 1.5, item.Price)
		require.Equal(t, PriceStatusOK, item.PriceStatus)
		require.Equal(t, "cn-hangzhou-h", item.ZoneID)
	}
	require.Equal(t, want, a.pricedIDs())
	require.False(t, a.lastQry.IncludeSoldOut)
}

func TestSearchEmptyPageSkipsPricing(t *testing.T) {
	svc, a := seedSearch(t, 45)

	page, err := svc.SearchAvailable(context.Background(), Criteria{
		ProviderCode: "aliyun",
		RegionID:     "cn-hangzhou",
		ChargeType:   cloud.PostPaid,
		Page:         4,
		PageSize:     20,
	})
	require.NoError(t, err)
	require.Equal(t, 45, page.Total)
	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)
	require.Empty(t, a.pricedIDs())

	page, err = svc.SearchAvailable(context.Background(), Criteria{
		ProviderCode: "aliyun",
		RegionID:     "cn-hangzhou",
		ChargeType:   cloud.PostPaid,
		Page:         math.MaxInt64/4 + 2,
		PageSize:     4,
	})
	require.NoError(t, err)
	require.Equal(t, 45, page.Total)
	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)
	require.Empty(t, a.pricedIDs())
}

func TestSearchFailedPricesDefaultToZero(t *testing.T) {
	svc, a := seedSearch(t, 3)
	a.priceOf = func(id string) (float64, error) {
		if id == "ecs.t01" {
			return 0, errors.New("throttled")
		}
		return 0.25, nil
	}

	page, err := svc.SearchAvailable(context.Background(), Criteria{
		ProviderCode: "aliyun", RegionID: "cn-hangzhou", ChargeType: cloud.PostPaid, Page: 1, PageSize: 20,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.Equal(t, 0.0, page.Items[1].Price)
	require.Equal(t, PriceStatusUnavailable, page.Items[1].PriceStatus)
	require.Equal(t, 0.25, page.Items[2].Price)
}

func TestSearchUnknownProvider(t *testing.T) {
	svc, _ := seedSearch(t, 1)
	_, err := svc.SearchAvailable(context.Background(), Criteria{
		ProviderCode: "tencent", RegionID: "ap-guangzhou", ChargeType: cloud.PostPaid, Page: 1, PageSize: 20,
	})
	require.True(t, errs.IsNotFound(err))
}

func TestFanOutCompleteness(t *testing.T) {
	failing := map[string]bool{"b": true, "d": true, "e": true}
	var mu sync.Mutex
	attempts := map[string]int{}

	f := NewFanOut(testPricingConfig(), zaptest.NewLogger(t))
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	got := f.Run(context.Background(), ids, func(ctx context.Context, id string) (float64, error) {
		mu.Lock()
		attempts[id]++
		mu.Unlock()
		if failing[id] {
			return 0, errors.New("vendor error")
		}
		return 2, nil
	})

	require.Len(t, got, len(ids))
	for _, id := range ids {
		o := got[id]
		if failing[id] {
			require.False(t, o.OK(), id)
			require.Equal(t, 0.0, o.Price, id)
			require.Equal(t, 2, attempts[id], "one retry for %s", id)
		} else {
			require.True(t, o.OK(), id)
			require.Equal(t, 2.0, o.Price, id)
			require.Equal(t, 1, attempts[id])
		}
	}
}

func TestFanOutDoesNotRetryPermanentErrors(t *testing.T) {
	var calls int32
	f := NewFanOut(testPricingConfig(), zaptest.NewLogger(t))
	got := f.Run(context.Background(), []string{"m5.large"}, func(ctx context.Context, id string) (float64, error) {
		atomic.AddInt32(&calls, 1)
		return 0, fmt.Errorf("on-demand: %w", cloud.ErrNotSupported)
	})
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.ErrorIs(t, got["m5.large"].Err, cloud.ErrNotSupported)
}

func TestFanOutTimeout(t *testing.T) {
	cfg := testPricingConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.Retries = 0
	f := NewFanOut(cfg, zaptest.NewLogger(t))

	got := f.Run(context.Background(), []string{"slow"}, func(ctx context.Context, id string) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.False(t, got["slow"].OK())
	require.ErrorIs(t, got["slow"].Err, context.DeadlineExceeded)
}

func TestFanOutBoundsConcurrency(t *testing.T) {
	cfg := testPricingConfig()
	cfg.Workers = 3
	f := NewFanOut(cfg, zaptest.NewLogger(t))

	var inFlight, peak int32
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%d", i)
	}
	got := f.Run(context.Background(), ids, func(ctx context.Context, id string) (float64, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return 1, nil
	})
	require.Len(t, got, 12)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestSyncCatalog(t *testing.T) {
	a := &fakeAdapter{catalog: []cloud.InstanceType{
		{InstanceTypeID: "ecs.g7.large", InstanceFamily: "ecs.g7", Generation: "g7", CPUCoreCount: 2, MemorySize: 8},
		{InstanceTypeID: "ecs.g7.2xlarge", InstanceFamily: "ecs.g7", Generation: "g7", CPUCoreCount: 8, MemorySize: 32},
	}}
	svc, _ := newTestService(t, a)
	ctx := context.Background()

	n, err := svc.SyncCatalog(ctx, "aliyun", cloud.CatalogFilter{MinCPU: 4})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := svc.ListCatalog(ctx, "aliyun")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "ecs.g7.2xlarge", got[0].InstanceTypeID)
}

func TestPricingOptionsSurfacesVendorErrors(t *testing.T) {
	a := &fakeAdapter{priceOf: func(id string) (float64, error) { return 0, errors.New("boom") }}
	svc, _ := newTestService(t, a)

	_, err := svc.PricingOptions(context.Background(), "aliyun", cloud.PriceQuery{RegionID: "cn-hangzhou", InstanceType: "ecs.g7.large"})
	require.Equal(t, errs.EUnavailable, errs.Code(err))

	_, err = svc.PricingOptions(context.Background(), "aliyun", cloud.PriceQuery{})
	require.Equal(t, errs.EInvalid, errs.Code(err))
}

func TestSyncTypesIgnoresCatalogFilter(t *testing.T) {
	a := &fakeAdapter{catalog: []cloud.InstanceType{
		{InstanceTypeID: "ecs.g7.large", InstanceFamily: "ecs.g7", CPUCoreCount: 2, MemorySize: 8},
		{InstanceTypeID: "ecs.ebmg7.32xlarge", InstanceFamily: "ecs.ebmg7", CPUCoreCount: 128, MemorySize: 512},
	}}
	svc, catalog := newTestService(t, a)
	ctx := context.Background()

	n, err := svc.SyncCatalog(ctx, "aliyun", cloud.CatalogFilter{MinCPU: 64})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, missing, err := svc.SyncTypes(ctx, "aliyun", []string{"ecs.g7.large", " ecs.g7.large", "ecs.nope", ""})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"ecs.nope"}, missing)

	got, err := catalog.GetByProvider(ctx, "aliyun")
	require.NoError(t, err)
	require.Len(t, got, 2)

	_, _, err = svc.SyncTypes(ctx, "aliyun", []string{" "})
	require.Equal(t, errs.EInvalid, errs.Code(err))

	_, _, err = svc.SyncTypes(ctx, "tencent", []string{"x"})
	require.True(t, errs.IsNotFound(err))
}
