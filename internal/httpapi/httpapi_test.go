package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/emaland/cmp/internal/auth"
	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/instancetype"
	"github.com/emaland/cmp/internal/inventory"
	"github.com/emaland/cmp/internal/store"
)

type fakeAdapter struct {
	cloud.Adapter
}

func (fakeAdapter) ListAllInstanceTypes(ctx context.Context, filter cloud.CatalogFilter) ([]cloud.InstanceType, error) {
	return []cloud.InstanceType{
		{InstanceTypeID: "ecs.g7.large", InstanceFamily: "ecs.g7", CPUCoreCount: 2, MemorySize: 8},
		{InstanceTypeID: "ecs.g7.xlarge", InstanceFamily: "ecs.g7", CPUCoreCount: 4, MemorySize: 16},
	}, nil
}

func (fakeAdapter) DescribeInstanceTypes(ctx context.Context, ids []string) ([]cloud.InstanceType, error) {
	out := []cloud.InstanceType{}
	for _, id := range ids {
		if id == "ecs.g7.large" {
			out = append(out, cloud.InstanceType{InstanceTypeID: id, InstanceFamily: "ecs.g7", CPUCoreCount: 2, MemorySize: 8})
		}
	}
	return out, nil
}

func (fakeAdapter) ListAvailableInstanceTypes(ctx context.Context, q cloud.AvailabilityQuery) ([]cloud.Availability, error) {
	return []cloud.Availability{
		{InstanceTypeID: "ecs.g7.large", Status: cloud.StatusAvailable, StatusCategory: cloud.CategoryWithStock},
		{InstanceTypeID: "ecs.g7.xlarge", Status: cloud.StatusAvailable, StatusCategory: cloud.CategoryWithStock},
	}, nil
}

func (fakeAdapter) ListPricingOptions(ctx context.Context, q cloud.PriceQuery) (map[string]float64, error) {
	return map[string]float64{cloud.PriceKeyInstanceType: 0.5, cloud.PriceKeySystemDisk: 0.01}, nil
}

func (fakeAdapter) ListRegions(ctx context.Context) ([]cloud.Region, error) {
	return []cloud.Region{{RegionID: "cn-hangzhou", RegionName: "Hangzhou"}}, nil
}

func (fakeAdapter) ListVPCs(ctx context.Context, regionID string) ([]cloud.VPC, error) {
	return []cloud.VPC{{VPCID: "vpc-a", VPCName: "default", IsDefault: true}}, nil
}

func (fakeAdapter) ListVSwitches(ctx context.Context, regionID, vpcID string) ([]cloud.VSwitch, error) {
	return []cloud.VSwitch{{VPCID: "vpc-a", VSwitchID: "vsw-1", ZoneID: "cn-hangzhou-h"}}, nil
}

func (fakeAdapter) ListImages(ctx context.Context, q cloud.ImageQuery) ([]cloud.Image, error) {
	return []cloud.Image{{ImageID: "img-1", OSType: q.OSType}}, nil
}

func (fakeAdapter) Validate(ctx context.Context) error { return nil }

type response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	s := store.NewTestStore(t)
	providers := store.NewProviders(s, store.NewTestCipher(t))

	registry := cloud.NewRegistry(time.Hour, log)
	registry.Register("aliyun", func(ctx context.Context, c cloud.Credentials) (cloud.Adapter, error) {
		return fakeAdapter{}, nil
	})
	authSvc, err := auth.NewService(log, store.NewUsers(s), auth.Config{Secret: "test-secret", HashCost: bcrypt.MinCost})
	require.NoError(t, err)

	b := Backend{
		InstanceTypes: instancetype.NewService(log, providers, store.NewInstanceTypes(s), registry,
			instancetype.PricingConfig{Workers: 2, Timeout: time.Second, Retries: 0, Backoff: time.Millisecond}),
		Providers:       inventory.NewProviderService(log, providers, registry),
		Regions:         inventory.NewRegionService(log, providers, store.NewRegions(s), registry),
		Networks:        inventory.NewNetworkService(log, providers, store.NewNetworks(s), registry),
		Groups:          inventory.NewGroupService(log, store.NewResourceGroups(s)),
		Auth:            authSvc,
		DefaultProvider: "aliyun",
	}
	return &testServer{t: t, handler: NewHandler(log, b, "/api")}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, response) {
	s.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func (s *testServer) login(username string) string {
	s.t.Helper()
	code, _ := s.do(http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{Username: username, Password: "password1"})
	require.Equal(s.t, http.StatusCreated, code)
	code, resp := s.do(http.MethodPost, "/api/auth/login", "", auth.LoginRequest{Username: username, Password: "password1"})
	require.Equal(s.t, http.StatusOK, code)
	var pair auth.TokenPair
	require.NoError(s.t, json.Unmarshal(resp.Data, &pair))
	return pair.AccessToken
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	code, resp := s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, http.StatusOK, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cmp_http_requests_total")
}

func TestRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)
	code, resp := s.do(http.MethodGet, "/api/instance_type/available_type?region_id=cn-hangzhou", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	code, _ = s.do(http.MethodGet, "/api/users/me", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestAvailableTypesEndToEnd(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("alice")

	code, resp := s.do(http.MethodPost, "/api/cloud_providers/create", admin,
		inventory.ProviderCreate{ProviderCode: "aliyun", AccessKeyID: "ak", AccessKeySecret: "sk"})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	require.NotContains(t, string(resp.Data), "sk\"")

	code, resp = s.do(http.MethodPost, "/api/instance_type/sync?provider_code=aliyun&instance_types=ecs.g7.large,ecs.nope", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.JSONEq(t, `{"provider_code":"aliyun","synced":1,"missing":["ecs.nope"]}`, string(resp.Data))

	code, resp = s.do(http.MethodPost, "/api/instance_type/sync?provider_code=aliyun", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = s.do(http.MethodGet, "/api/instance_type/available_type?region_id=cn-hangzhou&zone_id=cn-hangzhou-h&cpu_number=4", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var page instancetype.Page
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, 1, page.Page)
	require.Equal(t, instancetype.DefaultPageSize, page.PageSize)
	require.Len(t, page.Items, 1)
	require.Equal(t, "ecs.g7.xlarge", page.Items[0].InstanceTypeID)
	require.Equal(t, 0.5, page.Items[0].Price)
	require.Equal(t, instancetype.PriceStatusOK, page.Items[0].PriceStatus)
	require.Equal(t, "cn-hangzhou-h", page.Items[0].ZoneID)

	code, resp = s.do(http.MethodGet, "/api/instance_type/available_type?region_id=cn-hangzhou&page=2305843009213693954&page_size=4", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	page = instancetype.Page{}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Equal(t, 2, page.Total)
	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)

	code, resp = s.do(http.MethodGet, "/api/cloud_providers/page_list?page=2305843009213693954&page_size=4", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.Contains(t, string(resp.Data), `"items":[]`)

	code, resp = s.do(http.MethodGet, "/api/cloud_regions/list?provider_code=aliyun", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.Contains(t, string(resp.Data), "cn-hangzhou")

	code, resp = s.do(http.MethodGet, "/api/cloud_providers/page_list?page=1&page_size=10", admin, nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(resp.Data), `"total":1`)
}

func TestAvailableTypesBadQuery(t *testing.T) {
	s := newTestServer(t)
	token := s.login("alice")

	for _, q := range []string{
		"region_id=cn-hangzhou&cpu_number=four",
		"region_id=cn-hangzhou&instance_charge_type=Weekly",
		"region_id=cn-hangzhou&page_size=500",
		"region_id=cn-hangzhou&hide_soldout=maybe",
		"",
	} {
		code, resp := s.do(http.MethodGet, "/api/instance_type/available_type?"+q, token, nil)
		require.Equal(t, http.StatusBadRequest, code, q)
		require.Equal(t, http.StatusBadRequest, resp.Code, q)
	}

	code, _ := s.do(http.MethodGet, "/api/instance_type/available_type?provider_code=aws&region_id=us-east-1", token, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestAdminRoutesNeedAdmin(t *testing.T) {
	s := newTestServer(t)
	s.login("alice")
	bob := s.login("bob")

	code, resp := s.do(http.MethodPost, "/api/cloud_providers/create", bob,
		inventory.ProviderCreate{ProviderCode: "aliyun", AccessKeyID: "ak", AccessKeySecret: "sk"})
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "admin role required", resp.Message)

	code, resp = s.do(http.MethodGet, "/api/users/me", bob, nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(resp.Data), `"username":"bob"`)
}

func TestLogoutEndsSession(t *testing.T) {
	s := newTestServer(t)
	token := s.login("alice")

	code, _ := s.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestRecoverHidesPanic(t *testing.T) {
	a := &api{log: zaptest.NewLogger(t)}
	h := recoverMW(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "internal server error", resp.Message)
}

func TestNetworkInventory(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("alice")

	code, resp := s.do(http.MethodPost, "/api/cloud_providers/create", admin,
		inventory.ProviderCreate{ProviderCode: "aliyun", AccessKeyID: "ak", AccessKeySecret: "sk"})
	require.Equal(t, http.StatusCreated, code, resp.Message)

	code, resp = s.do(http.MethodGet, "/api/cloud_vpcs/list?region_id=cn-hangzhou", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var vpcs []cloud.VPC
	require.NoError(t, json.Unmarshal(resp.Data, &vpcs))
	require.Equal(t, []cloud.VPC{{ProviderCode: "aliyun", RegionID: "cn-hangzhou", VPCID: "vpc-a", VPCName: "default", IsDefault: true}}, vpcs)

	code, resp = s.do(http.MethodGet, "/api/cloud_vswitches/list?region_id=cn-hangzhou&vpc_id=vpc-a", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.Contains(t, string(resp.Data), `"vswitch_id":"vsw-1"`)

	code, resp = s.do(http.MethodGet, "/api/cloud_images/list?region_id=cn-hangzhou&os_type=windows", admin, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.Contains(t, string(resp.Data), `"os_type":"windows"`)

	code, _ = s.do(http.MethodGet, "/api/cloud_vpcs/list", admin, nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestResourceGroupRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("alice")
	bob := s.login("bob")

	code, _ := s.do(http.MethodPost, "/api/resource_groups/create", bob, inventory.GroupCreate{Name: "Web", Code: "web"})
	require.Equal(t, http.StatusForbidden, code)

	code, resp := s.do(http.MethodPost, "/api/resource_groups/create", admin, inventory.GroupCreate{Name: "Web", Code: "web"})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var g store.ResourceGroup
	require.NoError(t, json.Unmarshal(resp.Data, &g))

	code, _ = s.do(http.MethodPost, "/api/resource_groups/create", admin, inventory.GroupCreate{Name: "Again", Code: "web"})
	require.Equal(t, http.StatusConflict, code)

	code, resp = s.do(http.MethodPost, "/api/resource_group_bindings/bind", admin,
		inventory.BindRequest{ResourceGroupID: g.ID, CloudProviderCode: "aliyun", ResourceType: "vpc", ResourceID: "vpc-a"})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var b store.Binding
	require.NoError(t, json.Unmarshal(resp.Data, &b))

	code, resp = s.do(http.MethodGet, fmt.Sprintf("/api/resource_group_bindings/group/%d/page", g.ID), bob, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.Contains(t, string(resp.Data), `"total":1`)
	require.Contains(t, string(resp.Data), `"resource_id":"vpc-a"`)

	code, resp = s.do(http.MethodPut, fmt.Sprintf("/api/resource_groups/update/%d", g.ID), admin, map[string]string{"description": "frontends"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.Contains(t, string(resp.Data), `"description":"frontends"`)

	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/resource_group_bindings/%d", b.ID), admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/resource_group_bindings/%d", b.ID), admin, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodDelete, fmt.Sprintf("/api/resource_groups/delete/%d", g.ID), admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, resp = s.do(http.MethodGet, "/api/resource_groups/page_list", bob, nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(resp.Data), `"total":0`)
}
