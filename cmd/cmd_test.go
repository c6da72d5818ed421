package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/config"
	"github.com/emaland/cmp/internal/store"
)

type fakeAdapter struct {
	cloud.Adapter
}

func (fakeAdapter) ListAllInstanceTypes(ctx context.Context, filter cloud.CatalogFilter) ([]cloud.InstanceType, error) {
	return []cloud.InstanceType{
		{InstanceTypeID: "ecs.g7.large", InstanceFamily: "ecs.g7", CPUCoreCount: 2, MemorySize: 8},
		{InstanceTypeID: "ecs.gn7i-c8g1.2xlarge", InstanceFamily: "ecs.gn7i", CPUCoreCount: 8, MemorySize: 30, GPUAmount: 1, GPUSpec: "NVIDIA A10"},
	}, nil
}

func (f fakeAdapter) DescribeInstanceTypes(ctx context.Context, ids []string) ([]cloud.InstanceType, error) {
	all, _ := f.ListAllInstanceTypes(ctx, cloud.CatalogFilter{})
	out := []cloud.InstanceType{}
	for _, it := range all {
		for _, id := range ids {
			if it.InstanceTypeID == id {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (fakeAdapter) ListAvailableInstanceTypes(ctx context.Context, q cloud.AvailabilityQuery) ([]cloud.Availability, error) {
	return []cloud.Availability{
		{InstanceTypeID: "ecs.g7.large", Status: cloud.StatusAvailable, StatusCategory: cloud.CategoryWithStock},
		{InstanceTypeID: "ecs.gn7i-c8g1.2xlarge", Status: cloud.StatusAvailable, StatusCategory: cloud.CategoryWithStock},
	}, nil
}

func (fakeAdapter) ListPricingOptions(ctx context.Context, q cloud.PriceQuery) (map[string]float64, error) {
	if q.InstanceType == "ecs.gn7i-c8g1.2xlarge" {
		return nil, fmt.Errorf("Throttling")
	}
	return map[string]float64{cloud.PriceKeyInstanceType: 0.25, cloud.PriceKeySystemDisk: 0.01}, nil
}

func (fakeAdapter) ListRegions(ctx context.Context) ([]cloud.Region, error) {
	return []cloud.Region{{RegionID: "cn-hangzhou", RegionName: "Hangzhou"}}, nil
}

func (fakeAdapter) ListZones(ctx context.Context, regionID string) ([]cloud.Zone, error) {
	return []cloud.Zone{{RegionID: regionID, ZoneID: regionID + "-h", ZoneName: "H"}}, nil
}

func (fakeAdapter) ListVPCs(ctx context.Context, regionID string) ([]cloud.VPC, error) {
	return []cloud.VPC{{VPCID: "vpc-a", CIDRBlock: "172.16.0.0/12", IsDefault: true}}, nil
}

func (fakeAdapter) ListVSwitches(ctx context.Context, regionID, vpcID string) ([]cloud.VSwitch, error) {
	return []cloud.VSwitch{{VPCID: "vpc-a", VSwitchID: "vsw-1", VSwitchName: "web", ZoneID: regionID + "-h"}}, nil
}

func (fakeAdapter) ListSecurityGroups(ctx context.Context, regionID, vpcID string) ([]cloud.SecurityGroup, error) {
	return []cloud.SecurityGroup{{VPCID: "vpc-a", SecurityGroupID: "sg-1", SecurityGroupName: "default"}}, nil
}

func (fakeAdapter) ListImages(ctx context.Context, q cloud.ImageQuery) ([]cloud.Image, error) {
	return []cloud.Image{{ImageID: "aliyun_3_x64", ImageName: "Alibaba Cloud Linux 3", OSType: "linux", Architecture: "x86_64"}}, nil
}

func useFakeVendor(t *testing.T) {
	t.Helper()
	saved := vendors
	vendors = map[string]func(*zap.Logger) cloud.Factory{
		"aliyun": func(*zap.Logger) cloud.Factory {
			return func(ctx context.Context, c cloud.Credentials) (cloud.Adapter, error) {
				return fakeAdapter{}, nil
			}
		},
	}
	t.Cleanup(func() { vendors = saved })
}

func writeTestConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	key, err := store.GenerateKey()
	require.NoError(t, err)

	path := filepath.Join(dir, "cmp.json")
	data := fmt.Sprintf(`{"db_path":%q,"credential_key":%q,"log_level":"error","price_workers":2}`,
		filepath.Join(dir, "data", "cmp.db"), key)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv(config.EnvPath, path)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	writeTestConfig(t)
	out, err := run(t, "keygen")
	require.NoError(t, err)
	_, err = store.NewCipher(strings.TrimSpace(out))
	require.NoError(t, err)
}

func TestProviderSyncSearch(t *testing.T) {
	useFakeVendor(t)
	writeTestConfig(t)

	out, err := run(t, "provider", "add", "aliyun", "--access-key", "ak", "--secret-key", "sk")
	require.NoError(t, err)
	require.Contains(t, out, "Added provider aliyun")

	out, err = run(t, "provider", "list")
	require.NoError(t, err)
	require.Contains(t, out, "aliyun")
	require.NotContains(t, out, "sk")

	out, err = run(t, "sync", "--type", "ecs.g7.large", "--type", "ecs.nope")
	require.NoError(t, err)
	require.Contains(t, out, "Synced 1 instance types for aliyun")
	require.Contains(t, out, "Not offered by aliyun: ecs.nope")

	out, err = run(t, "sync")
	require.NoError(t, err)
	require.Contains(t, out, "Synced 2 instance types for aliyun")

	out, err = run(t, "search", "--region", "cn-hangzhou", "--zone", "cn-hangzhou-h")
	require.NoError(t, err)
	require.Contains(t, out, "ecs.g7.large")
	require.Contains(t, out, "0.2500")
	// a failed quote still lists the type
	require.Contains(t, out, "1 x NVIDIA A10")
	require.Contains(t, out, "n/a")
	require.Contains(t, out, "2 of 2 matching types")

	out, err = run(t, "search", "--region", "cn-hangzhou", "--cpu", "16")
	require.NoError(t, err)
	require.Contains(t, out, "No instance types match")

	out, err = run(t, "prices", "ecs.g7.large", "--region", "cn-hangzhou")
	require.NoError(t, err)
	require.Contains(t, out, "instancetype")

	out, err = run(t, "zones", "cn-hangzhou")
	require.NoError(t, err)
	require.Contains(t, out, "cn-hangzhou-h")

	out, err = run(t, "provider", "rm", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Removed provider 1")
}

func TestSearchRequiresRegion(t *testing.T) {
	writeTestConfig(t)
	_, err := run(t, "search")
	require.Error(t, err)
}

func TestMissingCredentialKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"db_path":":memory:"}`), 0o600))
	t.Setenv(config.EnvPath, path)

	_, err := run(t, "provider", "list")
	require.Error(t, err)
}

func TestNetworksAndGroups(t *testing.T) {
	useFakeVendor(t)
	writeTestConfig(t)

	_, err := run(t, "provider", "add", "aliyun", "--access-key", "ak", "--secret-key", "sk")
	require.NoError(t, err)

	out, err := run(t, "vpcs", "cn-hangzhou")
	require.NoError(t, err)
	require.Contains(t, out, "vpc-a")
	require.Contains(t, out, "172.16.0.0/12")

	out, err = run(t, "subnets", "cn-hangzhou", "--vpc", "vpc-a")
	require.NoError(t, err)
	require.Contains(t, out, "vsw-1")
	require.Contains(t, out, "cn-hangzhou-h")

	out, err = run(t, "security-groups", "cn-hangzhou")
	require.NoError(t, err)
	require.Contains(t, out, "sg-1")

	out, err = run(t, "images", "cn-hangzhou")
	require.NoError(t, err)
	require.Contains(t, out, "Alibaba Cloud Linux 3")

	out, err = run(t, "group", "list")
	require.NoError(t, err)
	require.Contains(t, out, "No resource groups.")

	out, err = run(t, "group", "add", "web", "Web tier")
	require.NoError(t, err)
	require.Contains(t, out, "Added resource group web (id 1)")

	out, err = run(t, "group", "bind", "1", "vpc", "vpc-a")
	require.NoError(t, err)
	require.Contains(t, out, "Bound vpc vpc-a to group 1 (binding 1)")

	_, err = run(t, "group", "bind", "1", "vpc", "vpc-a")
	require.Error(t, err)

	out, err = run(t, "group", "show", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Web tier (web): 1 bound resources")
	require.Contains(t, out, "vpc-a")

	out, err = run(t, "group", "unbind", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Removed binding 1")

	_, err = run(t, "group", "rm", "zero")
	require.Error(t, err)
	out, err = run(t, "group", "rm", "1")
	require.NoError(t, err)
	require.Contains(t, out, "Removed resource group 1")
}
