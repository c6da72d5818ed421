package aliyun

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"yunion.io/x/jsonutils"

	"github.com/emaland/cmp/internal/cloud"
)

const instanceTypesPageSize = 1600

// ListAllInstanceTypes walks the DescribeInstanceTypes pages and returns
// the normalized catalog that passes filter.
func (c *Client) ListAllInstanceTypes(ctx context.Context, filter cloud.CatalogFilter) ([]cloud.InstanceType, error) {
	var (
		result    []cloud.InstanceType
		fetched   int
		nextToken string
	)
	for {
		params := map[string]string{
			"RegionId":   c.defaultRegion,
			"MaxResults": strconv.Itoa(instanceTypesPageSize),
		}
		if nextToken != "" {
			params["NextToken"] = nextToken
		}
		body, err := c.api.call(ctx, "DescribeInstanceTypes", params)
		if err != nil {
			return nil, err
		}
		items, err := listOf(body, "InstanceTypes", "InstanceType")
		if err != nil {
			return nil, err
		}
		fetched += len(items)
		for _, item := range items {
			it := parseInstanceType(item)
			if it.InstanceTypeID == "" {
				continue
			}
			if filter.Match(it) {
				result = append(result, it)
			}
		}
		nextToken, _ = body.GetString("NextToken")
		if nextToken == "" || len(items) == 0 {
			break
		}
	}

	if fetched == 0 {
		c.log.Warn("DescribeInstanceTypes returned no instance types",
			zap.String("region_id", c.defaultRegion),
			zap.Int("min_cpu", filter.MinCPU),
			zap.Float64("min_memory", filter.MinMemory),
			zap.String("architecture", filter.Architecture))
		return []cloud.InstanceType{}, nil
	}
	c.log.Debug("Fetched instance types", zap.Int("fetched", fetched), zap.Int("matched", len(result)))
	if result == nil {
		result = []cloud.InstanceType{}
	}
	return result, nil
}

// describeBatch is the InstanceTypes.N limit of DescribeInstanceTypes.
const describeBatch = 10

// DescribeInstanceTypes looks up the named instance types. Names ECS does
// not know are left out of the result.
func (c *Client) DescribeInstanceTypes(ctx context.Context, ids []string) ([]cloud.InstanceType, error) {
	result := []cloud.InstanceType{}
	for i := 0; i < len(ids); i += describeBatch {
		end := i + describeBatch
		if end > len(ids) {
			end = len(ids)
		}
		params := map[string]string{"RegionId": c.defaultRegion}
		for n, id := range ids[i:end] {
			params["InstanceTypes."+strconv.Itoa(n+1)] = id
		}
		body, err := c.api.call(ctx, "DescribeInstanceTypes", params)
		if err != nil {
			return nil, err
		}
		items, err := listOf(body, "InstanceTypes", "InstanceType")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if it := parseInstanceType(item); it.InstanceTypeID != "" {
				result = append(result, it)
			}
		}
	}
	return result, nil
}

func parseInstanceType(obj jsonutils.JSONObject) cloud.InstanceType {
	f := instanceTypeFields
	it := cloud.InstanceType{
		InstanceTypeID: f.str(obj, "instance_type_id"),
		InstanceFamily: f.str(obj, "instance_family"),
		Architecture:   f.str(obj, "architecture"),
		GPUSpec:        f.str(obj, "gpu_spec"),
		IsIOOptimized:  f.bool(obj, "io_optimized", true),
	}
	it.Generation = cloud.GenerationOf(it.InstanceFamily)
	if v, ok := f.int(obj, "cpu_core_count"); ok {
		it.CPUCoreCount = int(v)
	}
	if v, ok := f.float(obj, "memory_size"); ok {
		it.MemorySize = v
	}
	if v, ok := f.int(obj, "gpu_amount"); ok {
		it.GPUAmount = int(v)
	}
	if v, ok := f.float(obj, "gpu_memory"); ok {
		it.GPUMemory = &v
	}
	if v, ok := f.int(obj, "local_storage_amount"); ok {
		n := int(v)
		it.LocalStorageAmount = &n
	}
	if v, ok := f.int(obj, "local_storage_capacity"); ok {
		n := int(v)
		it.LocalStorageCapacity = &n
	}
	it.NetworkPerformance = networkPerformance(obj)
	return it
}

func networkPerformance(obj jsonutils.JSONObject) string {
	perf := jsonutils.NewDict()
	n := 0
	for _, field := range []string{"bandwidth_rx", "bandwidth_tx", "pps_rx", "pps_tx"} {
		if v, ok := instanceTypeFields.int(obj, field); ok {
			perf.Add(jsonutils.NewInt(v), field)
			n++
		}
	}
	if n == 0 {
		return ""
	}
	return perf.String()
}
