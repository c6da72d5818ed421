package aliyun

import (
	"fmt"

	"yunion.io/x/jsonutils"
)

// fieldAliases maps a canonical attribute to the payload keys ECS has used
// for it, in lookup order.
type fieldAliases map[string][]string

var instanceTypeFields = fieldAliases{
	"instance_type_id":       {"InstanceTypeId", "InstanceType", "instance_type_id", "Value"},
	"instance_family":        {"InstanceTypeFamily", "InstanceFamily", "instance_type_family"},
	"cpu_core_count":         {"CpuCoreCount", "cpu_core_count", "Cpu"},
	"memory_size":            {"MemorySize", "memory_size", "Memory"},
	"architecture":           {"CpuArchitecture", "cpu_architecture", "Architecture"},
	"gpu_amount":             {"GPUAmount", "GpuAmount", "gpu_amount"},
	"gpu_spec":               {"GPUSpec", "GpuSpec", "gpu_spec"},
	"gpu_memory":             {"GPUMemorySize", "GpuMemorySize", "gpu_memory_size"},
	"local_storage_amount":   {"LocalStorageAmount", "local_storage_amount"},
	"local_storage_capacity": {"LocalStorageCapacity", "local_storage_capacity"},
	"io_optimized":           {"IoOptimized", "io_optimized"},
	"bandwidth_rx":           {"InstanceBandwidthRx", "instance_bandwidth_rx"},
	"bandwidth_tx":           {"InstanceBandwidthTx", "instance_bandwidth_tx"},
	"pps_rx":                 {"InstancePpsRx", "instance_pps_rx"},
	"pps_tx":                 {"InstancePpsTx", "instance_pps_tx"},
}

// availabilityFields reads DescribeAvailableResource entries, which carry the
// type name in Value.
var availabilityFields = fieldAliases{
	"instance_type_id": {"Value", "InstanceType", "InstanceTypeId", "instance_type_id"},
}

var requiredInstanceTypeFields = []string{
	"instance_type_id",
	"instance_family",
	"cpu_core_count",
	"memory_size",
	"architecture",
	"gpu_amount",
	"gpu_spec",
}

func (a fieldAliases) validate(required ...string) error {
	for _, f := range required {
		if len(a[f]) == 0 {
			return fmt.Errorf("aliyun: no payload keys for %s", f)
		}
	}
	seen := map[string]string{}
	for field, keys := range a {
		for _, k := range keys {
			if prev, ok := seen[k]; ok && prev != field {
				return fmt.Errorf("aliyun: payload key %s mapped to both %s and %s", k, prev, field)
			}
			seen[k] = field
		}
	}
	return nil
}

func (a fieldAliases) str(obj jsonutils.JSONObject, field string) string {
	return jsonutils.GetAnyString(obj, a[field])
}

func (a fieldAliases) int(obj jsonutils.JSONObject, field string) (int64, bool) {
	for _, k := range a[field] {
		if !obj.Contains(k) {
			continue
		}
		if v, err := obj.Int(k); err == nil {
			return v, true
		}
		if f, err := obj.Float(k); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func (a fieldAliases) float(obj jsonutils.JSONObject, field string) (float64, bool) {
	for _, k := range a[field] {
		if !obj.Contains(k) {
			continue
		}
		if v, err := obj.Float(k); err == nil {
			return v, true
		}
		if i, err := obj.Int(k); err == nil {
			return float64(i), true
		}
	}
	return 0, false
}

func (a fieldAliases) bool(obj jsonutils.JSONObject, field string, def bool) bool {
	for _, k := range a[field] {
		if !obj.Contains(k) {
			continue
		}
		if v, err := obj.Bool(k); err == nil {
			return v
		}
		s, _ := obj.GetString(k)
		switch s {
		case "optimized":
			return true
		case "none":
			return false
		}
	}
	return def
}

// listOf returns the array under keys. A missing container is an empty
// list, a single object is a one-element list, anything else is malformed.
func listOf(obj jsonutils.JSONObject, keys ...string) ([]jsonutils.JSONObject, error) {
	if !obj.Contains(keys...) {
		return nil, nil
	}
	v, err := obj.Get(keys...)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case *jsonutils.JSONArray:
		return t.GetArray()
	case *jsonutils.JSONDict:
		return []jsonutils.JSONObject{t}, nil
	}
	return nil, fmt.Errorf("aliyun: %v is %T, want list", keys, v)
}
