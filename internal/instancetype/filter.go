package instancetype

import (
	"strings"

	"github.com/emaland/cmp/internal/cloud"
)

// Filter drops candidates that fail any criterion. Order is preserved.
func Filter(cands []Candidate, c Criteria) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, cand := range cands {
		if c.HideSoldOut && cand.StatusCategory != cloud.CategoryWithStock {
			continue
		}
		if c.CPU != nil && !cpuCoreCountEquals(cand.CPUCoreCount, *c.CPU) {
			continue
		}
		if c.Memory != nil && !memorySizeEquals(cand.MemorySize, *c.Memory) {
			continue
		}
		if c.GPUSpec != "" && !gpuSpecContains(cand.GPUSpec, c.GPUSpec) {
			continue
		}
		if c.GPUName != "" && !gpuNameContains(cand.InstanceTypeID, c.GPUName) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// cpuCoreCountEquals is an exact match, unlike the catalog sync filter
// which treats cpu as a lower bound.
func cpuCoreCountEquals(have, want int) bool {
	return have == want
}

// memorySizeEquals is an exact match, see cpuCoreCountEquals.
func memorySizeEquals(have, want float64) bool {
	return have == want
}

func gpuSpecContains(spec, want string) bool {
	if spec == "" {
		return false
	}
	return strings.Contains(strings.ToLower(spec), strings.ToLower(want))
}

// gpuNameContains matches against the first token of the instance type id.
// There is no real GPU name field to match on.
func gpuNameContains(instanceTypeID, want string) bool {
	fields := strings.Fields(instanceTypeID)
	if len(fields) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(fields[0]), strings.ToLower(want))
}
