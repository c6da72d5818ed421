package cloud

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InstanceType is the vendor-independent description of a compute SKU.
type InstanceType struct {
	InstanceTypeID       string              `json:"instance_type_id" db:"instance_type_id"`
	InstanceFamily       string              `json:"instance_family" db:"instance_family"`
	Generation           string              `json:"generation" db:"generation"`
	CPUCoreCount         int                 `json:"cpu_core_count" db:"cpu_core_count"`
	MemorySize           float64             `json:"memory_size" db:"memory_size"`
	Architecture         string              `json:"architecture" db:"architecture"`
	GPUAmount            int                 `json:"gpu_amount" db:"gpu_amount"`
	GPUSpec              string              `json:"gpu_spec" db:"gpu_spec"`
	GPUMemory            *float64            `json:"gpu_memory" db:"gpu_memory"`
	LocalStorageAmount   *int                `json:"local_storage_amount" db:"local_storage_amount"`
	LocalStorageCapacity *int                `json:"local_storage_capacity" db:"local_storage_capacity"`
	NetworkPerformance   string              `json:"network_performance" db:"network_performance"`
	IsIOOptimized        bool                `json:"is_io_optimized" db:"is_io_optimized"`
	Price                decimal.NullDecimal `json:"price" db:"price"`
	CloudProviderCode    string              `json:"cloud_provider_code" db:"cloud_provider_code"`
	CreatedAt            time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" db:"updated_at"`
}

// IsBareMetal reports whether the family or generation names a bare metal
// offering, or the type is an EC2 ".metal" size.
func (t InstanceType) IsBareMetal() bool {
	if strings.Contains(strings.ToLower(t.InstanceTypeID), ".metal") {
		return true
	}
	for _, s := range []string{strings.ToLower(t.InstanceFamily), strings.ToLower(t.Generation)} {
		if strings.Contains(s, "ebm") || strings.Contains(s, "bare") {
			return true
		}
	}
	return false
}

// GenerationOf returns the suffix of family after its last '.', or the
// whole family when it has no separator.
func GenerationOf(family string) string {
	if i := strings.LastIndex(family, "."); i >= 0 {
		return family[i+1:]
	}
	return family
}

// Stock categories reported by vendors.
const (
	StatusAvailable = "Available"
	StatusSoldOut   = "SoldOut"

	CategoryWithStock       = "WithStock"
	CategoryClosedWithStock = "ClosedWithStock"
	CategoryWithoutStock    = "WithoutStock"
)

// Availability pairs an instance type with its stock state in one zone.
type Availability struct {
	InstanceTypeID string `json:"instance_type_id"`
	Status         string `json:"status"`
	StatusCategory string `json:"status_category"`
}

// ChargeType is a billing model.
type ChargeType string

const (
	PostPaid ChargeType = "PostPaid"
	PrePaid  ChargeType = "PrePaid"
	Spot     ChargeType = "Spot"
)

// ParseChargeType accepts the vendor spellings used by API callers. An empty
// string means PostPaid.
func ParseChargeType(s string) (ChargeType, bool) {
	switch strings.ToLower(s) {
	case "", "postpaid", "payasyougo":
		return PostPaid, true
	case "prepaid", "subscription":
		return PrePaid, true
	case "spot", "spotaspricego", "preemptible":
		return Spot, true
	}
	return "", false
}

// CatalogFilter narrows a full catalog listing. Zero values disable a filter.
type CatalogFilter struct {
	MinCPU       int
	MinMemory    float64
	Architecture string
	BareMetal    *bool
}

// Match applies the filter. CPU and memory are lower bounds.
func (f CatalogFilter) Match(t InstanceType) bool {
	if !AtLeast(float64(t.CPUCoreCount), float64(f.MinCPU)) {
		return false
	}
	if !AtLeast(t.MemorySize, f.MinMemory) {
		return false
	}
	if f.Architecture != "" && !architectureMatches(t.Architecture, f.Architecture) {
		return false
	}
	if f.BareMetal != nil && t.IsBareMetal() != *f.BareMetal {
		return false
	}
	return true
}

// AtLeast is the lower-bound predicate used by catalog filtering.
func AtLeast(v, min float64) bool {
	return min <= 0 || v >= min
}

func architectureMatches(have, want string) bool {
	have, want = strings.ToLower(have), strings.ToLower(want)
	switch {
	case strings.HasPrefix(want, "x86"):
		return strings.HasPrefix(have, "x86")
	case strings.HasPrefix(want, "arm"):
		return strings.HasPrefix(have, "arm")
	}
	return have == want
}

// AvailabilityQuery scopes a live availability lookup.
type AvailabilityQuery struct {
	RegionID       string
	ZoneID         string
	ChargeType     ChargeType
	DiskCategory   string
	IncludeSoldOut bool
}

// PriceQuery scopes a single price quote.
type PriceQuery struct {
	RegionID     string
	InstanceType string
	ChargeType   ChargeType
	Period       int
}

// Price keys returned by ListPricingOptions.
const (
	PriceKeyInstanceType = "instancetype"
	PriceKeySystemDisk   = "systemdisk"
)

// DefaultPricing is returned when no disk category can be quoted.
func DefaultPricing() map[string]float64 {
	return map[string]float64{
		PriceKeyInstanceType: 0,
		PriceKeySystemDisk:   0,
	}
}

type Region struct {
	ProviderCode string `json:"provider_code" db:"provider_code"`
	RegionID     string `json:"region_id" db:"region_id"`
	RegionName   string `json:"region_name" db:"region_name"`
}

type Zone struct {
	ProviderCode string `json:"provider_code" db:"provider_code"`
	RegionID     string `json:"region_id" db:"region_id"`
	ZoneID       string `json:"zone_id" db:"zone_id"`
	ZoneName     string `json:"zone_name" db:"zone_name"`
}
