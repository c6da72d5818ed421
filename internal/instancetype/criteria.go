// Package instancetype answers "what can I order in this zone right now,
// and what does it cost" by merging live vendor availability with the
// local catalog, filtering, paging and pricing the page.
package instancetype

import (
	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Criteria is one availability search.
type Criteria struct {
	ProviderCode string
	RegionID     string
	ZoneID       string
	ChargeType   cloud.ChargeType
	DiskCategory string

	// CPU and Memory are matched exactly; nil disables the filter.
	CPU    *int
	Memory *float64

	GPUSpec     string
	GPUName     string
	HideSoldOut bool

	Page     int
	PageSize int
}

func (c Criteria) Validate() error {
	switch {
	case c.ProviderCode == "":
		return errs.New(errs.EInvalid, "provider_code is required")
	case c.RegionID == "":
		return errs.New(errs.EInvalid, "region_id is required")
	case c.Page < 1:
		return errs.New(errs.EInvalid, "page must be at least 1")
	case c.PageSize < 1 || c.PageSize > MaxPageSize:
		return errs.Newf(errs.EInvalid, "page_size must be between 1 and %d", MaxPageSize)
	}
	switch c.ChargeType {
	case cloud.PostPaid, cloud.PrePaid, cloud.Spot:
	default:
		return errs.Newf(errs.EInvalid, "unknown instance_charge_type %q", c.ChargeType)
	}
	return nil
}
