package aliyun

import (
	"context"

	"github.com/emaland/cmp/internal/cloud"
)

// ListAvailableInstanceTypes reports the instance types ECS can place in
// the zone. Sold out entries are always dropped; unless q.IncludeSoldOut is
// set only entries with stock are kept.
func (c *Client) ListAvailableInstanceTypes(ctx context.Context, q cloud.AvailabilityQuery) ([]cloud.Availability, error) {
	params := map[string]string{
		"RegionId":            q.RegionID,
		"DestinationResource": "InstanceType",
	}
	if q.ZoneID != "" {
		params["ZoneId"] = q.ZoneID
	}
	chargeParams(params, q.ChargeType)
	if q.DiskCategory != "" {
		params["SystemDiskCategory"] = q.DiskCategory
	}

	body, err := c.api.call(ctx, "DescribeAvailableResource", params)
	if err != nil {
		return nil, err
	}
	zones, err := listOf(body, "AvailableZones", "AvailableZone")
	if err != nil {
		return nil, err
	}

	result := []cloud.Availability{}
	for _, zone := range zones {
		resources, err := listOf(zone, "AvailableResources", "AvailableResource")
		if err != nil {
			return nil, err
		}
		for _, res := range resources {
			supported, err := listOf(res, "SupportedResources", "SupportedResource")
			if err != nil {
				return nil, err
			}
			for _, s := range supported {
				a := cloud.Availability{
					InstanceTypeID: availabilityFields.str(s, "instance_type_id"),
				}
				a.Status, _ = s.GetString("Status")
				a.StatusCategory, _ = s.GetString("StatusCategory")
				if a.InstanceTypeID == "" || a.Status == cloud.StatusSoldOut {
					continue
				}
				if !q.IncludeSoldOut && a.StatusCategory != cloud.CategoryWithStock {
					continue
				}
				result = append(result, a)
			}
		}
	}
	return result, nil
}

// chargeParams sets the ECS billing parameters for ct.
func chargeParams(params map[string]string, ct cloud.ChargeType) {
	switch ct {
	case cloud.PrePaid:
		params["InstanceChargeType"] = "PrePaid"
	case cloud.Spot:
		params["InstanceChargeType"] = "PostPaid"
		params["SpotStrategy"] = "SpotAsPriceGo"
	default:
		params["InstanceChargeType"] = "PostPaid"
	}
}
