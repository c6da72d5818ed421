package aliyun

import (
	"context"

	"github.com/emaland/cmp/internal/cloud"
)

func (c *Client) ListRegions(ctx context.Context) ([]cloud.Region, error) {
	body, err := c.api.call(ctx, "DescribeRegions", nil)
	if err != nil {
		return nil, err
	}
	items, err := listOf(body, "Regions", "Region")
	if err != nil {
		return nil, err
	}
	regions := make([]cloud.Region, 0, len(items))
	for _, item := range items {
		id, _ := item.GetString("RegionId")
		if id == "" {
			continue
		}
		name, _ := item.GetString("LocalName")
		regions = append(regions, cloud.Region{RegionID: id, RegionName: name})
	}
	return regions, nil
}

func (c *Client) ListZones(ctx context.Context, regionID string) ([]cloud.Zone, error) {
	body, err := c.api.call(ctx, "DescribeZones", map[string]string{"RegionId": regionID})
	if err != nil {
		return nil, err
	}
	items, err := listOf(body, "Zones", "Zone")
	if err != nil {
		return nil, err
	}
	zones := make([]cloud.Zone, 0, len(items))
	for _, item := range items {
		id, _ := item.GetString("ZoneId")
		if id == "" {
			continue
		}
		name, _ := item.GetString("LocalName")
		zones = append(zones, cloud.Zone{RegionID: regionID, ZoneID: id, ZoneName: name})
	}
	return zones, nil
}
