package aliyun

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
)

// SystemDiskCandidates are tried in order until ECS quotes one.
var SystemDiskCandidates = []string{"cloud_essd", "cloud_ssd", "cloud_efficiency", "cloud"}

// ListPricingOptions quotes q.InstanceType. Candidates rejected for their
// disk category are skipped; when none is accepted the zero default is
// returned. Any other vendor error is returned as is.
func (c *Client) ListPricingOptions(ctx context.Context, q cloud.PriceQuery) (map[string]float64, error) {
	for _, disk := range SystemDiskCandidates {
		prices, err := c.describePrice(ctx, q, disk)
		if errors.Is(err, cloud.ErrUnsupportedDiskCategory) {
			c.log.Debug("Disk category not supported",
				zap.String("instance_type", q.InstanceType),
				zap.String("disk_category", disk))
			continue
		}
		if err != nil {
			return nil, err
		}
		return prices, nil
	}
	return cloud.DefaultPricing(), nil
}

func (c *Client) describePrice(ctx context.Context, q cloud.PriceQuery, disk string) (map[string]float64, error) {
	params := map[string]string{
		"RegionId":            q.RegionID,
		"ResourceType":        "instance",
		"InstanceType":        q.InstanceType,
		"SystemDisk.Category": disk,
	}
	if q.ChargeType == cloud.PrePaid {
		period := q.Period
		if period <= 0 {
			period = 1
		}
		params["PriceUnit"] = "Month"
		params["Period"] = strconv.Itoa(period)
	} else {
		params["PriceUnit"] = "Hour"
		params["Period"] = "1"
	}
	if q.ChargeType == cloud.Spot {
		params["SpotStrategy"] = "SpotAsPriceGo"
	}

	body, err := c.api.call(ctx, "DescribePrice", params)
	if err != nil {
		return nil, err
	}
	details, err := listOf(body, "PriceInfo", "Price", "DetailInfos", "DetailInfo")
	if err != nil {
		return nil, err
	}
	prices := map[string]float64{}
	for _, d := range details {
		resource, _ := d.GetString("Resource")
		if resource == "" {
			continue
		}
		price, err := d.Float("TradePrice")
		if err != nil {
			if i, ierr := d.Int("TradePrice"); ierr == nil {
				price = float64(i)
			}
		}
		prices[strings.ToLower(resource)] = price
	}
	return prices, nil
}
