package awsutil

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/emaland/cmp/internal/cloud"
)

func (c *Client) ListRegions(ctx context.Context) ([]cloud.Region, error) {
	out, err := c.ec2("").DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("describing regions: %w", err)
	}
	regions := make([]cloud.Region, 0, len(out.Regions))
	for _, r := range out.Regions {
		name := aws.ToString(r.RegionName)
		regions = append(regions, cloud.Region{RegionID: name, RegionName: name})
	}
	return regions, nil
}

func (c *Client) ListZones(ctx context.Context, regionID string) ([]cloud.Zone, error) {
	out, err := c.ec2(regionID).DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{})
	if err != nil {
		return nil, fmt.Errorf("describing availability zones in %s: %w", regionID, err)
	}
	zones := make([]cloud.Zone, 0, len(out.AvailabilityZones))
	for _, z := range out.AvailabilityZones {
		zones = append(zones, cloud.Zone{
			RegionID: regionID,
			ZoneID:   aws.ToString(z.ZoneName),
			ZoneName: aws.ToString(z.ZoneName),
		})
	}
	return zones, nil
}
