package awsutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/emaland/cmp/internal/cloud"
)

// nameTag returns the Name tag, or "" when there is none.
func nameTag(tags []types.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == "Name" {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

func vpcFilter(vpcID string) []types.Filter {
	if vpcID == "" {
		return nil
	}
	return []types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}}
}

func (c *Client) ListVPCs(ctx context.Context, regionID string) ([]cloud.VPC, error) {
	vpcs := []cloud.VPC{}
	paginator := ec2.NewDescribeVpcsPaginator(c.ec2(regionID), &ec2.DescribeVpcsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing vpcs in %s: %w", regionID, err)
		}
		for _, v := range page.Vpcs {
			vpcs = append(vpcs, cloud.VPC{
				RegionID:  regionID,
				VPCID:     aws.ToString(v.VpcId),
				VPCName:   nameTag(v.Tags),
				CIDRBlock: aws.ToString(v.CidrBlock),
				IsDefault: aws.ToBool(v.IsDefault),
			})
		}
	}
	return vpcs, nil
}

// ListVSwitches lists the VPC subnets of the region.
func (c *Client) ListVSwitches(ctx context.Context, regionID, vpcID string) ([]cloud.VSwitch, error) {
	subnets := []cloud.VSwitch{}
	paginator := ec2.NewDescribeSubnetsPaginator(c.ec2(regionID), &ec2.DescribeSubnetsInput{Filters: vpcFilter(vpcID)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing subnets in %s: %w", regionID, err)
		}
		for _, s := range page.Subnets {
			subnets = append(subnets, cloud.VSwitch{
				RegionID:    regionID,
				VPCID:       aws.ToString(s.VpcId),
				VSwitchID:   aws.ToString(s.SubnetId),
				VSwitchName: nameTag(s.Tags),
				CIDRBlock:   aws.ToString(s.CidrBlock),
				ZoneID:      aws.ToString(s.AvailabilityZone),
			})
		}
	}
	return subnets, nil
}

func (c *Client) ListSecurityGroups(ctx context.Context, regionID, vpcID string) ([]cloud.SecurityGroup, error) {
	groups := []cloud.SecurityGroup{}
	paginator := ec2.NewDescribeSecurityGroupsPaginator(c.ec2(regionID), &ec2.DescribeSecurityGroupsInput{Filters: vpcFilter(vpcID)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing security groups in %s: %w", regionID, err)
		}
		for _, g := range page.SecurityGroups {
			groups = append(groups, cloud.SecurityGroup{
				RegionID:          regionID,
				VPCID:             aws.ToString(g.VpcId),
				SecurityGroupID:   aws.ToString(g.GroupId),
				SecurityGroupName: aws.ToString(g.GroupName),
				Description:       aws.ToString(g.Description),
			})
		}
	}
	return groups, nil
}

// ListImages lists the available Amazon owned and account owned AMIs.
func (c *Client) ListImages(ctx context.Context, q cloud.ImageQuery) ([]cloud.Image, error) {
	input := &ec2.DescribeImagesInput{
		Owners:  []string{"amazon", "self"},
		Filters: []types.Filter{{Name: aws.String("state"), Values: []string{"available"}}},
	}
	if q.Architecture != "" {
		input.Filters = append(input.Filters, types.Filter{Name: aws.String("architecture"), Values: []string{q.Architecture}})
	}
	if strings.EqualFold(q.OSType, "windows") {
		input.Filters = append(input.Filters, types.Filter{Name: aws.String("platform"), Values: []string{"windows"}})
	}

	images := []cloud.Image{}
	paginator := ec2.NewDescribeImagesPaginator(c.ec2(q.RegionID), input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing images in %s: %w", q.RegionID, err)
		}
		for _, img := range page.Images {
			osType := "linux"
			if img.Platform == types.PlatformValuesWindows {
				osType = "windows"
			}
			if strings.EqualFold(q.OSType, "linux") && osType != "linux" {
				continue
			}
			images = append(images, cloud.Image{
				ImageID:      aws.ToString(img.ImageId),
				ImageName:    aws.ToString(img.Name),
				OSType:       osType,
				Architecture: string(img.Architecture),
			})
		}
	}
	return images, nil
}
