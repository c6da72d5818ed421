package aliyun

import (
	"context"
	"strconv"

	"yunion.io/x/jsonutils"

	"github.com/emaland/cmp/internal/cloud"
)

// walkPages calls action with PageNumber 1, 2, ... until TotalCount items
// were seen or a page comes back empty.
func (c *Client) walkPages(ctx context.Context, action string, params map[string]string, pageSize int, keys []string, fn func(jsonutils.JSONObject)) error {
	seen := 0
	for page := 1; ; page++ {
		p := map[string]string{
			"PageNumber": strconv.Itoa(page),
			"PageSize":   strconv.Itoa(pageSize),
		}
		for k, v := range params {
			p[k] = v
		}
		body, err := c.api.call(ctx, action, p)
		if err != nil {
			return err
		}
		items, err := listOf(body, keys...)
		if err != nil {
			return err
		}
		for _, item := range items {
			fn(item)
		}
		seen += len(items)
		total, _ := body.Int("TotalCount")
		if len(items) == 0 || int64(seen) >= total {
			return nil
		}
	}
}

func (c *Client) ListVPCs(ctx context.Context, regionID string) ([]cloud.VPC, error) {
	vpcs := []cloud.VPC{}
	err := c.walkPages(ctx, "DescribeVpcs", map[string]string{"RegionId": regionID}, 50,
		[]string{"Vpcs", "Vpc"}, func(item jsonutils.JSONObject) {
			id, _ := item.GetString("VpcId")
			if id == "" {
				return
			}
			v := cloud.VPC{RegionID: regionID, VPCID: id}
			v.VPCName, _ = item.GetString("VpcName")
			v.CIDRBlock, _ = item.GetString("CidrBlock")
			v.IsDefault, _ = item.Bool("IsDefault")
			vpcs = append(vpcs, v)
		})
	if err != nil {
		return nil, err
	}
	return vpcs, nil
}

func (c *Client) ListVSwitches(ctx context.Context, regionID, vpcID string) ([]cloud.VSwitch, error) {
	params := map[string]string{"RegionId": regionID}
	if vpcID != "" {
		params["VpcId"] = vpcID
	}
	vswitches := []cloud.VSwitch{}
	err := c.walkPages(ctx, "DescribeVSwitches", params, 50,
		[]string{"VSwitches", "VSwitch"}, func(item jsonutils.JSONObject) {
			id, _ := item.GetString("VSwitchId")
			if id == "" {
				return
			}
			v := cloud.VSwitch{RegionID: regionID, VPCID: vpcID, VSwitchID: id}
			if owner, _ := item.GetString("VpcId"); owner != "" {
				v.VPCID = owner
			}
			v.VSwitchName, _ = item.GetString("VSwitchName")
			v.CIDRBlock, _ = item.GetString("CidrBlock")
			v.ZoneID, _ = item.GetString("ZoneId")
			vswitches = append(vswitches, v)
		})
	if err != nil {
		return nil, err
	}
	return vswitches, nil
}

func (c *Client) ListSecurityGroups(ctx context.Context, regionID, vpcID string) ([]cloud.SecurityGroup, error) {
	params := map[string]string{"RegionId": regionID}
	if vpcID != "" {
		params["VpcId"] = vpcID
	}
	groups := []cloud.SecurityGroup{}
	err := c.walkPages(ctx, "DescribeSecurityGroups", params, 50,
		[]string{"SecurityGroups", "SecurityGroup"}, func(item jsonutils.JSONObject) {
			id, _ := item.GetString("SecurityGroupId")
			if id == "" {
				return
			}
			g := cloud.SecurityGroup{RegionID: regionID, SecurityGroupID: id}
			g.VPCID, _ = item.GetString("VpcId")
			g.SecurityGroupName, _ = item.GetString("SecurityGroupName")
			g.Description, _ = item.GetString("Description")
			groups = append(groups, g)
		})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ListImages lists the images usable in the region, system images and the
// account's own.
func (c *Client) ListImages(ctx context.Context, q cloud.ImageQuery) ([]cloud.Image, error) {
	params := map[string]string{"RegionId": q.RegionID}
	if q.OSType != "" {
		params["OSType"] = q.OSType
	}
	if q.Architecture != "" {
		params["Architecture"] = q.Architecture
	}
	images := []cloud.Image{}
	err := c.walkPages(ctx, "DescribeImages", params, 100,
		[]string{"Images", "Image"}, func(item jsonutils.JSONObject) {
			id, _ := item.GetString("ImageId")
			if id == "" {
				return
			}
			img := cloud.Image{ImageID: id}
			img.ImageName, _ = item.GetString("ImageName")
			img.OSType, _ = item.GetString("OSType")
			img.Architecture, _ = item.GetString("Architecture")
			images = append(images, img)
		})
	if err != nil {
		return nil, err
	}
	return images, nil
}
