package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/emaland/cmp/internal/cloud"
)

// Networks mirrors vendor VPCs, vswitches and security groups per provider.
type Networks struct {
	store *SqlStore
}

func NewNetworks(store *SqlStore) *Networks {
	return &Networks{store: store}
}

func (r *Networks) ListVPCs(ctx context.Context, providerCode, regionID string) ([]cloud.VPC, error) {
	query, args, err := sq.Select("provider_code", "region_id", "vpc_id", "vpc_name", "cidr_block", "is_default").
		From("cloud_vpcs").
		Where(sq.Eq{"provider_code": providerCode, "region_id": regionID}).
		OrderBy("vpc_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	out := []cloud.VPC{}
	if err := r.store.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Networks) UpsertVPCs(ctx context.Context, providerCode string, vpcs []cloud.VPC) error {
	if len(vpcs) == 0 {
		return nil
	}
	q := sq.Insert("cloud_vpcs").
		Columns("provider_code", "region_id", "vpc_id", "vpc_name", "cidr_block", "is_default").
		Suffix("ON CONFLICT (provider_code, vpc_id) DO UPDATE SET region_id = excluded.region_id, " +
			"vpc_name = excluded.vpc_name, cidr_block = excluded.cidr_block, is_default = excluded.is_default")
	for _, v := range vpcs {
		q = q.Values(providerCode, v.RegionID, v.VPCID, v.VPCName, v.CIDRBlock, v.IsDefault)
	}
	return r.exec(ctx, q)
}

// ListVSwitches lists the mirrored vswitches of a region, of one VPC when
// vpcID is set.
func (r *Networks) ListVSwitches(ctx context.Context, providerCode, regionID, vpcID string) ([]cloud.VSwitch, error) {
	pred := sq.Eq{"provider_code": providerCode, "region_id": regionID}
	if vpcID != "" {
		pred["vpc_id"] = vpcID
	}
	query, args, err := sq.Select("provider_code", "region_id", "vpc_id", "vswitch_id", "vswitch_name", "cidr_block", "zone_id").
		From("cloud_vswitches").
		Where(pred).
		OrderBy("vswitch_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	out := []cloud.VSwitch{}
	if err := r.store.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Networks) UpsertVSwitches(ctx context.Context, providerCode string, vswitches []cloud.VSwitch) error {
	if len(vswitches) == 0 {
		return nil
	}
	q := sq.Insert("cloud_vswitches").
		Columns("provider_code", "region_id", "vpc_id", "vswitch_id", "vswitch_name", "cidr_block", "zone_id").
		Suffix("ON CONFLICT (provider_code, vswitch_id) DO UPDATE SET region_id = excluded.region_id, " +
			"vpc_id = excluded.vpc_id, vswitch_name = excluded.vswitch_name, cidr_block = excluded.cidr_block, zone_id = excluded.zone_id")
	for _, v := range vswitches {
		q = q.Values(providerCode, v.RegionID, v.VPCID, v.VSwitchID, v.VSwitchName, v.CIDRBlock, v.ZoneID)
	}
	return r.exec(ctx, q)
}

func (r *Networks) ListSecurityGroups(ctx context.Context, providerCode, regionID, vpcID string) ([]cloud.SecurityGroup, error) {
	pred := sq.Eq{"provider_code": providerCode, "region_id": regionID}
	if vpcID != "" {
		pred["vpc_id"] = vpcID
	}
	query, args, err := sq.Select("provider_code", "region_id", "vpc_id", "security_group_id", "security_group_name", "description").
		From("cloud_security_groups").
		Where(pred).
		OrderBy("security_group_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	out := []cloud.SecurityGroup{}
	if err := r.store.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Networks) UpsertSecurityGroups(ctx context.Context, providerCode string, groups []cloud.SecurityGroup) error {
	if len(groups) == 0 {
		return nil
	}
	q := sq.Insert("cloud_security_groups").
		Columns("provider_code", "region_id", "vpc_id", "security_group_id", "security_group_name", "description").
		Suffix("ON CONFLICT (provider_code, security_group_id) DO UPDATE SET region_id = excluded.region_id, " +
			"vpc_id = excluded.vpc_id, security_group_name = excluded.security_group_name, description = excluded.description")
	for _, g := range groups {
		q = q.Values(providerCode, g.RegionID, g.VPCID, g.SecurityGroupID, g.SecurityGroupName, g.Description)
	}
	return r.exec(ctx, q)
}

func (r *Networks) exec(ctx context.Context, q sq.InsertBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()
	_, err = r.store.DB.ExecContext(ctx, query, args...)
	return err
}
