package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/emaland/cmp/internal/cloud"
)

// Regions mirrors vendor regions and zones per provider.
type Regions struct {
	store *SqlStore
}

func NewRegions(store *SqlStore) *Regions {
	return &Regions{store: store}
}

func (r *Regions) ListRegions(ctx context.Context, providerCode string) ([]cloud.Region, error) {
	query, args, err := sq.Select("provider_code", "region_id", "region_name").
		From("cloud_regions").
		Where(sq.Eq{"provider_code": providerCode}).
		OrderBy("region_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	out := []cloud.Region{}
	if err := r.store.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Regions) UpsertRegions(ctx context.Context, providerCode string, regions []cloud.Region) error {
	if len(regions) == 0 {
		return nil
	}
	q := sq.Insert("cloud_regions").
		Columns("provider_code", "region_id", "region_name").
		Suffix("ON CONFLICT (provider_code, region_id) DO UPDATE SET region_name = excluded.region_name")
	for _, reg := range regions {
		q = q.Values(providerCode, reg.RegionID, reg.RegionName)
	}
	return r.exec(ctx, q)
}

func (r *Regions) ListZones(ctx context.Context, providerCode, regionID string) ([]cloud.Zone, error) {
	query, args, err := sq.Select("provider_code", "region_id", "zone_id", "zone_name").
		From("cloud_zones").
		Where(sq.Eq{"provider_code": providerCode, "region_id": regionID}).
		OrderBy("zone_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	out := []cloud.Zone{}
	if err := r.store.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Regions) UpsertZones(ctx context.Context, providerCode string, zones []cloud.Zone) error {
	if len(zones) == 0 {
		return nil
	}
	q := sq.Insert("cloud_zones").
		Columns("provider_code", "region_id", "zone_id", "zone_name").
		Suffix("ON CONFLICT (provider_code, zone_id) DO UPDATE SET region_id = excluded.region_id, zone_name = excluded.zone_name")
	for _, z := range zones {
		q = q.Values(providerCode, z.RegionID, z.ZoneID, z.ZoneName)
	}
	return r.exec(ctx, q)
}

func (r *Regions) exec(ctx context.Context, q sq.InsertBuilder) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()
	_, err = r.store.DB.ExecContext(ctx, query, args...)
	return err
}
