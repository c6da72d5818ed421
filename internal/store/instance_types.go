package store

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/emaland/cmp/internal/cloud"
)

// fetchChunkSize bounds the number of ids in one IN (...) clause.
const fetchChunkSize = 500

var instanceTypeColumns = []string{
	"instance_type_id",
	"instance_family",
	"generation",
	"cpu_core_count",
	"memory_size",
	"architecture",
	"gpu_amount",
	"gpu_spec",
	"gpu_memory",
	"local_storage_amount",
	"local_storage_capacity",
	"network_performance",
	"is_io_optimized",
	"price",
	"cloud_provider_code",
	"created_at",
	"updated_at",
}

// instanceTypeMutable is overwritten when a synced record already exists.
var instanceTypeMutable = []string{
	"instance_family",
	"generation",
	"cpu_core_count",
	"memory_size",
	"architecture",
	"gpu_amount",
	"gpu_spec",
	"gpu_memory",
	"local_storage_amount",
	"local_storage_capacity",
	"network_performance",
	"is_io_optimized",
	"price",
	"updated_at",
}

var instanceTypeUpsertSuffix = func() string {
	sets := make([]string, 0, len(instanceTypeMutable))
	for _, c := range instanceTypeMutable {
		sets = append(sets, c+" = excluded."+c)
	}
	return "ON CONFLICT (cloud_provider_code, instance_type_id) DO UPDATE SET " + strings.Join(sets, ", ")
}()

// InstanceTypes is the catalog mirror.
type InstanceTypes struct {
	store *SqlStore
	now   func() time.Time
}

func NewInstanceTypes(store *SqlStore) *InstanceTypes {
	return &InstanceTypes{store: store, now: time.Now}
}

// BulkUpsert writes records for providerCode in one transaction. Existing
// rows keep created_at and get the mutable fields of the new record.
func (r *InstanceTypes) BulkUpsert(ctx context.Context, providerCode string, records []cloud.InstanceType) error {
	if len(records) == 0 {
		return nil
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	tx, err := r.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	for _, rec := range records {
		query, args, err := sq.Insert("instance_types").
			Columns(instanceTypeColumns...).
			Values(
				rec.InstanceTypeID,
				rec.InstanceFamily,
				rec.Generation,
				rec.CPUCoreCount,
				rec.MemorySize,
				rec.Architecture,
				rec.GPUAmount,
				rec.GPUSpec,
				rec.GPUMemory,
				rec.LocalStorageAmount,
				rec.LocalStorageCapacity,
				rec.NetworkPerformance,
				rec.IsIOOptimized,
				rec.Price,
				providerCode,
				now,
				now,
			).
			Suffix(instanceTypeUpsertSuffix).
			ToSql()
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetByProvider returns the provider's whole catalog ordered by id.
func (r *InstanceTypes) GetByProvider(ctx context.Context, providerCode string) ([]cloud.InstanceType, error) {
	query, args, err := sq.Select(instanceTypeColumns...).
		From("instance_types").
		Where(sq.Eq{"cloud_provider_code": providerCode}).
		OrderBy("instance_type_id").
		ToSql()
	if err != nil {
		return nil, err
	}

	out := []cloud.InstanceType{}
	if err := r.store.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchFetchByIDs returns the provider's records for ids, keyed by instance
// type id. Ids with no record are absent from the map.
func (r *InstanceTypes) BatchFetchByIDs(ctx context.Context, providerCode string, ids []string) (map[string]cloud.InstanceType, error) {
	out := make(map[string]cloud.InstanceType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	for start := 0; start < len(unique); start += fetchChunkSize {
		end := start + fetchChunkSize
		if end > len(unique) {
			end = len(unique)
		}
		query, args, err := sq.Select(instanceTypeColumns...).
			From("instance_types").
			Where(sq.Eq{"cloud_provider_code": providerCode}).
			Where(sq.Eq{"instance_type_id": unique[start:end]}).
			ToSql()
		if err != nil {
			return nil, err
		}

		var rows []cloud.InstanceType
		if err := r.store.DB.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.InstanceTypeID] = row
		}
	}
	return out, nil
}
