package instancetype

import (
	"github.com/emaland/cmp/internal/cloud"
)

// Candidate is a catalog record that is orderable in the searched zone.
type Candidate struct {
	cloud.InstanceType
	Status         string
	StatusCategory string
}

// availableIDs returns the distinct ids in vendor order.
func availableIDs(avail []cloud.Availability) []string {
	seen := make(map[string]struct{}, len(avail))
	ids := make([]string, 0, len(avail))
	for _, a := range avail {
		if _, ok := seen[a.InstanceTypeID]; ok {
			continue
		}
		seen[a.InstanceTypeID] = struct{}{}
		ids = append(ids, a.InstanceTypeID)
	}
	return ids
}

// Merge joins availability with catalog records. Vendor order is kept, the
// first entry for an id wins, and ids missing from the catalog are dropped.
func Merge(avail []cloud.Availability, catalog map[string]cloud.InstanceType) []Candidate {
	seen := make(map[string]struct{}, len(avail))
	out := make([]Candidate, 0, len(avail))
	for _, a := range avail {
		if _, ok := seen[a.InstanceTypeID]; ok {
			continue
		}
		seen[a.InstanceTypeID] = struct{}{}

		rec, ok := catalog[a.InstanceTypeID]
		if !ok {
			continue
		}
		out = append(out, Candidate{
			InstanceType:   rec,
			Status:         a.Status,
			StatusCategory: a.StatusCategory,
		})
	}
	return out
}
