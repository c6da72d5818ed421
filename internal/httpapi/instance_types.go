package httpapi

import (
	"net/http"
	"strings"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/errs"
	"github.com/emaland/cmp/internal/instancetype"
)

// handleAvailableTypes is the HTTP handler for GET /instance_type/available_type.
func (h *handler) handleAvailableTypes(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	c := instancetype.Criteria{
		ProviderCode: h.providerCode(q),
		RegionID:     q.str("region_id"),
		ZoneID:       q.str("zone_id"),
		ChargeType:   q.chargeType("instance_charge_type"),
		DiskCategory: q.str("system_disk_category"),
		CPU:          q.optInt("cpu_number"),
		Memory:       q.optFloat("memory_number"),
		GPUSpec:      q.str("gpu_spec"),
		GPUName:      q.str("gpu_name"),
		HideSoldOut:  q.boolDefault("hide_soldout", true),
		Page:         q.intDefault("page", 1),
		PageSize:     q.intDefault("page_size", instancetype.DefaultPageSize),
	}
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}

	page, err := h.b.InstanceTypes.SearchAvailable(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, page)
}

// handleListCatalog is the HTTP handler for GET /instance_type/list.
func (h *handler) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	code := h.providerCode(newQuery(r))
	if code == "" {
		h.fail(w, r, errs.New(errs.EInvalid, "provider_code is required"))
		return
	}
	items, err := h.b.InstanceTypes.ListCatalog(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, items)
}

// handleSyncCatalog is the HTTP handler for POST /instance_type/sync.
func (h *handler) handleSyncCatalog(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	code := h.providerCode(q)
	filter := cloud.CatalogFilter{
		MinCPU:       q.intDefault("min_cpu", 0),
		Architecture: q.str("architecture"),
		BareMetal:    q.optBool("bare_metal"),
	}
	if m := q.optFloat("min_memory"); m != nil {
		filter.MinMemory = *m
	}
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}
	if code == "" {
		h.fail(w, r, errs.New(errs.EInvalid, "provider_code is required"))
		return
	}

	if names := q.str("instance_types"); names != "" {
		n, missing, err := h.b.InstanceTypes.SyncTypes(r.Context(), code, strings.Split(names, ","))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.respond(w, http.StatusOK, map[string]interface{}{"provider_code": code, "synced": n, "missing": missing})
		return
	}

	n, err := h.b.InstanceTypes.SyncCatalog(r.Context(), code, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"provider_code": code, "synced": n})
}

// handlePrice is the HTTP handler for GET /instance_type/price.
func (h *handler) handlePrice(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	code := h.providerCode(q)
	pq := cloud.PriceQuery{
		RegionID:     q.str("region_id"),
		InstanceType: q.str("instance_type"),
		ChargeType:   q.chargeType("instance_charge_type"),
		Period:       q.intDefault("period", 1),
	}
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}

	prices, err := h.b.InstanceTypes.PricingOptions(r.Context(), code, pq)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, prices)
}
