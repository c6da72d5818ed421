package httpapi

import (
	"net/http"

	"github.com/emaland/cmp/internal/cloud"
)

func (h *handler) handleVPCs(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	vpcs, err := h.b.Networks.ListVPCs(r.Context(), h.providerCode(q), q.str("region_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, vpcs)
}

func (h *handler) handleVSwitches(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	vswitches, err := h.b.Networks.ListVSwitches(r.Context(), h.providerCode(q), q.str("region_id"), q.str("vpc_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, vswitches)
}

func (h *handler) handleSecurityGroups(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	groups, err := h.b.Networks.ListSecurityGroups(r.Context(), h.providerCode(q), q.str("region_id"), q.str("vpc_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, groups)
}

func (h *handler) handleImages(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	images, err := h.b.Networks.ListImages(r.Context(), h.providerCode(q), cloud.ImageQuery{
		RegionID:     q.str("region_id"),
		OSType:       q.str("os_type"),
		Architecture: q.str("architecture"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, images)
}
