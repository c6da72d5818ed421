package httpapi

import (
	"net/http"
)

func (h *handler) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.b.Regions.ListRegions(r.Context(), h.providerCode(newQuery(r)))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, regions)
}

func (h *handler) handleZones(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	zones, err := h.b.Regions.ListZones(r.Context(), h.providerCode(q), q.str("region_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, zones)
}
