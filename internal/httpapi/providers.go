package httpapi

import (
	"net/http"

	"github.com/emaland/cmp/internal/inventory"
	"github.com/emaland/cmp/internal/store"
)

type providerPage struct {
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []store.Provider `json:"items"`
}

func (h *handler) handleProviderCreate(w http.ResponseWriter, r *http.Request) {
	var req inventory.ProviderCreate
	if err := h.decodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.b.Providers.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, p)
}

func (h *handler) handleProviderUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd store.ProviderUpdate
	if err := h.decodeJSON(r.Body, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.b.Providers.Update(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, p)
}

func (h *handler) handleProviderDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.b.Providers.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, nil)
}

func (h *handler) handleProviderPage(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	page := q.intDefault("page", 1)
	size := q.intDefault("page_size", 20)
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}
	items, total, err := h.b.Providers.Page(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []store.Provider{}
	}
	h.respond(w, http.StatusOK, providerPage{Total: total, Page: page, PageSize: size, Items: items})
}
