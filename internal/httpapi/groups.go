package httpapi

import (
	"net/http"

	"github.com/emaland/cmp/internal/inventory"
	"github.com/emaland/cmp/internal/store"
)

type groupPage struct {
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []store.ResourceGroup `json:"items"`
}

type bindingPage struct {
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Items    []store.Binding `json:"items"`
}

func (h *handler) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	var req inventory.GroupCreate
	if err := h.decodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.b.Groups.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, g)
}

func (h *handler) handleGroupUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd store.ResourceGroupUpdate
	if err := h.decodeJSON(r.Body, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.b.Groups.Update(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, g)
}

func (h *handler) handleGroupDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.b.Groups.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, nil)
}

func (h *handler) handleGroupPage(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	page := q.intDefault("page", 1)
	size := q.intDefault("page_size", 20)
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}
	items, total, err := h.b.Groups.Page(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, groupPage{Total: total, Page: page, PageSize: size, Items: items})
}

func (h *handler) handleBind(w http.ResponseWriter, r *http.Request) {
	var req inventory.BindRequest
	if err := h.decodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.b.Groups.Bind(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, b)
}

func (h *handler) handleUnbind(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.b.Groups.Unbind(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, nil)
}

func (h *handler) handleBindingPage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := newQuery(r)
	page := q.intDefault("page", 1)
	size := q.intDefault("page_size", 20)
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}
	items, total, err := h.b.Groups.Bindings(r.Context(), id, page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, bindingPage{Total: total, Page: page, PageSize: size, Items: items})
}
