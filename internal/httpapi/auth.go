package httpapi

import (
	"net/http"

	"github.com/emaland/cmp/internal/auth"
	"github.com/emaland/cmp/internal/errs"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := h.decodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.b.Auth.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, p)
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := h.decodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	pair, err := h.b.Auth.Login(r.Context(), req, auth.ClientInfo{IP: r.RemoteAddr, UserAgent: r.UserAgent()})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, pair)
}

func (h *handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := h.decodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		h.fail(w, r, errs.New(errs.EInvalid, "refresh_token is required"))
		return
	}
	pair, err := h.b.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, pair)
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.b.Auth.Logout(r.Context(), claimsFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, nil)
}

func (h *handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.b.Auth.Me(r.Context(), claimsFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, p)
}
