package http

import (
	"encoding/json"
	"net/http"

	"Portfolio/internal/model"
	"Portfolio/internal/service"
)

// ListGuestbook обрабатывает GET /api/guestbook
func (h *Handler) ListGuestbook(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Community.ListGuestbook(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.GuestbookEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": list})
}

// PostGuestbook обрабатывает POST /api/guestbook; частота ограничивается по IP клиента
func (h *Handler) PostGuestbook(w http.ResponseWriter, r *http.Request) {
	var f service.GuestbookForm
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	e, err := h.d.Community.PostGuestbook(r.Context(), f, h.d.IPs.ClientIP(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// SubmitContact обрабатывает POST /api/contact
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var f service.ContactForm
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	c, err := h.d.Community.SubmitContact(r.Context(), f, h.d.IPs.ClientIP(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "id": c.ID})
}

// AdminListContacts обрабатывает GET /api/admin/contacts
func (h *Handler) AdminListContacts(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Community.ListContacts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Contact{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contacts": list})
}

// AdminModerateGuestbook обрабатывает PATCH /api/admin/guestbook/{id} с телом {"approved":bool}
func (h *Handler) AdminModerateGuestbook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req struct {
		Approved *bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Approved == nil {
		badRequest(w, "approved is required")
		return
	}
	if err := h.d.Community.ModerateGuestbook(r.Context(), id, *req.Approved); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "moderated": *req.Approved})
}
