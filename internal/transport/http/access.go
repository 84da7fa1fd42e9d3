package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"Portfolio/internal/access"
	"Portfolio/internal/auth"
	"Portfolio/internal/model"
)

// SubmitAccessRequest обрабатывает POST /api/projects/{id}/access-requests.
// Ответ содержит дальнейшее действие: redirect на репозиторий или review
func (h *Handler) SubmitAccessRequest(w http.ResponseWriter, r *http.Request) {
	var req access.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	req.ProjectID = mux.Vars(r)["id"]
	// email из сессии подставляется, если форма его не содержит
	if id := auth.FromContext(r.Context()); strings.TrimSpace(req.Email) == "" && id.Authenticated() {
		req.Email = id.Email
	}
	out, err := h.d.Access.Submit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// AdminListAccessRequests обрабатывает GET /api/admin/projects/{id}/access-requests
func (h *Handler) AdminListAccessRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Access.ListForProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.AccessRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": list})
}

// AdminApproveAccess обрабатывает POST /api/admin/access-requests/{id}/approve
func (h *Handler) AdminApproveAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	req, err := h.d.Access.Approve(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// AdminRejectAccess обрабатывает POST /api/admin/access-requests/{id}/reject
func (h *Handler) AdminRejectAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	req, err := h.d.Access.Reject(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
