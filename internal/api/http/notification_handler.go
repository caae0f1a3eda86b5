package http

import (
	"net/http"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/service"
)

type NotificationHandler struct {
	notifications service.NotificationService
}

func NewNotificationHandler(notifications service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, err := queryInt32(r, "page")
	if err != nil {
		badParam(w, "page")
		return
	}
	pageSize, err := queryInt32(r, "page_size")
	if err != nil {
		badParam(w, "page_size")
		return
	}
	notes, total, err := h.notifications.GetNotifications(r.Context(), actor.UserID, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, pageResponse[domain.Notification]{Items: notes, TotalCount: total})
}

func (h *NotificationHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	if err := h.notifications.MarkAsRead(r.Context(), actor.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
