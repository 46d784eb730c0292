package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/markdave123-py/ragdesk/internal/models"
	"github.com/markdave123-py/ragdesk/internal/services"
)

type SettingsHandler struct {
	users *services.UserService
}

func NewSettingsHandler(users *services.UserService) *SettingsHandler {
	return &SettingsHandler{users: users}
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	st, err := h.users.Settings(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in models.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.users.UpdateSettings(r.Context(), uid, &in); err != nil {
		writeError(w, r, err)
		return
	}
	h.GetSettings(w, r)
}
