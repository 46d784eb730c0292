package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/markdave123-py/ragdesk/internal/services"
)

type ChatHandler struct {
	retrieval *services.RetrievalService
}

func NewChatHandler(retrieval *services.RetrievalService) *ChatHandler {
	return &ChatHandler{retrieval: retrieval}
}

type ChatRequest struct {
	FileID            string `json:"file_id"`
	Query             string `json:"query"`
	EmbeddingProvider string `json:"embedding_provider"`
}

func (h *ChatHandler) QueryDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	ans, err := h.retrieval.Query(r.Context(), uid, req.FileID, req.Query, req.EmbeddingProvider)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}
