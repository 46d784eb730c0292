package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
	"github.com/markdave123-py/ragdesk/internal/services"
)

const maxUploadMemory = 52 << 20

type DocumentHandler struct {
	docs     *services.DocumentService
	ingestor ingestion_engine.Ingestor
	queue    ingestion_engine.Enqueuer
}

func NewDocumentHandler(docs *services.DocumentService, ing ingestion_engine.Ingestor, queue ingestion_engine.Enqueuer) *DocumentHandler {
	return &DocumentHandler{docs: docs, ingestor: ing, queue: queue}
}

type ingestRequest struct {
	EmbeddingProvider string `json:"embedding_provider"`
}

type uploadResponse struct {
	File   *models.UploadedFile     `json:"file"`
	Result *ingestion_engine.Result `json:"result,omitempty"`
}

// UploadDocument stores the file and either ingests it in the request
// (?wait=true) or hands it to the background queue.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	ctx := r.Context()
	f, err := h.docs.Upload(ctx, uid, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := ingestion_engine.Request{FileID: f.ID, UserID: uid, Provider: r.FormValue("embedding_provider")}
	if r.URL.Query().Get("wait") == "true" {
		res, err := h.ingestor.Ingest(ctx, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		f.Status = models.FileStatusReady
		f.Tokens = res.TokenTotal
		writeJSON(w, http.StatusOK, uploadResponse{File: f, Result: res})
		return
	}

	if err := h.queue.Enqueue(req); err != nil {
		logger.FromContext(ctx).Error("enqueue failed", zap.String("file_id", f.ID), zap.Error(err))
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, uploadResponse{File: f})
}

// IngestDocument re-runs ingestion for an uploaded file and waits for the result.
func (h *DocumentHandler) IngestDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var body ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}

	res, err := h.ingestor.Ingest(r.Context(), ingestion_engine.Request{
		FileID:   chi.URLParam(r, "fileID"),
		UserID:   uid,
		Provider: body.EmbeddingProvider,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	files, err := h.docs.ListByUser(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if files == nil {
		files = []models.UploadedFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	f, err := h.docs.Get(r.Context(), uid, chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.docs.Delete(r.Context(), uid, chi.URLParam(r, "fileID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
