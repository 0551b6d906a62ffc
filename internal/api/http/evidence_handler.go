package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/storage"
)

type uploadURLRequest struct {
	ContentType string `json:"content_type"`
}

type uploadURLResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EvidenceUploadURL hands out a key and a one-shot upload URL for a photo or
// video that an issue report will reference.
func (h *Handler) EvidenceUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !h.storageCfg.Allows(req.ContentType) {
		writeError(w, r, domain.Errorf(domain.CodeInvalidArgument, "content type %q is not allowed", req.ContentType))
		return
	}

	expiry := h.storageCfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	key := h.evidence.NewKey(actor(r).UserID, req.ContentType)
	uploadURL, err := h.evidence.GenerateUploadURL(r.Context(), key, req.ContentType, expiry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadURLResponse{Key: key, UploadURL: uploadURL, ExpiresAt: time.Now().UTC().Add(expiry)})
}

// EvidenceUpload handles HTTP PUT requests to upload URLs
func (h *Handler) EvidenceUpload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeStatus(w, http.StatusBadRequest, string(domain.CodeInvalidArgument), "missing key parameter")
		return
	}
	if !h.storageCfg.Allows(r.Header.Get("Content-Type")) {
		writeStatus(w, http.StatusBadRequest, string(domain.CodeInvalidArgument), "invalid content type")
		return
	}

	err := h.evidence.SaveFile(mux.Vars(r)["token"], key, r.Body)
	switch {
	case errors.Is(err, storage.ErrUploadExpired), errors.Is(err, storage.ErrInvalidKey):
		writeStatus(w, http.StatusForbidden, string(domain.CodePermissionDenied), err.Error())
		return
	case err != nil:
		logger.Error("Failed to save evidence", "key", key, "error", err)
		writeStatus(w, http.StatusBadRequest, string(domain.CodeInvalidArgument), "failed to save file")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// EvidenceDownload streams a stored evidence file
func (h *Handler) EvidenceDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	file, err := h.evidence.ReadFile(key)
	if err != nil {
		writeStatus(w, http.StatusNotFound, string(domain.CodeNotFound), "file not found")
		return
	}
	defer file.Close()

	contentType := "application/octet-stream"
	switch filepath.Ext(key) {
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	case ".gif":
		contentType = "image/gif"
	case ".mp4":
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, file); err != nil {
		logger.Warn("Failed to stream evidence", "key", key, "error", err)
	}
}
