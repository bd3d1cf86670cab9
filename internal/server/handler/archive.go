package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"stockradar/internal/domain"
)

// defaultArchivePrefix matches the key layout the archiver writes under.
const defaultArchivePrefix = "archive/"

// ArchiveHandler lists and serves archived ledger history from cold storage.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

type archiveFileJSON struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type listArchivesResponse struct {
	Files []archiveFileJSON `json:"files"`
}

// List returns the archived objects under a prefix.
// GET /api/archives?prefix=archive/positions/
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = defaultArchivePrefix
	}

	infos, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive list failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	files := make([]archiveFileJSON, 0, len(infos))
	for _, info := range infos {
		files = append(files, archiveFileJSON{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	writeJSON(w, http.StatusOK, listArchivesResponse{Files: files})
}

// Download streams one archived object back as newline-delimited JSON.
// GET /api/archives/archive/positions/2025-04.jsonl
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "missing archive path")
		return
	}

	rc, err := h.reader.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: archive download failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch archive")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are already out; nothing left to do but log.
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
