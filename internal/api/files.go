package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/apperr"
	"github.com/parley-ai/parley/internal/blob"
)

// uploadKeyPrefix namespaces uploaded attachments in the blob store,
// away from the keys tool-generated documents use.
const uploadKeyPrefix = "uploads/"

// fileHandler serves attachment upload and retrieval. Upload is
// authenticated; retrieval is deliberately open so tool execution can
// fetch just-uploaded attachments without a session.
type fileHandler struct {
	blob     blob.Store
	maxBytes int64
	logger   *slog.Logger
}

// uploadJSON is the wire shape of a successful upload.
type uploadJSON struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// upload handles POST /api/files/upload. The file arrives as the
// "file" part of a multipart form; size and content type are checked
// against the same limits as message attachments before any byte
// reaches the blob store.
func (h *fileHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, h.logger, apperr.New(apperr.KindBadRequest, "files",
				fmt.Sprintf("file exceeds the %d byte limit", h.maxBytes)))
			return
		}
		writeError(w, h.logger, apperr.Wrap(apperr.KindBadRequest, "files", "missing file part", err))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeError(w, h.logger, apperr.New(apperr.KindBadRequest, "files",
			fmt.Sprintf("file exceeds the %d byte limit", h.maxBytes)))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !attachmentAllowed(contentType) {
		writeError(w, h.logger, apperr.New(apperr.KindBadRequest, "files",
			fmt.Sprintf("content type %q is not allowed", contentType)))
		return
	}

	fileID := uuid.NewString()
	if err := h.blob.Put(r.Context(), uploadKeyPrefix+fileID, contentType, file); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "files", "storing file", err))
		return
	}

	writeJSON(w, http.StatusOK, uploadJSON{
		ID:          fileID,
		URL:         "/api/files/" + fileID,
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
}

// get handles GET /api/files/{fileId}. No auth: see fileHandler doc.
func (h *fileHandler) get(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	if _, err := uuid.Parse(fileID); err != nil {
		writeError(w, h.logger, apperr.New(apperr.KindBadRequest, "files", "file id must be a UUID"))
		return
	}

	obj, err := h.blob.Get(r.Context(), uploadKeyPrefix+fileID)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, h.logger, apperr.New(apperr.KindNotFound, "files", "file not found"))
		return
	}
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "files", "loading file", err))
		return
	}
	defer obj.Reader.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, obj.Reader); err != nil {
		h.logger.Debug("writing file body", "error", err)
	}
}
