package video

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/unainr/screen-recorder/internal/apperr"
	"github.com/unainr/screen-recorder/internal/httputil"
	"github.com/unainr/screen-recorder/internal/storage"
)

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadMedia accepts a multipart upload of a recording or a banner image
// and responds with the durable URL the caller should reference in a record.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	kind := storage.MediaKind(chi.URLParam(r, "kind"))
	if kind != storage.KindImage && kind != storage.KindVideo {
		httputil.WriteError(w, http.StatusBadRequest, "unknown media kind")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	url, err := h.storage.UploadMedia(r.Context(), kind, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

// DeleteMedia removes an object by its media URL. Deletion is best-effort:
// provider failures are logged and the call still succeeds so callers never
// block on remote cleanup.
func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	mediaURL := r.URL.Query().Get("url")
	if mediaURL == "" {
		httputil.WriteError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	if err := h.storage.DeleteByURL(r.Context(), mediaURL); err != nil {
		if apperr.KindOf(err) == apperr.KindValidationFailed {
			httputil.WriteFailure(w, err)
			return
		}
		slog.Error("media: delete failed", "url", mediaURL, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
