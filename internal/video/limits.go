package video

import (
	"net/http"

	"github.com/unainr/screen-recorder/internal/httputil"
	"github.com/unainr/screen-recorder/internal/validate"
)

type limitsResponse struct {
	MaxUploadBytes  int64          `json:"maxUploadBytes"`
	ChaptersEnabled bool           `json:"chaptersEnabled"`
	FieldLimits     map[string]int `json:"fieldLimits"`
}

// Limits tells clients the server-side ceilings so forms can validate
// before submitting.
func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, limitsResponse{
		MaxUploadBytes:  h.maxUploadBytes,
		ChaptersEnabled: h.generator != nil,
		FieldLimits:     validate.FieldLimits(),
	})
}
