package video

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unainr/screen-recorder/internal/auth"
	"github.com/unainr/screen-recorder/internal/httputil"
	"github.com/unainr/screen-recorder/internal/validate"
)

// Generated labels are capped at five words; longer output from the
// generation boundary is rejected wholesale.
const maxGeneratedLabelWords = 5

type addMarkerRequest struct {
	Time  *int   `json:"time"`
	Label string `json:"label"`
}

type markerResponse struct {
	ID        string `json:"id"`
	Time      int    `json:"time"`
	Label     string `json:"label"`
	CreatedAt string `json:"createdAt"`
}

type generateMarkersRequest struct {
	Replace bool `json:"replace"`
}

// requireOwnedVideo resolves a video by id and enforces that the caller
// owns it, writing the failure response itself. Duration comes back for
// range checks.
func (h *Handler) requireOwnedVideo(w http.ResponseWriter, r *http.Request, videoID, userID string) (duration int, ok bool) {
	var ownerID string
	err := h.db.QueryRow(r.Context(),
		`SELECT user_id, duration FROM screen_records WHERE id = $1`,
		videoID,
	).Scan(&ownerID, &duration)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return 0, false
	}
	if ownerID != userID {
		httputil.WriteError(w, http.StatusForbidden, "you do not own this video")
		return 0, false
	}
	return duration, true
}

func (h *Handler) AddMarker(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var req addMarkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Time == nil {
		httputil.WriteError(w, http.StatusBadRequest, "time is required")
		return
	}
	if *req.Time < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "time must not be negative")
		return
	}

	duration, ok := h.requireOwnedVideo(w, r, videoID, userID)
	if !ok {
		return
	}
	if duration > 0 && *req.Time > duration {
		httputil.WriteError(w, http.StatusBadRequest, "time is beyond the end of the video")
		return
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = "Chapter at " + formatChapterTime(*req.Time)
	}
	if msg := validate.Label(label); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var markerID string
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`INSERT INTO chapter_markers (video_id, time_seconds, label)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		videoID, *req.Time, label,
	).Scan(&markerID, &createdAt)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to add marker")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, markerResponse{
		ID:        markerID,
		Time:      *req.Time,
		Label:     label,
		CreatedAt: createdAt.Format(time.RFC3339),
	})
}

// DeleteMarker fails with 404 when the marker id does not exist; deleting is
// not treated as idempotent so a stale client learns its list is out of date.
func (h *Handler) DeleteMarker(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")
	markerID := chi.URLParam(r, "markerId")

	if _, ok := h.requireOwnedVideo(w, r, videoID, userID); !ok {
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM chapter_markers WHERE id = $1 AND video_id = $2`,
		markerID, videoID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "could not delete marker")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "marker not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMarkers is public: shared videos expose their chapters to anonymous
// viewers. Order is ascending time, ties kept in insertion order.
func (h *Handler) ListMarkers(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var exists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM screen_records WHERE id = $1)`,
		videoID,
	).Scan(&exists); err != nil || !exists {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	markers, err := h.listMarkers(r, videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list markers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, markers)
}

func (h *Handler) listMarkers(r *http.Request, videoID string) ([]markerResponse, error) {
	rows, err := h.db.Query(r.Context(),
		`SELECT id, time_seconds, label, created_at
		 FROM chapter_markers
		 WHERE video_id = $1
		 ORDER BY time_seconds ASC, seq ASC`,
		videoID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	markers := []markerResponse{}
	for rows.Next() {
		var m markerResponse
		var createdAt time.Time
		if err := rows.Scan(&m.ID, &m.Time, &m.Label, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = createdAt.Format(time.RFC3339)
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

// GenerateMarkers asks the text-generation boundary for a chapter list and
// persists it in one transaction. Nothing is written when the output fails
// shape validation. With replace set, existing markers are cleared in the
// same transaction; otherwise generated markers are appended.
func (h *Handler) GenerateMarkers(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	if h.generator == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "chapter generation is not configured")
		return
	}

	var req generateMarkersRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	duration, ok := h.requireOwnedVideo(w, r, videoID, userID)
	if !ok {
		return
	}

	var title, description string
	if err := h.db.QueryRow(r.Context(),
		`SELECT title, COALESCE(description, '') FROM screen_records WHERE id = $1`,
		videoID,
	).Scan(&title, &description); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	count := duration / 30
	if count < 3 {
		count = 3
	}

	generated, err := h.generator.GenerateChapters(r.Context(), title, description, duration, count)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "chapter generation failed")
		return
	}
	if msg := validateGenerated(generated, count, duration); msg != "" {
		httputil.WriteError(w, http.StatusBadGateway, msg)
		return
	}

	sort.SliceStable(generated, func(i, j int) bool { return generated[i].Time < generated[j].Time })

	tx, err := h.db.Begin(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save markers")
		return
	}
	defer tx.Rollback(r.Context())

	if req.Replace {
		if _, err := tx.Exec(r.Context(),
			`DELETE FROM chapter_markers WHERE video_id = $1`, videoID,
		); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to save markers")
			return
		}
	}
	for _, m := range generated {
		if _, err := tx.Exec(r.Context(),
			`INSERT INTO chapter_markers (video_id, time_seconds, label) VALUES ($1, $2, $3)`,
			videoID, m.Time, strings.TrimSpace(m.Label),
		); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to save markers")
			return
		}
	}
	if err := tx.Commit(r.Context()); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save markers")
		return
	}

	markers, err := h.listMarkers(r, videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list markers")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, markers)
}

// validateGenerated checks the untrusted generation output: enough entries,
// no negative or out-of-range times, and short non-empty labels.
func validateGenerated(markers []GeneratedMarker, minCount, duration int) string {
	if len(markers) < minCount {
		return "chapter generation returned too few markers"
	}
	for _, m := range markers {
		if m.Time < 0 {
			return "chapter generation returned a negative time"
		}
		if duration > 0 && m.Time >= duration {
			return "chapter generation returned a time beyond the video"
		}
		label := strings.TrimSpace(m.Label)
		if label == "" {
			return "chapter generation returned an empty label"
		}
		if len(strings.Fields(label)) > maxGeneratedLabelWords {
			return "chapter generation returned an overlong label"
		}
		if msg := validate.Label(label); msg != "" {
			return "chapter generation returned an overlong label"
		}
	}
	return ""
}
