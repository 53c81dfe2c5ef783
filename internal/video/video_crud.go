package video

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unainr/screen-recorder/internal/auth"
	"github.com/unainr/screen-recorder/internal/httputil"
	"github.com/unainr/screen-recorder/internal/validate"
)

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	BannerURL   string `json:"bannerUrl"`
	VideoURL    string `json:"videoUrl"`
	Duration    int    `json:"duration"`
}

type recordResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	BannerURL   string `json:"bannerUrl,omitempty"`
	VideoURL    string `json:"videoUrl"`
	Duration    int    `json:"duration"`
	ShareToken  string `json:"shareToken"`
	WatchURL    string `json:"watchUrl"`
	ViewCount   int    `json:"viewCount"`
	CreatedAt   string `json:"createdAt"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	if req.Title == "" {
		httputil.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	if msg := validate.Title(req.Title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Description(req.Description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if req.VideoURL == "" {
		httputil.WriteError(w, http.StatusBadRequest, "video URL is required")
		return
	}
	if msg := validate.MediaURL(req.VideoURL); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	// Description and banner are optional: the capture agent creates records
	// with neither. Only title and the video URL are required.
	if req.BannerURL != "" {
		if msg := validate.MediaURL(req.BannerURL); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if req.Duration < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "duration must not be negative")
		return
	}

	shareToken, err := generateShareToken()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate share token")
		return
	}

	var recordID string
	var createdAt time.Time
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO screen_records (user_id, title, description, banner_url, video_url, duration, share_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		userID, req.Title, req.Description, req.BannerURL, req.VideoURL, req.Duration, shareToken,
	).Scan(&recordID, &createdAt)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create record")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, recordResponse{
		ID:          recordID,
		Title:       req.Title,
		Description: req.Description,
		BannerURL:   req.BannerURL,
		VideoURL:    req.VideoURL,
		Duration:    req.Duration,
		ShareToken:  shareToken,
		WatchURL:    h.baseURL + "/watch/" + shareToken,
		CreatedAt:   createdAt.Format(time.RFC3339),
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	rows, err := h.db.Query(r.Context(),
		`SELECT v.id, v.title, COALESCE(v.description, ''), COALESCE(v.banner_url, ''),
		        COALESCE(v.video_url, ''), v.duration, v.share_token, v.created_at,
		        (SELECT COUNT(*) FROM video_views vv WHERE vv.video_id = v.id)
		 FROM screen_records v
		 WHERE v.user_id = $1
		 ORDER BY v.created_at ASC`,
		userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	defer rows.Close()

	records := []recordResponse{}
	for rows.Next() {
		var rec recordResponse
		var createdAt time.Time
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.BannerURL,
			&rec.VideoURL, &rec.Duration, &rec.ShareToken, &createdAt, &rec.ViewCount); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to read records")
			return
		}
		rec.WatchURL = h.baseURL + "/watch/" + rec.ShareToken
		rec.CreatedAt = createdAt.Format(time.RFC3339)
		records = append(records, rec)
	}
	if rows.Err() != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read records")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, records)
}

// Delete removes a record along with its markers (foreign keys cascade in
// the same statement) and then tries to remove the remote media objects.
// Remote deletion is best-effort and never blocks the record deletion.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var ownerID, bannerURL, videoURL string
	err := h.db.QueryRow(r.Context(),
		`SELECT user_id, COALESCE(banner_url, ''), COALESCE(video_url, '')
		 FROM screen_records WHERE id = $1`,
		videoID,
	).Scan(&ownerID, &bannerURL, &videoURL)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	if ownerID != userID {
		httputil.WriteError(w, http.StatusForbidden, "you do not own this video")
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM screen_records WHERE id = $1 AND user_id = $2`,
		videoID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if videoURL != "" {
			if err := deleteWithRetry(ctx, h.storage, videoURL, 3); err != nil {
				slog.Error("video: remote media delete failed", "url", videoURL, "error", err)
			}
		}
		if bannerURL != "" {
			if err := deleteWithRetry(ctx, h.storage, bannerURL, 3); err != nil {
				slog.Error("video: banner delete failed", "url", bannerURL, "error", err)
			}
		}
	}()

	w.WriteHeader(http.StatusNoContent)
}
