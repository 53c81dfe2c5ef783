package video

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"
	"github.com/unainr/screen-recorder/internal/auth"
	"github.com/unainr/screen-recorder/internal/httputil"
)

type watchResponse struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	BannerURL   string           `json:"bannerUrl,omitempty"`
	VideoURL    string           `json:"videoUrl"`
	Duration    int              `json:"duration"`
	Creator     string           `json:"creator"`
	CreatedAt   string           `json:"createdAt"`
	IsOwner     bool             `json:"isOwner"`
	ViewCount   int              `json:"viewCount"`
	Markers     []markerResponse `json:"markers"`
}

// Watch is the public share surface: a record plus its ordered markers,
// keyed by share token. The owner flag only drives which controls the
// client renders; every mutation is re-checked server-side.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")
	userID := auth.UserIDFromContext(r.Context())

	var videoID, ownerID string
	var resp watchResponse
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`SELECT v.id, v.user_id, v.title, COALESCE(v.description, ''), COALESCE(v.banner_url, ''),
		        COALESCE(v.video_url, ''), v.duration, u.name, v.created_at,
		        (SELECT COUNT(*) FROM video_views vv WHERE vv.video_id = v.id)
		 FROM screen_records v
		 JOIN users u ON u.id = v.user_id
		 WHERE v.share_token = $1`,
		shareToken,
	).Scan(&videoID, &ownerID, &resp.Title, &resp.Description, &resp.BannerURL,
		&resp.VideoURL, &resp.Duration, &resp.Creator, &createdAt, &resp.ViewCount)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	resp.CreatedAt = createdAt.Format(time.RFC3339)
	resp.IsOwner = userID != "" && userID == ownerID

	markers, err := h.listMarkers(r, videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list markers")
		return
	}
	resp.Markers = markers

	if !resp.IsOwner {
		h.recordView(videoID, clientIP(r), r.UserAgent())
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// recordView stores one row per view asynchronously. View stats are
// informational; failures are logged and never affect the watch response.
func (h *Handler) recordView(videoID, ip, ua string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		parsed := useragent.New(ua)
		browser, _ := parsed.Browser()
		device := "desktop"
		if parsed.Mobile() {
			device = "mobile"
		}

		var country, city string
		if h.geo != nil {
			country, city = h.geo.Lookup(ip)
		}

		if _, err := h.db.Exec(ctx,
			`INSERT INTO video_views (video_id, viewer_hash, browser, device, country, city)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			videoID, viewerHash(ip, ua), browser, device, country, city,
		); err != nil {
			slog.Error("view: failed to record", "video_id", videoID, "error", err)
		}
	}()
}

// Download presigns a time-limited download link for the recording so the
// object store never has to be public for attachment-style downloads.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")

	var title, videoURL string
	err := h.db.QueryRow(r.Context(),
		`SELECT title, COALESCE(video_url, '') FROM screen_records WHERE share_token = $1`,
		shareToken,
	).Scan(&title, &videoURL)
	if err != nil || videoURL == "" {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	downloadURL, err := h.storage.GenerateDownloadURL(r.Context(), videoURL, title+".webm", time.Hour)
	if err != nil {
		httputil.WriteFailure(w, err)
		return
	}

	http.Redirect(w, r, downloadURL, http.StatusFound)
}
