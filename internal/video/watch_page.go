package video

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unainr/screen-recorder/internal/auth"
	"github.com/unainr/screen-recorder/internal/httputil"
)

var watchPageTemplate = template.Must(template.New("watch").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}} — ScreenRecorder</title>
    <meta property="og:title" content="{{.Title}}">
    <meta property="og:type" content="video.other">
    <meta property="og:video" content="{{.VideoURL}}">
    {{if .BannerURL}}<meta property="og:image" content="{{.BannerURL}}">{{end}}
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #0a1628;
            color: #ffffff;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            flex-direction: column;
            align-items: center;
        }
        .container {
            max-width: 960px;
            width: 100%;
            padding: 2rem 1rem;
        }
        video {
            width: 100%;
            border-radius: 8px;
            background: #000;
        }
        h1 {
            margin-top: 1rem;
            font-size: 1.5rem;
            font-weight: 600;
        }
        .meta {
            margin-top: 0.5rem;
            color: #94a3b8;
            font-size: 0.875rem;
        }
        .description {
            margin-top: 1rem;
            color: #cbd5e1;
            font-size: 0.9375rem;
            white-space: pre-wrap;
        }
        .chapters {
            margin-top: 1.5rem;
            list-style: none;
        }
        .chapters li {
            display: flex;
            gap: 0.75rem;
            padding: 0.5rem 0.75rem;
            border-radius: 6px;
            cursor: pointer;
        }
        .chapters li:hover { background: #13233d; }
        .chapters li.active { background: #1b3a5c; }
        .chapters .time {
            color: #00b67a;
            font-variant-numeric: tabular-nums;
        }
    </style>
</head>
<body>
    <div class="container">
        <video id="player" controls{{if .BannerURL}} poster="{{.BannerURL}}"{{end}}>
            <source src="{{.VideoURL}}">
            Your browser does not support video playback.
        </video>
        <h1>{{.Title}}</h1>
        <p class="meta">{{.Creator}} · {{.Date}}</p>
        {{if .Description}}<p class="description">{{.Description}}</p>{{end}}
        {{if .Markers}}
        <ul class="chapters" id="chapters">
            {{range .Markers}}
            <li data-time="{{.Time}}"><span class="time">{{.Display}}</span><span>{{.Label}}</span></li>
            {{end}}
        </ul>
        {{end}}
        <script nonce="{{.Nonce}}">
            var v = document.getElementById('player');
            var list = document.getElementById('chapters');
            if (list) {
                var items = Array.prototype.slice.call(list.children);
                items.forEach(function(item) {
                    item.addEventListener('click', function() {
                        v.currentTime = Number(item.dataset.time);
                        v.play();
                    });
                });
                v.addEventListener('timeupdate', function() {
                    var current = null;
                    items.forEach(function(item) {
                        if (v.currentTime >= Number(item.dataset.time)) { current = item; }
                        item.classList.remove('active');
                    });
                    if (current) { current.classList.add('active'); }
                });
            }
        </script>
    </div>
</body>
</html>`))

type watchPageMarker struct {
	Time    int
	Display string
	Label   string
}

type watchPageData struct {
	Nonce       string
	Title       string
	Description string
	BannerURL   string
	VideoURL    string
	Creator     string
	Date        string
	Markers     []watchPageMarker
}

// WatchPage renders the shareable playback page: the video element plus its
// chapter list, with click-to-seek and current-chapter highlighting.
func (h *Handler) WatchPage(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")

	var videoID, ownerID, title, description, bannerURL, videoURL, creator string
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`SELECT v.id, v.user_id, v.title, COALESCE(v.description, ''), COALESCE(v.banner_url, ''),
		        COALESCE(v.video_url, ''), u.name, v.created_at
		 FROM screen_records v
		 JOIN users u ON u.id = v.user_id
		 WHERE v.share_token = $1`,
		shareToken,
	).Scan(&videoID, &ownerID, &title, &description, &bannerURL, &videoURL, &creator, &createdAt)
	if err != nil || videoURL == "" {
		http.NotFound(w, r)
		return
	}

	markers, err := h.listMarkers(r, videoID)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pageMarkers := make([]watchPageMarker, 0, len(markers))
	for _, m := range markers {
		pageMarkers = append(pageMarkers, watchPageMarker{
			Time:    m.Time,
			Display: formatChapterTime(m.Time),
			Label:   m.Label,
		})
	}

	// Owners previewing their own share page do not count as a view, same
	// as the JSON watch path.
	if viewerID := auth.UserIDFromContext(r.Context()); viewerID != ownerID {
		h.recordView(videoID, clientIP(r), r.UserAgent())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := watchPageTemplate.Execute(w, watchPageData{
		Nonce:       httputil.NonceFromContext(r.Context()),
		Title:       title,
		Description: description,
		BannerURL:   bannerURL,
		VideoURL:    videoURL,
		Creator:     creator,
		Date:        createdAt.Format("Jan 2, 2006"),
		Markers:     pageMarkers,
	}); err != nil {
		slog.Error("failed to render watch page", "error", err)
	}
}
