// Package video owns the persisted recording records, their chapter
// markers, the media upload surface, and the public watch path.
package video

import (
	"context"
	"io"
	"time"

	"github.com/unainr/screen-recorder/internal/database"
	"github.com/unainr/screen-recorder/internal/storage"
)

type ObjectStorage interface {
	UploadMedia(ctx context.Context, kind storage.MediaKind, contentType string, size int64, body io.Reader) (string, error)
	DeleteByURL(ctx context.Context, mediaURL string) error
	GenerateDownloadURL(ctx context.Context, mediaURL string, filename string, expiry time.Duration) (string, error)
	HeadObject(ctx context.Context, mediaURL string) (int64, string, error)
}

// ChapterGenerator is the text-generation boundary. Its output is untrusted
// and is validated for shape before anything is persisted.
type ChapterGenerator interface {
	GenerateChapters(ctx context.Context, title, description string, durationSeconds, count int) ([]GeneratedMarker, error)
}

type GeneratedMarker struct {
	Time  int    `json:"time"`
	Label string `json:"label"`
}

// GeoResolver maps a client IP to a coarse location for view stats.
type GeoResolver interface {
	Lookup(ip string) (country, city string)
}

type Handler struct {
	db             database.DBTX
	storage        ObjectStorage
	generator      ChapterGenerator
	geo            GeoResolver
	baseURL        string
	maxUploadBytes int64
}

func NewHandler(db database.DBTX, s ObjectStorage, baseURL string, maxUploadBytes int64) *Handler {
	return &Handler{
		db:             db,
		storage:        s,
		baseURL:        baseURL,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) SetChapterGenerator(g ChapterGenerator) {
	h.generator = g
}

func (h *Handler) SetGeoResolver(g GeoResolver) {
	h.geo = g
}
