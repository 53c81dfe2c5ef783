// Package server wires the HTTP surface: auth, media upload, records,
// chapter markers, and the public watch paths.
package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unainr/screen-recorder/internal/auth"
	"github.com/unainr/screen-recorder/internal/database"
	"github.com/unainr/screen-recorder/internal/ratelimit"
	"github.com/unainr/screen-recorder/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB               database.DBTX
	Pinger           Pinger
	Storage          video.ObjectStorage
	Generator        video.ChapterGenerator
	Geo              video.GeoResolver
	JWTSecret        string
	BaseURL          string
	MaxUploadBytes   int64
	S3PublicEndpoint string
}

type Server struct {
	router       chi.Router
	pinger       Pinger
	authHandler  *auth.Handler
	videoHandler *video.Handler
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.S3PublicEndpoint,
	}))

	s := &Server{router: r, pinger: cfg.Pinger}

	if cfg.DB != nil {
		jwtSecret := cfg.JWTSecret
		if jwtSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		secureCookies := strings.HasPrefix(baseURL, "https://")
		s.authHandler = auth.NewHandler(cfg.DB, jwtSecret, secureCookies)
		s.videoHandler = video.NewHandler(cfg.DB, cfg.Storage, baseURL, cfg.MaxUploadBytes)
		if cfg.Generator != nil {
			s.videoHandler.SetChapterGenerator(cfg.Generator)
		}
		if cfg.Geo != nil {
			s.videoHandler.SetGeoResolver(cfg.Geo)
		}
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.authHandler != nil {
		authLimiter := ratelimit.NewLimiter(0.5, 5)
		s.router.Route("/api/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", s.authHandler.Register)
			r.Post("/login", s.authHandler.Login)
			r.Post("/refresh", s.authHandler.Refresh)
			r.Post("/logout", s.authHandler.Logout)
		})
	}

	if s.videoHandler != nil {
		apiLimiter := ratelimit.NewLimiter(2, 10)
		s.router.Route("/api", func(r chi.Router) {
			r.Use(apiLimiter.Middleware)

			r.Get("/limits", s.videoHandler.Limits)
			r.Get("/videos/{id}/markers", s.videoHandler.ListMarkers)

			r.Group(func(r chi.Router) {
				r.Use(s.authHandler.Middleware)
				r.Post("/media/{kind}", s.videoHandler.UploadMedia)
				r.Delete("/media", s.videoHandler.DeleteMedia)
				r.Post("/videos", s.videoHandler.Create)
				r.Get("/videos", s.videoHandler.List)
				r.Delete("/videos/{id}", s.videoHandler.Delete)
				r.Post("/videos/{id}/markers", s.videoHandler.AddMarker)
				r.Delete("/videos/{id}/markers/{markerId}", s.videoHandler.DeleteMarker)
				r.Post("/videos/{id}/markers/generate", s.videoHandler.GenerateMarkers)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.authHandler.OptionalMiddleware)
				r.Get("/watch/{shareToken}", s.videoHandler.Watch)
			})
			r.Get("/watch/{shareToken}/download", s.videoHandler.Download)
		})
		s.router.Group(func(r chi.Router) {
			r.Use(s.authHandler.OptionalMiddleware)
			r.Get("/watch/{shareToken}", s.videoHandler.WatchPage)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
