package video

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/unainr/screen-recorder/internal/auth"
	"github.com/unainr/screen-recorder/internal/storage"
)

const (
	testJWTSecret = "test-secret"
	testUserID    = "550e8400-e29b-41d4-a716-446655440000"
	testOtherUser = "660e8400-e29b-41d4-a716-446655440001"
	testVideoID   = "770e8400-e29b-41d4-a716-446655440002"
	testBaseURL   = "https://rec.example.com"
)

type fakeStorage struct {
	mu        sync.Mutex
	uploadURL string
	uploadErr error
	deleteErr error
	deleted   []string
	deletedCh chan string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		uploadURL: "https://media.example.com/bucket/screen-recordings/new.webm",
		deletedCh: make(chan string, 8),
	}
}

func (f *fakeStorage) UploadMedia(_ context.Context, _ storage.MediaKind, _ string, _ int64, _ io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return f.uploadURL, nil
}

func (f *fakeStorage) DeleteByURL(_ context.Context, mediaURL string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, mediaURL)
	f.mu.Unlock()
	f.deletedCh <- mediaURL
	return f.deleteErr
}

func (f *fakeStorage) GenerateDownloadURL(_ context.Context, mediaURL, _ string, _ time.Duration) (string, error) {
	return mediaURL + "?presigned=1", nil
}

func (f *fakeStorage) HeadObject(_ context.Context, _ string) (int64, string, error) {
	return 0, "", nil
}

type testEnv struct {
	handler *Handler
	mock    pgxmock.PgxPoolIface
	storage *fakeStorage
	router  *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	fs := newFakeStorage()
	h := NewHandler(mock, fs, testBaseURL, 512<<20)

	authHandler := auth.NewHandler(nil, testJWTSecret, false)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/limits", h.Limits)
		r.Get("/videos/{id}/markers", h.ListMarkers)
		r.Group(func(r chi.Router) {
			r.Use(authHandler.Middleware)
			r.Post("/media/{kind}", h.UploadMedia)
			r.Delete("/media", h.DeleteMedia)
			r.Post("/videos", h.Create)
			r.Get("/videos", h.List)
			r.Delete("/videos/{id}", h.Delete)
			r.Post("/videos/{id}/markers", h.AddMarker)
			r.Delete("/videos/{id}/markers/{markerId}", h.DeleteMarker)
			r.Post("/videos/{id}/markers/generate", h.GenerateMarkers)
		})
		r.Group(func(r chi.Router) {
			r.Use(authHandler.OptionalMiddleware)
			r.Get("/watch/{shareToken}", h.Watch)
		})
		r.Get("/watch/{shareToken}/download", h.Download)
	})
	r.Group(func(r chi.Router) {
		r.Use(authHandler.OptionalMiddleware)
		r.Get("/watch/{shareToken}", h.WatchPage)
	})

	return &testEnv{handler: h, mock: mock, storage: fs, router: r}
}

func authenticatedRequest(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()
	return authenticatedRequestAs(t, testUserID, method, target, body)
}

func authenticatedRequestAs(t *testing.T, userID, method, target string, body io.Reader) *http.Request {
	t.Helper()
	token, err := auth.GenerateAccessToken(testJWTSecret, userID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func parseErrorResponse(t *testing.T, body string) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("failed to parse error response %q: %v", body, err)
	}
	return resp.Error
}

// waitForExpectations polls because some side effects run in goroutines.
func waitForExpectations(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := mock.ExpectationsWereMet(); err == nil {
			return
		} else if time.Now().After(deadline) {
			t.Fatalf("unfulfilled expectations: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreate_Success(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`INSERT INTO screen_records`).
		WithArgs(testUserID, "Demo", "Walkthrough of the release", "", "https://media.example.com/bucket/screen-recordings/demo.webm", 95, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(testVideoID, time.Now()))

	body := `{"title":"Demo","description":"Walkthrough of the release","videoUrl":"https://media.example.com/bucket/screen-recordings/demo.webm","duration":95}`
	req := authenticatedRequest(t, http.MethodPost, "/api/videos", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp recordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ID != testVideoID {
		t.Errorf("expected id %q, got %q", testVideoID, resp.ID)
	}
	if len(resp.ShareToken) != 22 {
		t.Errorf("expected 22-char share token, got %q", resp.ShareToken)
	}
	if resp.WatchURL != testBaseURL+"/watch/"+resp.ShareToken {
		t.Errorf("unexpected watch URL %q", resp.WatchURL)
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreate_ShareTokensAreUnique(t *testing.T) {
	env := newTestEnv(t)
	seen := map[string]bool{}

	for i := 0; i < 5; i++ {
		env.mock.ExpectQuery(`INSERT INTO screen_records`).
			WithArgs(testUserID, "Demo", "", "", "https://media.example.com/bucket/screen-recordings/demo.webm", 0, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(testVideoID, time.Now()))

		body := `{"title":"Demo","videoUrl":"https://media.example.com/bucket/screen-recordings/demo.webm"}`
		req := authenticatedRequest(t, http.MethodPost, "/api/videos", strings.NewReader(body))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rec.Code)
		}
		var resp recordResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if seen[resp.ShareToken] {
			t.Fatalf("share token %q repeated", resp.ShareToken)
		}
		seen[resp.ShareToken] = true
	}
}

func TestCreate_Validation(t *testing.T) {
	longTitle := strings.Repeat("a", 256)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing title", `{"videoUrl":"https://media.example.com/v.webm"}`, "title is required"},
		{"blank title", `{"title":"   ","videoUrl":"https://media.example.com/v.webm"}`, "title is required"},
		{"title too long", `{"title":"` + longTitle + `","videoUrl":"https://media.example.com/v.webm"}`, "title must be 255 characters or fewer"},
		{"missing video url", `{"title":"Demo"}`, "video URL is required"},
		{"negative duration", `{"title":"Demo","videoUrl":"https://media.example.com/v.webm","duration":-1}`, "duration must not be negative"},
		{"malformed json", `{`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			req := authenticatedRequest(t, http.MethodPost, "/api/videos", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if got := parseErrorResponse(t, rec.Body.String()); got != tt.want {
				t.Errorf("expected error %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCreate_DescriptionAndBannerAreOptional(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`INSERT INTO screen_records`).
		WithArgs(testUserID, "Demo", "", "", "https://media.example.com/bucket/screen-recordings/demo.webm", 12, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(testVideoID, time.Now()))

	body := `{"title":"Demo","videoUrl":"https://media.example.com/bucket/screen-recordings/demo.webm","duration":12}`
	req := authenticatedRequest(t, http.MethodPost, "/api/videos", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	// Empty optional fields are omitted from the response entirely.
	for _, field := range []string{"description", "bannerUrl"} {
		if strings.Contains(rec.Body.String(), `"`+field+`"`) {
			t.Errorf("expected %s to be omitted, got %s", field, rec.Body.String())
		}
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreate_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	body := `{"title":"Demo","videoUrl":"https://media.example.com/v.webm"}`
	req := httptest.NewRequest(http.MethodPost, "/api/videos", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestList_ReturnsOwnersRecords(t *testing.T) {
	env := newTestEnv(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	env.mock.ExpectQuery(`ORDER BY v.created_at ASC`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "description", "banner_url", "video_url", "duration", "share_token", "created_at", "count"}).
			AddRow("id-1", "First", "", "", "https://media.example.com/a.webm", 30, "tok1", created, 4).
			AddRow("id-2", "Second", "notes", "", "https://media.example.com/b.webm", 60, "tok2", created.Add(time.Hour), 0))

	req := authenticatedRequest(t, http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp []recordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 records, got %d", len(resp))
	}
	if resp[0].ID != "id-1" || resp[1].ID != "id-2" {
		t.Errorf("unexpected record order: %q, %q", resp[0].ID, resp[1].ID)
	}
	if resp[0].ViewCount != 4 {
		t.Errorf("expected view count 4, got %d", resp[0].ViewCount)
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	env := newTestEnv(t)

	videoURL := "https://media.example.com/bucket/screen-recordings/a.webm"
	bannerURL := "https://media.example.com/bucket/screen-images/a.png"
	env.mock.ExpectQuery(`SELECT user_id, COALESCE`).
		WithArgs(testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "banner_url", "video_url"}).
			AddRow(testUserID, bannerURL, videoURL))
	env.mock.ExpectExec(`DELETE FROM screen_records WHERE id = \$1 AND user_id = \$2`).
		WithArgs(testVideoID, testUserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	req := authenticatedRequest(t, http.MethodDelete, "/api/videos/"+testVideoID, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rec.Code, rec.Body.String())
	}

	// Remote media cleanup happens in the background.
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case url := <-env.storage.deletedCh:
			got[url] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for remote media deletion")
		}
	}
	if !got[videoURL] || !got[bannerURL] {
		t.Errorf("expected both media objects deleted, got %v", got)
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`SELECT user_id, COALESCE`).
		WithArgs(testVideoID).
		WillReturnError(errors.New("no rows in result set"))

	req := authenticatedRequest(t, http.MethodDelete, "/api/videos/"+testVideoID, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestDelete_ForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`SELECT user_id, COALESCE`).
		WithArgs(testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "banner_url", "video_url"}).
			AddRow(testUserID, "", "https://media.example.com/bucket/screen-recordings/a.webm"))

	req := authenticatedRequestAs(t, testOtherUser, http.MethodDelete, "/api/videos/"+testVideoID, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rec.Code, rec.Body.String())
	}
	// No DELETE statement and no remote cleanup may run for a non-owner.
	select {
	case url := <-env.storage.deletedCh:
		t.Fatalf("unexpected remote deletion of %q", url)
	case <-time.After(50 * time.Millisecond):
	}
	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestLimits(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/limits", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp limitsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.MaxUploadBytes != 512<<20 {
		t.Errorf("unexpected max upload bytes %d", resp.MaxUploadBytes)
	}
	if resp.FieldLimits["title"] != 255 {
		t.Errorf("unexpected title limit %d", resp.FieldLimits["title"])
	}
	if resp.ChaptersEnabled {
		t.Error("expected chapters disabled without a generator")
	}
}
