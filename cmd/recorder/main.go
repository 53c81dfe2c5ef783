// Command recorder is a terminal capture agent. It records the screen with
// ffmpeg, shows elapsed time while recording, and on stop either uploads the
// result to a screen-recorder server or discards it.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unainr/screen-recorder/internal/capture"
)

func main() {
	serverURL := flag.String("server", getEnv("RECORDER_SERVER", "http://localhost:8080"), "screen-recorder server base URL")
	token := flag.String("token", os.Getenv("RECORDER_TOKEN"), "access token for the server API")
	title := flag.String("title", "", "title for the uploaded recording")
	description := flag.String("description", "", "optional description")
	display := flag.String("display", getEnv("DISPLAY", ":0.0"), "X11 display to capture")
	audioDev := flag.String("audio", "default", "pulseaudio source for microphone capture")
	mic := flag.Bool("mic", true, "capture microphone audio")
	discard := flag.Bool("discard", false, "record and preview without uploading")
	flag.Parse()

	if *title == "" && !*discard {
		log.Fatal("-title is required when uploading (use -discard to skip upload)")
	}
	if *token == "" && !*discard {
		log.Fatal("-token (or RECORDER_TOKEN) is required when uploading")
	}

	source := &ffmpegSource{display: *display, audioDevice: *audioDev}
	ctrl := capture.NewController(source, nil)
	ctrl.SetMicEnabled(*mic)

	if err := ctrl.Start(context.Background()); err != nil {
		log.Fatalf("could not start recording: %v", err)
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	fmt.Println("recording... press Ctrl+C to stop")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			elapsed := int(ctrl.Elapsed().Seconds())
			fmt.Printf("\r%d:%02d ", elapsed/60, elapsed%60)
		case <-stopCh:
			fmt.Println()
			break loop
		}
	}

	rec, err := ctrl.Stop()
	if err != nil {
		log.Fatalf("could not stop recording: %v", err)
	}
	defer ctrl.Discard()

	seconds := int(rec.Duration.Seconds())
	fmt.Printf("captured %d bytes (%s, %d:%02d)\n", len(rec.Data), rec.MimeType, seconds/60, seconds%60)

	if *discard {
		fmt.Println("discarded")
		return
	}

	client := &apiClient{baseURL: *serverURL, token: *token, http: &http.Client{Timeout: 5 * time.Minute}}

	videoURL, err := client.uploadVideo(rec.Data, rec.MimeType)
	if err != nil {
		log.Fatalf("upload failed: %v", err)
	}

	watchURL, err := client.createRecord(*title, *description, videoURL, seconds)
	if err != nil {
		log.Fatalf("could not create record: %v", err)
	}
	fmt.Printf("uploaded: %s\n", watchURL)
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *apiClient) uploadVideo(data []byte, mimeType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	// The server stores the object under the part's Content-Type, so the
	// part must carry the recording's actual MIME type.
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="recording.webm"`)
	partHeader.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/media/video", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *apiClient) createRecord(title, description, videoURL string, duration int) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"title":       title,
		"description": description,
		"videoUrl":    videoURL,
		"duration":    duration,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/videos", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	var resp struct {
		WatchURL string `json:"watchUrl"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.WatchURL, nil
}

func (c *apiClient) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("server returned %d: %s", res.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
