package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type AIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAIClient(baseURL, apiKey, model string) *AIClient {
	return &AIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

const chapterSystemPrompt = `You are a video chapter generator. Given a video's title, description, and duration, produce a JSON object with:
- "timestamps": An array of objects with "time" (number, seconds from the start) and "label" (string, 5 words or fewer) marking chapter boundaries.

Rules:
- Always include a chapter at time 0.
- Create exactly the requested number of chapters.
- Spread chapters roughly evenly across the video's duration; every time must be less than the duration.

Return ONLY valid JSON, no markdown formatting.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chapterResult struct {
	Timestamps []GeneratedMarker `json:"timestamps"`
}

func (c *AIClient) GenerateChapters(ctx context.Context, title, description string, durationSeconds, count int) ([]GeneratedMarker, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Title: %s\n", title)
	if description != "" {
		fmt.Fprintf(&prompt, "Description: %s\n", description)
	}
	fmt.Fprintf(&prompt, "Duration: %d seconds\n", durationSeconds)
	fmt.Fprintf(&prompt, "Create %d chapters.", count)

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: chapterSystemPrompt},
			{Role: "user", Content: prompt.String()},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("AI API returned empty choices")
	}

	return parseChapterJSON(chatResp.Choices[0].Message.Content)
}

func parseChapterJSON(content string) ([]GeneratedMarker, error) {
	var result chapterResult
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result.Timestamps, nil
	}

	stripped := stripMarkdownFences(content)
	if err := json.Unmarshal([]byte(stripped), &result); err != nil {
		return nil, fmt.Errorf("parse chapter JSON: %w", err)
	}

	return result.Timestamps, nil
}

func stripMarkdownFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		firstNewline := strings.Index(trimmed, "\n")
		if firstNewline == -1 {
			return trimmed
		}
		trimmed = trimmed[firstNewline+1:]

		if idx := strings.LastIndex(trimmed, "```"); idx != -1 {
			trimmed = trimmed[:idx]
		}

		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
