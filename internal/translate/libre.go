package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LibreClient calls a LibreTranslate compatible /translate endpoint.
type LibreClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewLibreClient(base string, apiKey string, timeout time.Duration) *LibreClient {
	return &LibreClient{
		base:   strings.TrimRight(strings.TrimSpace(base), "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}
}

func (c *LibreClient) Translate(ctx context.Context, text string, sourceLang string, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if c.base == "" {
		return "", fmt.Errorf("LibreTranslate base URL is not configured")
	}

	payload := map[string]any{
		"q":      text,
		"source": sourceOrAuto(sourceLang),
		"target": targetLang,
		"format": "text",
	}
	if c.apiKey != "" {
		payload["api_key"] = c.apiKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	var lr struct {
		TranslatedText string `json:"translatedText"`
		Error          string `json:"error"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&lr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && lr.Error != "" {
			return "", fmt.Errorf("translation http %d for target %s: %s", resp.StatusCode, targetLang, lr.Error)
		}
		return "", fmt.Errorf("translation http %d for target %s", resp.StatusCode, targetLang)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("invalid translation response: %w", decodeErr)
	}

	out := strings.TrimSpace(lr.TranslatedText)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}
