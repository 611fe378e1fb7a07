// Package translate holds the HTTP translation clients.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrEmptyTranslation is returned when the endpoint answers without text.
var ErrEmptyTranslation = errors.New("translation endpoint returned no text")

// GoogleClient calls the public translate_a/single endpoint with the gtx client.
type GoogleClient struct {
	base string
	http *http.Client
}

// NewGoogleClient builds a client. A zero timeout means requests never time out.
func NewGoogleClient(base string, timeout time.Duration) *GoogleClient {
	if strings.TrimSpace(base) == "" {
		base = "https://translate.googleapis.com"
	}
	return &GoogleClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *GoogleClient) Translate(ctx context.Context, text string, sourceLang string, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", sourceOrAuto(sourceLang))
	query.Set("tl", targetLang)
	query.Set("dt", "t")
	query.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/translate_a/single?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("translation http %d for target %s", resp.StatusCode, targetLang)
	}

	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("invalid translation response: %w", err)
	}
	return joinSegments(payload)
}

// joinSegments reads payload[0], a list of [translated, original, ...]
// segments, and concatenates the translated parts.
func joinSegments(payload []json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "", ErrEmptyTranslation
	}

	var segments [][]any
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return "", fmt.Errorf("invalid translation segments: %w", err)
	}

	var b strings.Builder
	for _, segment := range segments {
		if len(segment) == 0 {
			continue
		}
		if part, ok := segment[0].(string); ok {
			b.WriteString(part)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}

func sourceOrAuto(source string) string {
	src := strings.TrimSpace(source)
	if src == "" {
		return "auto"
	}
	return src
}
