package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ConfigString returns the trimmed string value for key from src.Config or a fallback.
func ConfigString(src Source, key, fallback string) string {
	if src.Config != nil {
		if raw, ok := src.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// fetchBody downloads url for src within timeout and rejects non-2xx responses.
func fetchBody(ctx context.Context, client HTTPClient, src Source, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, src.Timeout(timeout))
	defer cancel()

	resp, err := client.Get(ctx, url, src.Headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	body := resp.Body()
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, fmt.Errorf("%s returned status %d body: %s", url, code, responseSnippet(body))
	}
	return body, nil
}
