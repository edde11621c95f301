package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func (c *Client) forgeRequestRaw(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode forge request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.ForgeBaseURL, "/")+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build forge request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.ForgeToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read forge response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// forgeRequest is forgeRequestRaw for the common case where the response
// body is {"url": "..."}.
func (c *Client) forgeRequest(ctx context.Context, method, path string, payload interface{}) (string, int, error) {
	body, status, err := c.forgeRequestRaw(ctx, method, path, payload)
	if err != nil {
		return "", 0, err
	}
	if status >= 500 {
		return "", status, fmt.Errorf("%s %s: server error: %s", method, path, string(body))
	}
	var parsed struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(body, &parsed)
	return parsed.URL, status, nil
}

func parseBranchList(body []byte) []string {
	var parsed struct {
		Branches []string `json:"branches"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	return parsed.Branches
}
