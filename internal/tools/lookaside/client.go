// Package lookaside is the lookaside-cache tool family (C1): upload and
// download the large source tarballs dist-git keeps out of git itself.
// Every call first ensures a Kerberos ticket via the credential broker,
// since the lookaside cache authenticates over GSSAPI.
package lookaside

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jotnar/internal/krb"
)

// Client talks to the lookaside cache's plain HTTP upload/download API,
// gating every call on a valid Kerberos ticket.
type Client struct {
	BaseURL    string
	Broker     *krb.Broker
	HTTPClient *http.Client
}

// NewClient builds a Client.
func NewClient(baseURL string, broker *krb.Broker) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Broker: broker, HTTPClient: &http.Client{Timeout: 10 * time.Minute}}
}

// DownloadSources fetches the named source file for package pkg into
// destDir. The file is written as received; no checksum is verified.
func (c *Client) DownloadSources(ctx context.Context, pkg, filename, destDir string) (string, error) {
	if _, err := c.Broker.EnsureTicket(ctx); err != nil {
		return "", fmt.Errorf("download_sources: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", c.BaseURL, pkg, filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", filename, resp.StatusCode)
	}

	destPath := filepath.Join(destDir, filename)
	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", destPath, err)
	}
	return destPath, nil
}

// UploadSources uploads filePath to the lookaside cache for pkg.
func (c *Client) UploadSources(ctx context.Context, pkg, filePath string) error {
	if _, err := c.Broker.EnsureTicket(ctx); err != nil {
		return fmt.Errorf("upload_sources: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close upload body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/upload", c.BaseURL, pkg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", filePath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upload %s: status %d", filePath, resp.StatusCode)
	}
	return nil
}
