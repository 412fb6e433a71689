package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"tree-census/internal/config"
)

var (
	ErrSourceNotConfigured = errors.New("dataset source URL is not configured")
	ErrTooLarge            = errors.New("remote dataset exceeds the import size limit")
)

// DatasetClient downloads the spreadsheet that seeds remote sessions.
type DatasetClient struct {
	sourceURL  string
	token      string
	maxBytes   int64
	retryDelay time.Duration
	httpClient *http.Client
}

func NewDatasetClient(cfg *config.Config) *DatasetClient {
	return &DatasetClient{
		sourceURL:  cfg.DatasetSource.URL,
		token:      cfg.DatasetSource.Token,
		maxBytes:   cfg.Import.MaxBytes,
		retryDelay: 500 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *DatasetClient) Configured() bool {
	return c.sourceURL != ""
}

// Fetch returns the file body and a filename whose extension selects the parser.
func (c *DatasetClient) Fetch(ctx context.Context) ([]byte, string, error) {
	if c.sourceURL == "" {
		return nil, "", ErrSourceNotConfigured
	}

	u, err := url.Parse(c.sourceURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid dataset source URL: %w", err)
	}

	newRequest := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return req, nil
	}

	// Network errors are retried with a linearly growing pause; HTTP errors are not.
	var resp *http.Response
	var lastErr error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := newRequest()
		if err != nil {
			return nil, "", err
		}
		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil {
			break
		}
		if attempt == maxRetries-1 {
			return nil, "", fmt.Errorf("failed to execute request after %d attempts: %w", maxRetries, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.retryDelay):
		}
	}
	if resp == nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", lastErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("dataset source returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if int64(len(body)) > c.maxBytes {
		return nil, "", ErrTooLarge
	}

	return body, filenameOf(resp, u), nil
}

func filenameOf(resp *http.Response, u *url.URL) string {
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			return path.Base(name)
		}
	}
	if name := path.Base(u.Path); name != "." && strings.Contains(name, ".") {
		return name
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if strings.Contains(mediaType, "spreadsheetml") {
		return "remote.xlsx"
	}
	return "remote.csv"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
