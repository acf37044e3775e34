package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/tildaslashalef/vaultsync/internal/config"
	"github.com/tildaslashalef/vaultsync/internal/loggy"
)

// Client handles HTTP communication with the Open WebUI API. All calls
// are rate limited and retried with exponential backoff a bounded number
// of times; non-transient API errors fail immediately.
type Client struct {
	cfg        config.KnowledgeConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *loggy.Logger
}

// NewClient creates a new knowledge-base API client.
func NewClient(cfg config.KnowledgeConfig, logger *loggy.Logger) *Client {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	burst := cfg.BurstLimit
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst),
		logger:     logger,
	}
}

// ListKnowledge lists all knowledge collections.
func (c *Client) ListKnowledge(ctx context.Context) ([]KnowledgeBase, error) {
	var resp listKnowledgeResponse
	err := c.withRetry(ctx, func() error {
		return c.makeRequest(ctx, http.MethodGet, "/api/v1/knowledge/", nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("listing knowledge: %w", err)
	}
	return resp.Items, nil
}

// CreateKnowledge creates a new knowledge collection.
func (c *Client) CreateKnowledge(ctx context.Context, name, description string) (*KnowledgeBase, error) {
	req := createKnowledgeRequest{
		Name:          name,
		Description:   description,
		Data:          map[string]any{},
		AccessControl: map[string]any{},
	}

	var kb KnowledgeBase
	err := c.withRetry(ctx, func() error {
		return c.makeRequest(ctx, http.MethodPost, "/api/v1/knowledge/create", req, &kb)
	})
	if err != nil {
		return nil, fmt.Errorf("creating knowledge %q: %w", name, err)
	}
	return &kb, nil
}

// UploadFile uploads a file and returns its remote ID.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	var upload FileUpload
	err := c.withRetry(ctx, func() error {
		return c.uploadMultipart(ctx, path, &upload)
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}
	return upload.ID, nil
}

// AddFileToKnowledge links an uploaded file into a collection.
func (c *Client) AddFileToKnowledge(ctx context.Context, knowledgeID, fileID string) error {
	err := c.withRetry(ctx, func() error {
		url := fmt.Sprintf("/api/v1/knowledge/%s/file/add", knowledgeID)
		return c.makeRequest(ctx, http.MethodPost, url, fileRefRequest{FileID: fileID}, nil)
	})
	if err != nil {
		return fmt.Errorf("adding file to knowledge %s: %w", knowledgeID, err)
	}
	return nil
}

// RemoveFileFromKnowledge unlinks a file from a collection.
func (c *Client) RemoveFileFromKnowledge(ctx context.Context, knowledgeID, fileID string) error {
	err := c.withRetry(ctx, func() error {
		url := fmt.Sprintf("/api/v1/knowledge/%s/file/remove", knowledgeID)
		return c.makeRequest(ctx, http.MethodPost, url, fileRefRequest{FileID: fileID}, nil)
	})
	if err != nil {
		return fmt.Errorf("removing file from knowledge %s: %w", knowledgeID, err)
	}
	return nil
}

// withRetry runs op under the rate limiter with bounded exponential
// backoff. Non-transient API errors are not retried.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries)),
		ctx,
	)

	return backoff.Retry(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		err := op()
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			return backoff.Permanent(err)
		}

		c.logger.Debug("Retrying knowledge API call", "error", err)
		return err
	}, policy)
}

// makeRequest sends a JSON request and decodes the JSON response into out
// (when out is non-nil).
func (c *Client) makeRequest(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, out)
}

// uploadMultipart sends one file as a multipart form to the files
// endpoint.
func (c *Client) uploadMultipart(ctx context.Context, path string, out *FileUpload) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/files/", &buf)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.doRequest(req, out)
}

// doRequest executes the request and maps non-2xx responses to APIError.
func (c *Client) doRequest(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
