package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	appErr "cryptoj/pkg/errors"
)

// API is the sandbox surface consumed by the judge engine and the
// special-judge strategy. Every uploaded or cached file must be released by
// the caller with DeleteFile; the client performs no garbage collection.
type API interface {
	Run(ctx context.Context, req Request) ([]Result, error)
	UploadFile(ctx context.Context, content io.Reader) (string, error)
	OpenFile(ctx context.Context, fileID string) (io.ReadCloser, error)
	ReadFile(ctx context.Context, fileID string) ([]byte, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// Config holds sandbox client settings.
type Config struct {
	Endpoint string        `yaml:"endpoint"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`

	// CheckInterval is the scheduler's fallback polling interval.
	CheckInterval time.Duration `yaml:"checkInterval"`
}

// Client speaks the sandbox REST contract over HTTP. Errors are terminal:
// compile/run mutate the sandbox's ephemeral filesystem, so no request is
// ever retried here.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient creates a sandbox client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sandbox endpoint is required")
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		http:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Run executes one run request and returns per-process results in order.
func (c *Client) Run(ctx context.Context, req Request) ([]Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxError, "encode run request failed")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxError, "build run request failed")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxError, "sandbox run request failed")
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxError, "decode run response failed")
	}
	if len(results) != len(req.Cmd) {
		return nil, appErr.Newf(appErr.SandboxError, "sandbox returned %d results for %d commands", len(results), len(req.Cmd))
	}
	return results, nil
}

// UploadFile uploads a blob and returns the cached file handle.
func (c *Client) UploadFile(ctx context.Context, content io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "file")
	if err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxFileError, "build upload form failed")
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxFileError, "read upload content failed")
	}
	if err := writer.Close(); err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxFileError, "finish upload form failed")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/file", &buf)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxFileError, "build upload request failed")
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxFileError, "sandbox upload failed")
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return "", err
	}

	// The sandbox answers with a JSON-encoded handle string.
	var fileID string
	if err := json.NewDecoder(resp.Body).Decode(&fileID); err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxFileError, "decode upload response failed")
	}
	return fileID, nil
}

// OpenFile streams a cached file's content. Caller must close the reader.
func (c *Client) OpenFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/file/"+fileID, nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxFileError, "build download request failed")
	}
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxFileError, "sandbox download failed")
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// ReadFile downloads a cached file fully into memory.
func (c *Client) ReadFile(ctx context.Context, fileID string) ([]byte, error) {
	reader, err := c.OpenFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxFileError, "read file %s failed", fileID)
	}
	return data, nil
}

// DeleteFile releases a cached file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint+"/file/"+fileID, nil)
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxFileError, "build delete request failed")
	}
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxFileError, "sandbox delete failed")
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return appErr.Newf(appErr.SandboxError, "sandbox responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
