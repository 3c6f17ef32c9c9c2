// Package aoai calls an Azure OpenAI resource over REST: single-shot chat completions and the
// assistants thread/run API.
package aoai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/magicman/marv/internal/logger"
)

// HTTPError is any non-2xx response from the provider.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("azure openai %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 500))
}

// Options configures a Client.
type Options struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        *logger.Logger
}

// Client is a thin REST client. It never retries; every non-2xx is returned as *HTTPError.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	http       *http.Client
	log        *logger.Logger
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		apiKey:     opts.APIKey,
		apiVersion: opts.APIVersion,
		http:       hc,
		log:        log.With("service", "AzureOpenAIClient"),
	}
}

func (c *Client) url(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.apiVersion != "" {
		query.Set("api-version", c.apiVersion)
	}
	return c.endpoint + path + "?" + query.Encode()
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var rd io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		rd = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, path, out)
}

// doMultipart posts a multipart payload, used for file uploads.
func (c *Client) doMultipart(ctx context.Context, path string, payload []byte, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, nil), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(req, path, out)
}

func (c *Client) send(req *http.Request, path string, out any) error {
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("azure openai %s %s: %w", req.Method, path, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("azure openai %s %s: read body: %w", req.Method, path, readErr)
	}
	c.log.Debug("azure openai call", "method", req.Method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Method: req.Method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("azure openai decode %s: %w; raw=%s", path, err, truncate(string(raw), 300))
	}
	return nil
}

// UploadFile stores data under purpose "assistants" and returns the file id.
func (c *Client) UploadFile(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("purpose", "assistants")
	part, err := w.CreatePart(fileHeader(filename, contentType))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doMultipart(ctx, "/openai/files", buf.Bytes(), w.FormDataContentType(), &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("file upload returned no id")
	}
	return out.ID, nil
}

// DeleteFile removes a previously uploaded file.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/openai/files/"+url.PathEscape(id), nil, nil, nil)
}

func fileHeader(filename, contentType string) textproto.MIMEHeader {
	if filename == "" {
		filename = "image"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
