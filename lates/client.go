package lates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/nexlate/tracker/middleware"
	"github.com/nexlate/tracker/models"
	"go.uber.org/zap"
)

// ErrInvalidRequest means the request could not be built from the caller's
// input, so nothing was sent.
var ErrInvalidRequest = errors.New("invalid backend request")

// Observer is told about every backend call. status is 0 when no response
// was received.
type Observer interface {
	ObserveBackend(operation string, status int, d time.Duration)
}

// Client talks to the lates backend service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	observer   Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a backend reply, read in full so it can be relayed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns a *StatusError for non-2xx responses.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	se := &StatusError{StatusCode: r.StatusCode, Body: r.Body}
	var body models.ErrorBody
	if err := json.Unmarshal(r.Body, &body); err == nil && body.Detail != nil {
		if s, ok := body.Detail.(string); ok {
			se.Detail = s
		} else {
			se.Detail = fmt.Sprint(body.Detail)
		}
	}
	return se
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Detail     string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("lates backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("lates backend returned %d", e.StatusCode)
}

// All fetches every entry. query may carry limit and newest_first.
func (c *Client) All(ctx context.Context, query url.Values) (*Response, error) {
	return c.do(ctx, "list", http.MethodGet, "/lates/all", query, nil, "")
}

func (c *Client) Get(ctx context.Context, key models.DateKey) (*Response, error) {
	return c.do(ctx, "get", http.MethodGet, "/lates/"+key.Path(), nil, nil, "")
}

// Create posts a new entry as multipart form data. excuse is only sent when set.
func (c *Client) Create(ctx context.Context, entry models.NewEntry) (*Response, error) {
	fields := [][2]string{{"minutes_late", entry.MinutesLate}}
	if entry.Excuse != nil {
		fields = append(fields, [2]string{"excuse", *entry.Excuse})
	}

	body, contentType, err := multipartBody(fields)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "create", http.MethodPost, "/lates", nil, body, contentType)
}

func (c *Client) Update(ctx context.Context, key models.DateKey, update models.EntryUpdate) (*Response, error) {
	var fields [][2]string
	if update.MinutesLate != nil {
		fields = append(fields, [2]string{"minutes_late", *update.MinutesLate})
	}
	if update.Excuse != nil {
		fields = append(fields, [2]string{"excuse", *update.Excuse})
	}

	body, contentType, err := multipartBody(fields)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "update", http.MethodPut, "/lates/"+key.Path(), nil, body, contentType)
}

func (c *Client) Delete(ctx context.Context, key models.DateKey) (*Response, error) {
	return c.do(ctx, "delete", http.MethodDelete, "/lates/"+key.Path(), nil, nil, "")
}

// Entries fetches and decodes the full list, in backend order.
func (c *Client) Entries(ctx context.Context) (models.EntryList, error) {
	res, err := c.All(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	var list models.EntryList
	if err := json.Unmarshal(res.Body, &list); err != nil {
		return nil, fmt.Errorf("error decoding entries: %w", err)
	}
	return list, nil
}

func (c *Client) Entry(ctx context.Context, key models.DateKey) (*models.LateEntry, error) {
	res, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeEntry(res)
}

func (c *Client) CreateEntry(ctx context.Context, entry models.NewEntry) (*models.LateEntry, error) {
	res, err := c.Create(ctx, entry)
	if err != nil {
		return nil, err
	}
	return decodeEntry(res)
}

func (c *Client) DeleteEntry(ctx context.Context, key models.DateKey) error {
	res, err := c.Delete(ctx, key)
	if err != nil {
		return err
	}
	return res.Err()
}

func decodeEntry(res *Response) (*models.LateEntry, error) {
	if err := res.Err(); err != nil {
		return nil, err
	}
	var entry models.LateEntry
	if err := json.Unmarshal(res.Body, &entry); err != nil {
		return nil, fmt.Errorf("error decoding entry: %w", err)
	}
	return &entry, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body io.Reader, contentType string) (*Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w: %w", ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := middleware.ForContext(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, 0, time.Since(start))
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	c.observe(operation, res.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	c.logger.Debug("backend call",
		zap.String("operation", operation),
		zap.String("method", method),
		zap.String("url", u),
		zap.Int("status", res.StatusCode))

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
	}, nil
}

func (c *Client) observe(operation string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBackend(operation, status, d)
	}
}

func multipartBody(fields [][2]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("error encoding form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("error encoding form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
