// Package httpapi is a RemoteStore for the notes REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aretw0/inkwell/pkg/core"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Client implements core.RemoteStore and core.Archiver over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// noteRequest is the write payload. Tags are always sent so clearing them
// reaches the server.
type noteRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	IsFavorited bool     `json:"is_favorited"`
}

// noteResponse is the server representation of a note.
type noteResponse struct {
	ID          noteID   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	IsFavorited bool     `json:"is_favorited"`
	IsArchived  bool     `json:"is_archived"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// noteID accepts both numeric and string identifiers.
type noteID string

func (id *noteID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = noteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("note id: %w", err)
	}
	*id = noteID(n.String())
	return nil
}

func (r noteResponse) note() (core.Note, error) {
	n := core.Note{
		ID:        string(r.ID),
		Title:     r.Title,
		Body:      r.Content,
		Tags:      r.Tags,
		Favorited: r.IsFavorited,
		Archived:  r.IsArchived,
	}
	var err error
	if r.CreatedAt != "" {
		if n.CreatedAt, err = core.ParseTimestamp(r.CreatedAt); err != nil {
			return core.Note{}, fmt.Errorf("created_at: %w", err)
		}
	}
	if r.UpdatedAt != "" {
		if n.UpdatedAt, err = core.ParseTimestamp(r.UpdatedAt); err != nil {
			return core.Note{}, fmt.Errorf("updated_at: %w", err)
		}
	}
	return n, nil
}

func payload(f core.Fields) noteRequest {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteRequest{Title: f.Title, Content: f.Body, Tags: tags, IsFavorited: f.Favorited}
}

// CreateNote posts a new note. Each call carries a fresh Idempotency-Key.
func (c *Client) CreateNote(ctx context.Context, f core.Fields) (core.Note, error) {
	header := http.Header{}
	header.Set("Idempotency-Key", uuid.NewString())
	return c.noteCall(ctx, "create", http.MethodPost, "/notes", payload(f), header)
}

// UpdateNote patches the note with the full field tuple.
func (c *Client) UpdateNote(ctx context.Context, id string, f core.Fields) (core.Note, error) {
	if id == "" {
		return core.Note{}, &core.RemoteError{Op: "update", Kind: core.KindClient, Err: core.ErrNoIdentity}
	}
	return c.noteCall(ctx, "update", http.MethodPatch, "/notes/"+url.PathEscape(id), payload(f), nil)
}

// GetNote fetches the server state of a note.
func (c *Client) GetNote(ctx context.Context, id string) (core.Note, error) {
	return c.noteCall(ctx, "get", http.MethodGet, "/notes/"+url.PathEscape(id), nil, nil)
}

// ArchiveNote archives a note.
func (c *Client) ArchiveNote(ctx context.Context, id string) error {
	_, err := c.do(ctx, "archive", http.MethodPost, "/notes/"+url.PathEscape(id)+"/archive", nil, nil)
	return err
}

// DeleteNote deletes a note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	_, err := c.do(ctx, "delete", http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil)
	return err
}

func (c *Client) noteCall(ctx context.Context, op, method, path string, body any, header http.Header) (core.Note, error) {
	data, err := c.do(ctx, op, method, path, body, header)
	if err != nil {
		return core.Note{}, err
	}

	var resp noteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return core.Note{}, &core.RemoteError{Op: op, Kind: core.KindServer, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	n, err := resp.note()
	if err != nil {
		return core.Note{}, &core.RemoteError{Op: op, Kind: core.KindServer, Err: err}
	}
	return n, nil
}

// do sends one request and classifies every failure as a *core.RemoteError.
func (c *Client) do(ctx context.Context, op, method, path string, body any, header http.Header) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &core.RemoteError{Op: op, Kind: core.KindClient, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &core.RemoteError{Op: op, Kind: core.KindClient, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "error", err)
		return nil, &core.RemoteError{Op: op, Kind: core.KindTransport, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.RemoteError{Op: op, Kind: core.KindTransport, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	c.logger.Debug("request done", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, &core.RemoteError{
		Op:     op,
		Status: resp.StatusCode,
		Kind:   kindForStatus(resp.StatusCode),
		Err:    statusError(resp.StatusCode, data),
	}
}

// kindForStatus treats request timeouts and rate limiting as transient.
func kindForStatus(status int) core.ErrorKind {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return core.KindServer
	}
	return core.KindForStatus(status)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func statusError(status int, body []byte) error {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Message != "" {
			msg = apiErr.Message
		} else if apiErr.Error != "" {
			msg = apiErr.Error
		}
	}
	msg = truncate(msg, maxErrorBody)

	var base error
	switch status {
	case http.StatusNotFound:
		base = core.ErrNotFound
	default:
		base = errors.New(http.StatusText(status))
	}
	if msg == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, msg)
}

var (
	_ core.RemoteStore = (*Client)(nil)
	_ core.Archiver    = (*Client)(nil)
)
