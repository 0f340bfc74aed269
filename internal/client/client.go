// Package client talks to the Playlist Service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Masbahul-bari/audio-player/internal/model"
)

var (
	ErrDuplicateItem = errors.New("track already in playlist")
	ErrNotFound      = errors.New("not found")
	ErrNetwork       = errors.New("playlist service unreachable")
)

// Error codes returned by the service.
const (
	CodeDuplicateTrack = "DUPLICATE_TRACK"
	CodeNotFound       = "NOT_FOUND"
)

// APIError is the decoded error body of a non-2xx response.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("playlist service: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrDuplicateItem:
		return e.Code == CodeDuplicateTrack
	case ErrNotFound:
		return e.Status == http.StatusNotFound || e.Code == CodeNotFound
	case ErrNetwork:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

// EntryUpdate is a partial update; nil fields are left unchanged.
type EntryUpdate struct {
	Position  *float64 `json:"position,omitempty"`
	IsPlaying *bool    `json:"is_playing,omitempty"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListTracks(ctx context.Context) ([]model.Track, error) {
	var out []model.Track
	err := c.do(ctx, http.MethodGet, "/api/tracks", nil, &out)
	return out, err
}

func (c *Client) ListEntries(ctx context.Context) ([]model.Entry, error) {
	var out []model.Entry
	if err := c.do(ctx, http.MethodGet, "/api/playlist", nil, &out); err != nil {
		return nil, err
	}
	model.SortEntries(out)
	return out, nil
}

// InsertEntry adds a library track. A nil position appends at the tail.
func (c *Client) InsertEntry(ctx context.Context, trackID, addedBy string, position *float64) (*model.Entry, error) {
	body := map[string]any{
		"track_id": trackID,
		"added_by": addedBy,
	}
	if position != nil {
		body["position"] = *position
	}
	var out model.Entry
	if err := c.do(ctx, http.MethodPost, "/api/playlist", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEntry(ctx context.Context, id string, upd EntryUpdate) (*model.Entry, error) {
	var out model.Entry
	if err := c.do(ctx, http.MethodPatch, "/api/playlist/"+url.PathEscape(id), upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/playlist/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Vote(ctx context.Context, id string, dir model.Direction) (*model.Entry, error) {
	var out model.Entry
	body := map[string]any{"direction": dir}
	if err := c.do(ctx, http.MethodPost, "/api/playlist/"+url.PathEscape(id)+"/vote", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reorder lets the service pick the key for moving id to targetIndex.
func (c *Client) Reorder(ctx context.Context, id string, targetIndex int) ([]model.Entry, error) {
	var out []model.Entry
	body := map[string]any{"target_index": targetIndex}
	if err := c.do(ctx, http.MethodPost, "/api/playlist/"+url.PathEscape(id)+"/reorder", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rebalance asks the service to renumber every key in the current order.
func (c *Client) Rebalance(ctx context.Context) ([]model.Entry, error) {
	var out []model.Entry
	if err := c.do(ctx, http.MethodPost, "/api/playlist/rebalance", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrNetwork, method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var wrapper struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Code:    "UNKNOWN_ERROR",
		Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Error.Code != "" {
		apiErr.Code = wrapper.Error.Code
		apiErr.Message = wrapper.Error.Message
		apiErr.Details = wrapper.Error.Details
	}
	return apiErr
}
