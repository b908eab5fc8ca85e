// Package client is a typed HTTP client for the smart-todo API, bound to a
// single user. It implements reorder.Store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BuzzLyutic/smart-todo/internal/middleware"
	"github.com/BuzzLyutic/smart-todo/internal/model"
	"github.com/BuzzLyutic/smart-todo/internal/service"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL string
	user    model.User
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, user model.User, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) User() model.User { return c.user }

// Fetch loads the canonical list.
func (c *Client) Fetch(ctx context.Context) ([]model.Todo, error) {
	return c.List(ctx)
}

func (c *Client) List(ctx context.Context) ([]model.Todo, error) {
	var todos []model.Todo
	err := c.doJSON(ctx, http.MethodGet, "/api/todos", nil, &todos)
	return todos, err
}

func (c *Client) Add(ctx context.Context, text string) (model.Todo, error) {
	var todo model.Todo
	err := c.doJSON(ctx, http.MethodPost, "/api/todos", map[string]string{"text": text}, &todo)
	return todo, err
}

// AddMany returns the todos that were created even when the batch stopped
// early; err is then an *APIError with status 207.
func (c *Client) AddMany(ctx context.Context, texts []string) ([]model.Todo, error) {
	var resp struct {
		Todos []model.Todo `json:"todos"`
		Error string       `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/todos/batch", map[string][]string{"texts": texts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return resp.Todos, &APIError{Status: http.StatusMultiStatus, Message: resp.Error}
	}
	return resp.Todos, nil
}

func (c *Client) Toggle(ctx context.Context, id int64) (model.Todo, error) {
	var todo model.Todo
	err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/todos/%d/toggle", id), nil, &todo)
	return todo, err
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/todos/%d", id), nil, nil)
}

func (c *Client) Reorder(ctx context.Context, ids []int64) ([]model.Todo, error) {
	var todos []model.Todo
	err := c.doJSON(ctx, http.MethodPut, "/api/todos/order", map[string][]int64{"ids": ids}, &todos)
	return todos, err
}

func (c *Client) SetSuggestions(ctx context.Context, id int64, suggestions []string) (model.Todo, error) {
	var todo model.Todo
	path := fmt.Sprintf("/api/todos/%d/suggestions", id)
	err := c.doJSON(ctx, http.MethodPut, path, map[string][]string{"suggestions": suggestions}, &todo)
	return todo, err
}

// GenerateSuggestions asks the server to generate and store subtasks now.
func (c *Client) GenerateSuggestions(ctx context.Context, id int64) (model.Todo, error) {
	var todo model.Todo
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/todos/%d/suggestions", id), nil, &todo)
	return todo, err
}

// QueueSuggestions hands generation to the server's background workers.
func (c *Client) QueueSuggestions(ctx context.Context, id int64) (model.SuggestionJob, error) {
	var job model.SuggestionJob
	path := fmt.Sprintf("/api/todos/%d/suggestions?%s", id, url.Values{"async": {"true"}}.Encode())
	err := c.doJSON(ctx, http.MethodPost, path, nil, &job)
	return job, err
}

func (c *Client) Suggest(ctx context.Context, task string) ([]string, error) {
	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/ai/suggest", map[string]string{"task": task}, &resp)
	return resp.Suggestions, err
}

func (c *Client) Prioritize(ctx context.Context, todos []string) (service.Prioritized, error) {
	var resp service.Prioritized
	err := c.doJSON(ctx, http.MethodPost, "/api/ai/prioritize", map[string][]string{"todos": todos}, &resp)
	return resp, err
}

func (c *Client) PepTalk(ctx context.Context, text string) (string, error) {
	var resp struct {
		PepTalk string `json:"pepTalk"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/ai/pep-talk", map[string]string{"text": text}, &resp)
	return resp.PepTalk, err
}

// ExtractFromImage uploads an image and returns the todo lines found in it.
func (c *Client) ExtractFromImage(ctx context.Context, filename string, data []byte) ([]string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/ai/create-from-image", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		Todos []string `json:"todos"`
	}
	err = c.do(req, &resp)
	return resp.Todos, err
}

func (c *Client) FeatureUsage(ctx context.Context) ([]model.FeatureUsage, error) {
	var usage []model.FeatureUsage
	err := c.doJSON(ctx, http.MethodGet, "/api/features", nil, &usage)
	return usage, err
}

func (c *Client) RecordFeatureUsage(ctx context.Context, feature string) (model.FeatureUsage, error) {
	var usage model.FeatureUsage
	err := c.doJSON(ctx, http.MethodPost, "/api/features", map[string]string{"feature": feature}, &usage)
	return usage, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(middleware.HeaderUserID, c.user.ID)
	if c.user.Anonymous {
		req.Header.Set(middleware.HeaderAnonymous, "true")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode) + " (" + strconv.Itoa(resp.StatusCode) + ")"
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
