package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"taskflow/internal/model"
)

// HTTPClient calls the TaskFlow REST API. The session cookie lives in the
// underlying http.Client's jar.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a client for baseURL (e.g. "http://localhost:8080/api").
// When httpClient is nil a client with a fresh cookie jar is used.
func NewHTTPClient(baseURL string, httpClient *http.Client) (*HTTPClient, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

type userEnvelope struct {
	User model.User `json:"user"`
}

type taskEnvelope struct {
	Task model.Task `json:"task"`
}

type taskListEnvelope struct {
	Tasks []model.Task `json:"tasks"`
}

type statsEnvelope struct {
	Stats model.Stats `json:"stats"`
}

type errorEnvelope struct {
	Error  string       `json:"error"`
	Errors []FieldError `json:"errors"`
}

// Register opens an account; the server signs the new user in right away.
func (c *HTTPClient) Register(ctx context.Context, email, password, fullName string) (*Session, error) {
	var out userEnvelope
	body := map[string]string{"email": email, "password": password, "fullName": fullName}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &out); err != nil {
		return nil, err
	}
	return newSession(c, out.User), nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var out userEnvelope
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return newSession(c, out.User), nil
}

func (c *HTTPClient) logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// forgetSession expires the session cookie in the jar. The jar is shared with
// requests in flight, so it is cleared in place rather than replaced.
func (c *HTTPClient) forgetSession() {
	if c.http.Jar == nil {
		return
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	u.Path = "/"
	c.http.Jar.SetCookies(u, []*http.Cookie{{Name: "token", Value: "", Path: "/", MaxAge: -1}})
}

func (c *HTTPClient) Me(ctx context.Context) (model.User, error) {
	var out userEnvelope
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out.User, err
}

// Stats returns the server-side counts, independent of any local Store.
func (c *HTTPClient) Stats(ctx context.Context) (model.Stats, error) {
	var out statsEnvelope
	err := c.do(ctx, http.MethodGet, "/tasks/stats", nil, &out)
	return out.Stats, err
}

func (c *HTTPClient) ListTasks(ctx context.Context) ([]model.Task, error) {
	var out taskListEnvelope
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (c *HTTPClient) CreateTask(ctx context.Context, fields TaskFields) (model.Task, error) {
	var out taskEnvelope
	err := c.do(ctx, http.MethodPost, "/tasks", fields, &out)
	return out.Task, err
}

func (c *HTTPClient) UpdateTask(ctx context.Context, id string, patch TaskPatch) (model.Task, error) {
	var out taskEnvelope
	err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), patch, &out)
	return out.Task, err
}

func (c *HTTPClient) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: ErrNetwork, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var env errorEnvelope
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env)

	apiErr := &APIError{Status: resp.StatusCode, Message: env.Error, Fields: env.Errors}
	switch resp.StatusCode {
	case http.StatusBadRequest:
		apiErr.Kind = ErrValidation
	case http.StatusUnauthorized:
		apiErr.Kind = ErrAuth
	case http.StatusForbidden:
		apiErr.Kind = ErrForbidden
	case http.StatusNotFound:
		apiErr.Kind = ErrNotFound
	default:
		apiErr.Kind = ErrNetwork
	}
	if apiErr.Message == "" && len(apiErr.Fields) == 0 {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
