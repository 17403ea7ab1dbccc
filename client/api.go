// Package client is a Go client for the cuttracker JSON API with optimistic
// sheet status updates and realtime resync.
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
	"time"

	"github.com/gorilla/websocket"

	"cuttracker/models"
)

const (
	sessionCookieName = "X-Session-Token"
	csrfCookieName    = "X-CSRF-Token"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cuttracker: http %d %s", e.StatusCode, e.Kind)
	}
	return fmt.Sprintf("cuttracker: http %d %s: %s", e.StatusCode, e.Kind, e.Message)
}

// Progress mirrors the rollup returned with a job.
type Progress struct {
	TotalSheets     int `json:"totalSheets"`
	CompletedSheets int `json:"completedSheets"`
	SkippedSheets   int `json:"skippedSheets"`
	RecutSheets     int `json:"recutSheets"`
	RecutCompleted  int `json:"recutCompleted"`
}

// JobDetail is the job tree with its progress rollup.
type JobDetail struct {
	Job      models.Job `json:"job"`
	Progress Progress   `json:"progress"`
}

// API talks to one server with a cookie session.
type API struct {
	base       *url.URL
	httpClient *http.Client
}

// NewAPI returns a client for baseURL, e.g. http://localhost:8080.
func NewAPI(baseURL string, timeout time.Duration) (*API, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &API{
		base: u,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Login opens a session. The server answers the form post with a redirect;
// anything pointing back at /login is a rejection.
func (a *API) Login(ctx context.Context, username, password string) error {
	resp, err := a.send(ctx, http.MethodGet, "/login", nil, "")
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	form := url.Values{"username": {username}, "password": {password}, "_csrf": {a.cookie(csrfCookieName)}}
	resp, err = a.send(ctx, http.MethodPost, "/login", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	loc := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusSeeOther || strings.HasPrefix(loc, "/login") {
		msg := "login rejected"
		if u, err := url.Parse(loc); err == nil && u.Query().Get("error") != "" {
			msg = u.Query().Get("error")
		}
		return &APIError{StatusCode: http.StatusUnauthorized, Kind: "unauthenticated", Message: msg}
	}
	if a.cookie(sessionCookieName) == "" {
		return &APIError{StatusCode: resp.StatusCode, Kind: "unauthenticated", Message: "no session cookie issued"}
	}
	return nil
}

// GetJob loads the job tree including materials and recuts.
func (a *API) GetJob(ctx context.Context, jobID int64) (JobDetail, error) {
	var out JobDetail
	err := a.doJSON(ctx, http.MethodGet, fmt.Sprintf("/tasker/api/jobs/%d", jobID), nil, &out)
	return out, err
}

// ListRecuts loads every recut entry of a material.
func (a *API) ListRecuts(ctx context.Context, materialID int64) ([]models.RecutEntry, error) {
	var out struct {
		Recuts []models.RecutEntry `json:"recuts"`
	}
	err := a.doJSON(ctx, http.MethodGet, fmt.Sprintf("/tasker/api/materials/%d/recuts", materialID), nil, &out)
	return out.Recuts, err
}

func (a *API) SetSheetStatus(ctx context.Context, materialID int64, index int, status models.SheetStatus) error {
	return a.doJSON(ctx, http.MethodPost, fmt.Sprintf("/tasker/api/materials/%d/sheets/%d/status", materialID, index),
		map[string]string{"status": string(status)}, nil)
}

func (a *API) SetRecutSheetStatus(ctx context.Context, recutID int64, index int, status models.SheetStatus) error {
	return a.doJSON(ctx, http.MethodPost, fmt.Sprintf("/tasker/api/recuts/%d/sheets/%d/status", recutID, index),
		map[string]string{"status": string(status)}, nil)
}

// DialEvents opens the realtime websocket with the session cookie.
func (a *API) DialEvents(ctx context.Context) (*websocket.Conn, error) {
	u := *a.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/tasker/ws"
	dialer := websocket.Dialer{Jar: a.httpClient.Jar, HandshakeTimeout: a.httpClient.Timeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial events: http %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial events: %w", err)
	}
	return conn, nil
}

func (a *API) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
		contentType = "application/json"
	}
	resp, err := a.send(ctx, method, path, reader, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Kind, apiErr.Message = env.Error, env.Message
		}
		if apiErr.Kind == "" {
			apiErr.Kind = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (a *API) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := a.cookie(csrfCookieName); token != "" {
		req.Header.Set("X-CSRF-Token", token)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (a *API) cookie(name string) string {
	for _, c := range a.httpClient.Jar.Cookies(a.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
