package vlc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	statusXMLPath  = "/requests/status.xml"
	statusJSONPath = "/requests/status.json"
	probeMarker    = "VideoLAN"
)

// HTTPClient talks to VLC's built-in HTTP interface.
type HTTPClient struct {
	baseURL  string
	password string
	httpCli  *http.Client
}

// NewHTTPClient creates a client for the interface at host:port.
func NewHTTPClient(host string, port int, password string) *HTTPClient {
	return NewHTTPClientURL("http://"+net.JoinHostPort(host, strconv.Itoa(port)), password)
}

// NewHTTPClientURL creates a client for an explicit base URL.
func NewHTTPClientURL(baseURL, password string) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		password: password,
		httpCli: &http.Client{
			Timeout: 5 * time.Second,
			// VLC closes every connection after one response.
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}
}

// BaseURL returns the interface address.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) get(ctx context.Context, path, rawQuery string) ([]byte, error) {
	u := c.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth("", c.password)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vlc %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vlc %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &StatusError{Code: resp.StatusCode, Path: path}
	}
	return body, nil
}

// command sends one playlist command. Parameters are passed through
// unencoded apart from what inputURI already escaped.
func (c *HTTPClient) command(ctx context.Context, command string, params ...string) error {
	q := "command=" + command
	for i := 0; i+1 < len(params); i += 2 {
		q += "&" + params[i] + "=" + params[i+1]
	}
	_, err := c.get(ctx, statusXMLPath, q)
	return err
}

// Probe succeeds if the interface answers with a VLC page. Any status is
// accepted as long as the body identifies VLC.
func (c *HTTPClient) Probe(ctx context.Context) error {
	body, err := c.get(ctx, "/", "")
	var se *StatusError
	if err != nil && !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if !strings.Contains(string(body), probeMarker) {
		return fmt.Errorf("%w: %s does not look like VLC", ErrUnreachable, c.baseURL)
	}
	return nil
}

// Clear empties the playlist.
func (c *HTTPClient) Clear(ctx context.Context) error {
	return c.command(ctx, "pl_empty")
}

// Add appends path to the playlist and starts playing it.
func (c *HTTPClient) Add(ctx context.Context, path string) error {
	return c.command(ctx, "in_play", "input", inputURI(path))
}

// Enqueue appends path to the playlist without playing it.
func (c *HTTPClient) Enqueue(ctx context.Context, path string) error {
	return c.command(ctx, "in_enqueue", "input", inputURI(path))
}

// Play resumes playback.
func (c *HTTPClient) Play(ctx context.Context) error {
	return c.command(ctx, "pl_play")
}

// Stop stops playback.
func (c *HTTPClient) Stop(ctx context.Context) error {
	return c.command(ctx, "pl_stop")
}

type statusPayload struct {
	State    string  `json:"state"`
	Length   int64   `json:"length"`
	Time     int64   `json:"time"`
	Position float64 `json:"position"`
	Repeat   bool    `json:"repeat"`
}

// Status reads the player state. Length and time are reported by VLC in
// whole seconds.
func (c *HTTPClient) Status(ctx context.Context) (Status, error) {
	body, err := c.get(ctx, statusJSONPath, "")
	if err != nil {
		return Status{}, err
	}

	var p statusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return Status{
		State:    p.State,
		Length:   time.Duration(p.Length) * time.Second,
		Time:     time.Duration(p.Time) * time.Second,
		Position: p.Position,
		Repeat:   p.Repeat,
	}, nil
}

// inputURI turns a file path into a file:// MRL safe to place in VLC's
// hand-built query string.
func inputURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := (&url.URL{Scheme: "file", Path: p}).String()
	return strings.NewReplacer("&", "%26", "=", "%3D", "+", "%2B").Replace(u)
}
