// Package jenkins is a small client for the Jenkins remote access API.
//
// Every method performs the HTTP calls for exactly one logical operation and
// reports failures as *RemoteError, whether the request never completed or
// Jenkins answered with a status the operation does not accept.
package jenkins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Timeout bounds every single HTTP call made by the client.
const Timeout = 30 * time.Second

// ErrMissingCredentials is returned by New when the endpoint or credentials are incomplete.
var ErrMissingCredentials = errors.New("jenkins: url, username and token are required")

// Config identifies the Jenkins endpoint and the credentials used for every call.
type Config struct {
	BaseURL   string
	Username  string
	Token     string
	VerifyTLS bool

	// Transport overrides the underlying round tripper. VerifyTLS is ignored when set.
	Transport http.RoundTripper
}

// Client talks to one Jenkins instance. It holds no mutable state and is
// safe for concurrent use.
type Client struct {
	baseURL string

	// follow is used for reads and for the write operations whose normal
	// answer is a redirect; noFollow surfaces redirects as-is.
	follow   *http.Client
	noFollow *http.Client
}

// New validates cfg and builds a client. The trailing slash of BaseURL is dropped here, once.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" || strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingCredentials
	}
	base = strings.TrimSuffix(base, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("jenkins: invalid base url %q", cfg.BaseURL)
	}

	rt := newTransport(cfg, u.Host)
	return &Client{
		baseURL: base,
		follow:  &http.Client{Timeout: Timeout, Transport: rt},
		noFollow: &http.Client{
			Timeout:   Timeout,
			Transport: rt,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// BaseURL returns the normalized Jenkins root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RemoteError is a failed remote operation. Status is 0 when no HTTP
// response was received (network error, timeout, cancellation).
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("jenkins %s: HTTP %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("jenkins %s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	follow      bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, &RemoteError{Op: r.op, Message: err.Error(), Err: err}
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	hc := c.noFollow
	if r.follow {
		hc = c.follow
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: r.op, Message: "request failed: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: r.op, Status: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: b}, nil
}

// expect2xx accepts only 2xx answers.
func expect2xx(op string, resp *response) error {
	if resp.status >= 200 && resp.status < 300 {
		return nil
	}
	return statusError(op, resp)
}

// expectBelow400 accepts anything below 400. Jenkins answers successful
// deletes, build triggers and stops with a redirect.
func expectBelow400(op string, resp *response) error {
	if resp.status < 400 {
		return nil
	}
	return statusError(op, resp)
}

func statusError(op string, resp *response) *RemoteError {
	msg := bodyExcerpt(resp.header.Get("Content-Type"), resp.body)
	if msg == "" {
		msg = http.StatusText(resp.status)
	}
	if loc := resp.header.Get("Location"); loc != "" && resp.status >= 300 && resp.status < 400 {
		msg = fmt.Sprintf("unexpected redirect to %s", loc)
	}
	return &RemoteError{Op: op, Status: resp.status, Message: msg}
}

// jobPath maps a job name to its URL path. Folder jobs are addressed as
// "folder/job" and become /job/folder/job/job.
func jobPath(name string) string {
	var sb strings.Builder
	for _, seg := range strings.Split(name, "/") {
		if seg == "" {
			continue
		}
		sb.WriteString("/job/")
		sb.WriteString(url.PathEscape(seg))
	}
	return sb.String()
}

// splitParent splits "a/b/c" into the folder path of "a/b" and the leaf "c".
func splitParent(name string) (string, string) {
	name = strings.Trim(name, "/")
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return "", name
	}
	return jobPath(name[:i]), name[i+1:]
}
