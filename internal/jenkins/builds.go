package jenkins

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ConsoleTailLines is the number of trailing console lines kept for long logs.
const ConsoleTailLines = 100

// Build is the subset of a build's JSON representation the tools report.
type Build struct {
	Number          int     `json:"number"`
	FullDisplayName string  `json:"fullDisplayName"`
	Result          *string `json:"result"`
	Building        bool    `json:"building"`
	Duration        *int64  `json:"duration"`
	URL             string  `json:"url"`
	Timestamp       *int64  `json:"timestamp"`
}

// Status is the build result, or IN_PROGRESS while Jenkins reports none.
func (b *Build) Status() string {
	if b.Result == nil || *b.Result == "" {
		return "IN_PROGRESS"
	}
	return *b.Result
}

// Running reports whether the duration is not final yet. Jenkins omits it
// or reports 0 while the build is still executing.
func (b *Build) Running() bool {
	return b.Duration == nil || (b.Building && *b.Duration == 0)
}

// StartedAt is the build start time, when known.
func (b *Build) StartedAt() (time.Time, bool) {
	if b.Timestamp == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*b.Timestamp).UTC(), true
}

// Console is a build log, possibly reduced to its tail.
type Console struct {
	Lines      []string
	TotalLines int
	Truncated  bool
}

// GetBuildStatus fetches one build.
func (c *Client) GetBuildStatus(ctx context.Context, name string, number int) (*Build, error) {
	const op = "get_build_status"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   buildPath(name, number) + "/api/json",
		follow: true,
	})
	if err != nil {
		return nil, err
	}
	if err := expect2xx(op, resp); err != nil {
		return nil, err
	}

	var b Build
	if err := decode(op, resp, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetLastBuild resolves the number of the job's last build and then fetches
// that build. The second call is only made when the first one succeeded.
func (c *Client) GetLastBuild(ctx context.Context, name string) (*Build, error) {
	const op = "get_last_build"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   jobPath(name) + "/lastBuild/api/json",
		query:  url.Values{"tree": {"number"}},
		follow: true,
	})
	if err != nil {
		return nil, err
	}
	if err := expect2xx(op, resp); err != nil {
		return nil, err
	}

	var last struct {
		Number int `json:"number"`
	}
	if err := decode(op, resp, &last); err != nil {
		return nil, err
	}
	return c.GetBuildStatus(ctx, name, last.Number)
}

// GetBuildConsole fetches the plain-text log of a build, keeping only the
// last ConsoleTailLines lines of longer logs.
func (c *Client) GetBuildConsole(ctx context.Context, name string, number int) (*Console, error) {
	const op = "get_build_console"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   buildPath(name, number) + "/consoleText",
		follow: true,
	})
	if err != nil {
		return nil, err
	}
	if err := expect2xx(op, resp); err != nil {
		return nil, err
	}
	return tailConsole(string(resp.body), ConsoleTailLines), nil
}

// StopBuild aborts a running build. Same redirect-as-success policy as DeleteJob.
func (c *Client) StopBuild(ctx context.Context, name string, number int) error {
	const op = "stop_build"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   buildPath(name, number) + "/stop",
		follow: true,
	})
	if err != nil {
		return err
	}
	return expectBelow400(op, resp)
}

func buildPath(name string, number int) string {
	return jobPath(name) + "/" + strconv.Itoa(number)
}

func tailConsole(text string, max int) *Console {
	lines := splitLines(text)
	out := &Console{Lines: lines, TotalLines: len(lines)}
	if len(lines) > max {
		out.Lines = lines[len(lines)-max:]
		out.Truncated = true
	}
	return out
}

// splitLines splits on \n or \r\n. A trailing line break does not start a new line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
