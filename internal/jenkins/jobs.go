package jenkins

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Job is one entry of the root job listing.
type Job struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	URL   string `json:"url"`
}

// QueueRef is the answer to a build trigger. Location points at the queue
// item when Jenkins reports one.
type QueueRef struct {
	Status   int
	Location string
}

// ListJobs returns the top-level jobs. An empty slice is a valid answer.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	const op = "list_jobs"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/api/json",
		query:  url.Values{"tree": {"jobs[name,color,url]"}},
		follow: true,
	})
	if err != nil {
		return nil, err
	}
	if err := expect2xx(op, resp); err != nil {
		return nil, err
	}

	var out struct {
		Jobs []Job `json:"jobs"`
	}
	if err := decode(op, resp, &out); err != nil {
		return nil, err
	}
	if out.Jobs == nil {
		out.Jobs = []Job{}
	}
	return out.Jobs, nil
}

// CreateJob creates a job from its config.xml. Only 2xx counts as success;
// a redirect here usually means a login page, not a created job.
func (c *Client) CreateJob(ctx context.Context, name, configXML string) error {
	const op = "create_job"
	parent, leaf := splitParent(name)
	resp, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        parent + "/createItem",
		query:       url.Values{"name": {leaf}},
		body:        []byte(configXML),
		contentType: "application/xml",
	})
	if err != nil {
		return err
	}
	return expect2xx(op, resp)
}

// UpdateJob replaces a job's config.xml. Same strict 2xx policy as CreateJob.
func (c *Client) UpdateJob(ctx context.Context, name, configXML string) error {
	const op = "update_job"
	resp, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        jobPath(name) + "/config.xml",
		body:        []byte(configXML),
		contentType: "application/xml",
	})
	if err != nil {
		return err
	}
	return expect2xx(op, resp)
}

// DeleteJob deletes a job. Redirects are followed and any status below 400 is success.
func (c *Client) DeleteJob(ctx context.Context, name string) error {
	const op = "delete_job"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   jobPath(name) + "/doDelete",
		follow: true,
	})
	if err != nil {
		return err
	}
	return expectBelow400(op, resp)
}

// TriggerBuild queues a build. With parameters the form-encoded
// buildWithParameters endpoint is used, otherwise plain build.
func (c *Client) TriggerBuild(ctx context.Context, name string, params map[string]string) (*QueueRef, error) {
	const op = "trigger_build"
	r := request{
		op:     op,
		method: http.MethodPost,
		path:   jobPath(name) + "/build",
		follow: true,
	}
	if len(params) > 0 {
		form := url.Values{}
		for k, v := range params {
			form.Set(k, v)
		}
		r.path = jobPath(name) + "/buildWithParameters"
		r.body = []byte(form.Encode())
		r.contentType = "application/x-www-form-urlencoded"
	}

	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := expectBelow400(op, resp); err != nil {
		return nil, err
	}
	return &QueueRef{Status: resp.status, Location: resp.header.Get("Location")}, nil
}

func decode(op string, resp *response, v any) error {
	if err := json.Unmarshal(resp.body, v); err != nil {
		return &RemoteError{Op: op, Status: resp.status, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}
