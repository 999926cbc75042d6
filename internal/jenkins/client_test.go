package jenkins

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golovatskygroup/mcp-jenkins/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, f *testutil.FakeJenkins) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: f.URL + "/", Username: "bot", Token: "s3cret", VerifyTLS: true})
	require.NoError(t, err)
	return c
}

func remoteErr(t *testing.T, err error) *RemoteError {
	t.Helper()
	var re *RemoteError
	require.True(t, errors.As(err, &re), "expected *RemoteError, got %T: %v", err, err)
	return re
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{BaseURL: "http://ci", Username: "u"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = New(Config{BaseURL: "ci.example.com", Username: "u", Token: "t"})
	assert.ErrorContains(t, err, "invalid base url")

	c, err := New(Config{BaseURL: "https://ci.example.com/jenkins/", Username: "u", Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "https://ci.example.com/jenkins", c.BaseURL())
}

func TestJobPath(t *testing.T) {
	assert.Equal(t, "/job/app", jobPath("app"))
	assert.Equal(t, "/job/team/job/app", jobPath("team/app"))
	assert.Equal(t, "/job/my%20job", jobPath("my job"))

	parent, leaf := splitParent("team/sub/app")
	assert.Equal(t, "/job/team/job/sub", parent)
	assert.Equal(t, "app", leaf)
}

func TestListJobs(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodGet, "/api/json", testutil.JSON(http.StatusOK, map[string]any{
		"jobs": []map[string]string{
			{"name": "app", "color": "blue", "url": "http://ci/job/app/"},
			{"name": "lib", "color": "red", "url": "http://ci/job/lib/"},
		},
	}))
	c := newTestClient(t, f)

	jobs, err := c.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, Job{Name: "lib", Color: "red", URL: "http://ci/job/lib/"}, jobs[1])

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "jobs[name,color,url]", calls[0].Query.Get("tree"))
	assert.Equal(t, "bot", calls[0].User)
	assert.Equal(t, "s3cret", calls[0].Password)
	assert.Equal(t, userAgent, calls[0].UserAgent)
}

func TestListJobsEmpty(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodGet, "/api/json", testutil.JSON(http.StatusOK, map[string]any{}))
	c := newTestClient(t, f)

	jobs, err := c.ListJobs(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestListJobsBadJSON(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodGet, "/api/json", testutil.Text(http.StatusOK, "{nope"))
	c := newTestClient(t, f)

	_, err := c.ListJobs(context.Background())
	re := remoteErr(t, err)
	assert.Contains(t, re.Message, "decode response")
}

func TestCreateJob(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodPost, "/createItem", testutil.Status(http.StatusOK))
	f.Handle(http.MethodPost, "/job/team/createItem", testutil.Status(http.StatusOK))
	c := newTestClient(t, f)

	require.NoError(t, c.CreateJob(context.Background(), "app", "<project/>"))
	require.NoError(t, c.CreateJob(context.Background(), "team/svc", "<project/>"))

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "app", calls[0].Query.Get("name"))
	assert.Equal(t, "<project/>", calls[0].Body)
	assert.Equal(t, "application/xml", calls[0].ContentType)
	assert.Equal(t, "/job/team/createItem", calls[1].Path)
	assert.Equal(t, "svc", calls[1].Query.Get("name"))
}

func TestUpdateJob(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodPost, "/job/app/config.xml", testutil.Status(http.StatusOK))
	c := newTestClient(t, f)

	require.NoError(t, c.UpdateJob(context.Background(), "app", "<project><disabled>true</disabled></project>"))
	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "application/xml", calls[0].ContentType)
	assert.Contains(t, calls[0].Body, "<disabled>true</disabled>")
}

func TestConfigWritesRequire2xx(t *testing.T) {
	for _, status := range []int{http.StatusFound, http.StatusBadRequest, http.StatusInternalServerError} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			f := testutil.NewFakeJenkins(t)
			h := testutil.Status(status)
			if status == http.StatusFound {
				h = testutil.Redirect(status, "/login")
			}
			f.Handle(http.MethodPost, "/createItem", h)
			f.Handle(http.MethodPost, "/job/app/config.xml", h)
			f.Handle(http.MethodGet, "/login", testutil.Status(http.StatusOK))
			c := newTestClient(t, f)

			re := remoteErr(t, c.CreateJob(context.Background(), "app", "<x/>"))
			assert.Equal(t, status, re.Status)
			assert.Equal(t, "create_job", re.Op)

			re = remoteErr(t, c.UpdateJob(context.Background(), "app", "<x/>"))
			assert.Equal(t, status, re.Status)

			// Redirects are reported, not followed.
			assert.Len(t, f.Calls(), 2)
		})
	}
}

func TestRedirectAsSuccessOperations(t *testing.T) {
	cases := []struct {
		status int
		ok     bool
	}{
		{http.StatusOK, true},
		{http.StatusCreated, true},
		{http.StatusFound, true},
		{http.StatusSeeOther, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
		{http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			f := testutil.NewFakeJenkins(t)
			h := testutil.Status(tc.status)
			if tc.status >= 300 && tc.status < 400 {
				h = testutil.Redirect(tc.status, "/")
			}
			f.Handle(http.MethodGet, "/", testutil.Status(http.StatusOK))
			f.Handle(http.MethodPost, "/job/app/doDelete", h)
			f.Handle(http.MethodPost, "/job/app/build", h)
			f.Handle(http.MethodPost, "/job/app/7/stop", h)
			c := newTestClient(t, f)
			ctx := context.Background()

			_, trigErr := c.TriggerBuild(ctx, "app", nil)
			errs := map[string]error{
				"delete_job":    c.DeleteJob(ctx, "app"),
				"trigger_build": trigErr,
				"stop_build":    c.StopBuild(ctx, "app", 7),
			}
			for op, err := range errs {
				if tc.ok {
					assert.NoError(t, err, op)
					continue
				}
				re := remoteErr(t, err)
				assert.Equal(t, tc.status, re.Status, op)
				assert.Equal(t, op, re.Op)
			}
		})
	}
}

func TestDeleteJobFollowsRedirect(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodPost, "/job/app/doDelete", testutil.Redirect(http.StatusFound, "/"))
	f.Handle(http.MethodGet, "/", testutil.Status(http.StatusOK))
	c := newTestClient(t, f)

	require.NoError(t, c.DeleteJob(context.Background(), "app"))
	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/", calls[1].Path)
	assert.Equal(t, "bot", calls[1].User, "credentials must survive the redirect")
}

func TestRedirectToOtherHostDropsCredentials(t *testing.T) {
	other := testutil.NewFakeJenkins(t)
	other.Handle(http.MethodGet, "/landing", testutil.Status(http.StatusOK))
	_, port, err := net.SplitHostPort(other.Listener.Addr().String())
	require.NoError(t, err)

	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodPost, "/job/app/doDelete", testutil.Redirect(http.StatusFound, "http://localhost:"+port+"/landing"))
	c := newTestClient(t, f)

	require.NoError(t, c.DeleteJob(context.Background(), "app"))
	require.Len(t, f.Calls(), 1)
	assert.Equal(t, "bot", f.Calls()[0].User)

	calls := other.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].User)
	assert.Empty(t, calls[0].Password)
	assert.Equal(t, "jenkins-mcp", calls[0].UserAgent)
}

func TestDeleteJobNotFoundMessage(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	c := newTestClient(t, f)

	re := remoteErr(t, c.DeleteJob(context.Background(), "ghost"))
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Contains(t, re.Message, "Not Found")
	assert.NotContains(t, re.Message, "var x")
	assert.NotContains(t, re.Message, "<")
	assert.Contains(t, re.Error(), "HTTP 404")
}

func TestTriggerBuild(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	queued := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://ci/queue/item/42/")
		w.WriteHeader(http.StatusCreated)
	}
	f.Handle(http.MethodPost, "/job/app/build", queued)
	f.Handle(http.MethodPost, "/job/app/buildWithParameters", queued)
	c := newTestClient(t, f)

	ref, err := c.TriggerBuild(context.Background(), "app", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://ci/queue/item/42/", ref.Location)
	assert.Equal(t, http.StatusCreated, ref.Status)

	_, err = c.TriggerBuild(context.Background(), "app", map[string]string{"BRANCH": "main", "DRY_RUN": "true"})
	require.NoError(t, err)

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/job/app/build", calls[0].Path)
	assert.Empty(t, calls[0].Body)
	assert.Equal(t, "/job/app/buildWithParameters", calls[1].Path)
	assert.Equal(t, "application/x-www-form-urlencoded", calls[1].ContentType)
	assert.Equal(t, "BRANCH=main&DRY_RUN=true", calls[1].Body)
}

func TestGetBuildStatus(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodGet, "/job/app/12/api/json", testutil.JSON(http.StatusOK, map[string]any{
		"number":          12,
		"fullDisplayName": "app #12",
		"result":          "SUCCESS",
		"building":        false,
		"duration":        12345,
		"url":             "http://ci/job/app/12/",
		"timestamp":       1700000000000,
	}))
	f.Handle(http.MethodGet, "/job/app/13/api/json", testutil.JSON(http.StatusOK, map[string]any{
		"number":   13,
		"result":   nil,
		"building": true,
	}))
	c := newTestClient(t, f)

	b, err := c.GetBuildStatus(context.Background(), "app", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, b.Number)
	assert.Equal(t, "SUCCESS", b.Status())
	assert.False(t, b.Running())
	started, ok := b.StartedAt()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), started.Unix())

	b, err = c.GetBuildStatus(context.Background(), "app", 13)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", b.Status())
	assert.True(t, b.Running())
	_, ok = b.StartedAt()
	assert.False(t, ok)
}

func TestGetLastBuild(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodGet, "/job/app/lastBuild/api/json", testutil.JSON(http.StatusOK, map[string]any{"number": 5}))
	f.Handle(http.MethodGet, "/job/app/5/api/json", testutil.JSON(http.StatusOK, map[string]any{"number": 5, "result": "FAILURE", "duration": 1000}))
	c := newTestClient(t, f)

	b, err := c.GetLastBuild(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, 5, b.Number)
	assert.Equal(t, "FAILURE", b.Status())

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "number", calls[0].Query.Get("tree"))
	assert.Equal(t, "/job/app/5/api/json", calls[1].Path)
}

func TestGetLastBuildStopsAfterFailure(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	c := newTestClient(t, f)

	re := remoteErr(t, func() error { _, err := c.GetLastBuild(context.Background(), "never-built"); return err }())
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Equal(t, "get_last_build", re.Op)
	assert.Len(t, f.Calls(), 1)
}

func numberedLines(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	return sb.String()
}

func TestGetBuildConsoleTruncation(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	f.Handle(http.MethodGet, "/job/app/1/consoleText", testutil.Text(http.StatusOK, numberedLines(150)))
	f.Handle(http.MethodGet, "/job/app/2/consoleText", testutil.Text(http.StatusOK, numberedLines(50)))
	c := newTestClient(t, f)

	long, err := c.GetBuildConsole(context.Background(), "app", 1)
	require.NoError(t, err)
	assert.True(t, long.Truncated)
	assert.Equal(t, 150, long.TotalLines)
	require.Len(t, long.Lines, ConsoleTailLines)
	assert.Equal(t, "line 51", long.Lines[0])
	assert.Equal(t, "line 150", long.Lines[99])

	short, err := c.GetBuildConsole(context.Background(), "app", 2)
	require.NoError(t, err)
	assert.False(t, short.Truncated)
	assert.Equal(t, 50, short.TotalLines)
	assert.Len(t, short.Lines, 50)
	assert.Equal(t, "line 1", short.Lines[0])
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\r\nb\r\n"))
	assert.Equal(t, []string{"a", "", "b"}, splitLines("a\n\nb"))

	exact := tailConsole(numberedLines(ConsoleTailLines), ConsoleTailLines)
	assert.False(t, exact.Truncated)
	assert.Len(t, exact.Lines, ConsoleTailLines)
}

func TestNetworkErrorIsRemoteError(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	c := newTestClient(t, f)
	f.Close()

	re := remoteErr(t, c.StopBuild(context.Background(), "app", 1))
	assert.Zero(t, re.Status)
	assert.Contains(t, re.Message, "request failed")
	assert.NotNil(t, re.Unwrap())
}

func TestCanceledContext(t *testing.T) {
	f := testutil.NewFakeJenkins(t)
	c := newTestClient(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListJobs(ctx)
	remoteErr(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.Calls())
}

func TestTLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobs":[]}`))
	}))
	t.Cleanup(srv.Close)

	strict, err := New(Config{BaseURL: srv.URL, Username: "u", Token: "t", VerifyTLS: true})
	require.NoError(t, err)
	_, err = strict.ListJobs(context.Background())
	re := remoteErr(t, err)
	assert.Zero(t, re.Status)

	lax, err := New(Config{BaseURL: srv.URL, Username: "u", Token: "t", VerifyTLS: false})
	require.NoError(t, err)
	jobs, err := lax.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
