// Package testutil provides an in-process fake Jenkins for tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Call is one request received by the fake.
type Call struct {
	Method      string
	Path        string
	Query       url.Values
	Body        string
	ContentType string
	User        string
	Password    string
	UserAgent   string
}

// FakeJenkins records every request and answers from registered routes.
// Unregistered routes get the Jenkins-style HTML 404 page.
type FakeJenkins struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []Call
	routes map[string]http.HandlerFunc
}

// NewFakeJenkins starts a fake that is closed when the test ends.
func NewFakeJenkins(t testing.TB) *FakeJenkins {
	t.Helper()
	f := &FakeJenkins{routes: map[string]http.HandlerFunc{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Handle registers h for method and decoded path, e.g. ("GET", "/job/a b/api/json").
func (f *FakeJenkins) Handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

// Calls returns a copy of the recorded requests in arrival order.
func (f *FakeJenkins) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeJenkins) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	user, pass, _ := r.BasicAuth()

	f.mu.Lock()
	f.calls = append(f.calls, Call{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		Body:        string(body),
		ContentType: r.Header.Get("Content-Type"),
		User:        user,
		Password:    pass,
		UserAgent:   r.Header.Get("User-Agent"),
	})
	h := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if h == nil {
		NotFound()(w, r)
		return
	}
	h(w, r)
}

// JSON answers with v encoded as JSON.
func JSON(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Text answers with a plain-text body.
func Text(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain;charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// Redirect answers with status and a Location header.
func Redirect(status int, location string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(status)
	}
}

// Status answers with an empty body.
func Status(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}
}

// NotFound mimics the HTML error page Jenkins serves for unknown jobs.
func NotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html;charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `<!DOCTYPE html><html><head><title>Jenkins</title><script>var x=1;</script></head>`+
			`<body><div id="page"><h1>Not Found</h1><p>This page may not exist, or you may not have permission to see it.</p></div></body></html>`)
	}
}
