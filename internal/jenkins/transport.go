package jenkins

import (
	"crypto/tls"
	"net/http"
	"strings"
)

const userAgent = "jenkins-mcp"

// authTransport attaches Basic credentials to requests for the Jenkins host
// only. Redirects to any other host go out without them.
type authTransport struct {
	base     http.RoundTripper
	host     string
	username string
	token    string
}

func newTransport(cfg Config, host string) http.RoundTripper {
	base := cfg.Transport
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if !cfg.VerifyTLS {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via JENKINS_VERIFY_SSL=false
		}
		base = t
	}
	return &authTransport{base: base, host: host, username: cfg.Username, token: cfg.Token}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if strings.EqualFold(r.URL.Host, t.host) {
		r.SetBasicAuth(t.username, t.token)
	} else {
		r.Header.Del("Authorization")
	}
	r.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(r)
}
