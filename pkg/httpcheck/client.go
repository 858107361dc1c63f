// Package httpcheck holds the HTTP plumbing shared by the REST suites: an
// injectable client and a JSON GET that maps every way a request can go
// wrong onto the check error taxonomy.
package httpcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vertti/probe/pkg/check"
)

// HTTPClient abstracts HTTP requests for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RealHTTPClient uses the real net/http package.
type RealHTTPClient struct {
	Timeout time.Duration
}

// Do executes an HTTP request.
func (c *RealHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client().Do(req)
}

// Client returns a *http.Client configured like c. Libraries that take an
// *http.Client (oauth2) use it so that every request shares the settings.
func (c *RealHTTPClient) Client() *http.Client {
	return &http.Client{
		Timeout:   c.Timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
}

// maxBody bounds how much of a response is read.
const maxBody = 8 << 20

// Bearer returns the Authorization header for token.
func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// GetJSON fetches url and returns the body once it is known to be a 2xx
// answer holding valid JSON. service names the endpoint in error messages.
func GetJSON(ctx context.Context, client HTTPClient, service, url string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", check.Wrap(check.KindNetwork, fmt.Errorf("%s request failed: %w", service, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("failed to read %s response: %w", service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &check.RemoteError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Body:       check.TruncateBody(string(body)),
		}
	}

	if !gjson.ValidBytes(body) {
		return "", check.Malformedf("%s returned invalid JSON: %s", service, check.TruncateBody(string(body)))
	}
	return string(body), nil
}

// StdClient returns an *http.Client that sends every request through c.
func StdClient(c HTTPClient) *http.Client {
	if rc, ok := c.(*RealHTTPClient); ok {
		return rc.Client()
	}
	return &http.Client{Transport: roundTripper{c}}
}

type roundTripper struct{ c HTTPClient }

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.c.Do(req)
}
