package cdsecheck

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/probe/pkg/check"
	"github.com/vertti/probe/pkg/config"
	"github.com/vertti/probe/pkg/runner"
	"github.com/vertti/probe/pkg/testutil"
)

const (
	collectionsBody = `{"collections":[{"id":"sentinel-1-grd"},{"id":"sentinel-2-l2a"}]}`
	itemsBody       = `{"type":"FeatureCollection","numberMatched":1200,"features":[
		{"id":"S2B_MSIL2A_20240101","properties":{"datetime":"2024-01-01T10:00:00Z","eo:cloud_cover":12.5}}
	]}`
)

// fakeCDSE serves a token endpoint and a STAC catalogue.
type fakeCDSE struct {
	tokenStatus int
	tokenBody   string
	tokens      atomic.Int32
	lastAuth    atomic.Value
}

func newFakeCDSE(t *testing.T) (*fakeCDSE, *httptest.Server) {
	f := &fakeCDSE{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"tok-123","token_type":"Bearer","expires_in":600}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("/stac/collections", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(collectionsBody))
	})
	mux.HandleFunc("/stac/collections/sentinel-2-l2a/items", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(itemsBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

type okDialer struct{}

func (okDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	c1, c2 := net.Pipe()
	_ = c2.Close()
	return c1, nil
}

func loadConfig(t *testing.T, srvURL string, extra config.MapEnv) config.Config {
	t.Helper()
	env := config.MapEnv{
		config.KeyCDSEClientID:     "client",
		config.KeyCDSEClientSecret: "secret",
		config.KeyCDSETokenURL:     srvURL + "/token",
		config.KeyCDSESTACURL:      srvURL + "/stac",
	}
	for k, v := range extra {
		env[k] = v
	}
	cfg, err := config.Load(env)
	require.NoError(t, err)
	return cfg
}

func runSuite(t *testing.T, s *Suite) map[string]check.Result {
	t.Helper()
	results := (&runner.Runner{Timeout: 5 * time.Second}).Run(context.Background(), s.Definitions())
	byName := make(map[string]check.Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	return byName
}

func TestSuiteHealthyCatalogue(t *testing.T) {
	f, srv := newFakeCDSE(t)
	s := New(loadConfig(t, srv.URL, nil), nil, WithNetDialer(okDialer{}))

	results := runSuite(t, s)

	require.Len(t, results, 4)
	for name, r := range results {
		assert.Equal(t, check.StatusOK, r.Status, "%s: %v", name, r.Details)
	}

	tok := results["cdse: token"]
	assert.Contains(t, tok.Details, "token type: Bearer")
	assert.True(t, testutil.ContainsDetail(tok.Details, "expires in:"))

	coll := results["cdse: collections"]
	assert.Contains(t, coll.Details, "collections: 2")
	assert.Contains(t, coll.Details, "sentinel-2-l2a: listed")
	assert.Equal(t, "Bearer tok-123", f.lastAuth.Load())

	items := results["cdse: items"]
	assert.Contains(t, items.Details, "items returned: 1")
	assert.Contains(t, items.Details, "items matched: 1200")
	assert.Contains(t, items.Details, "first item: S2B_MSIL2A_20240101")
	assert.Contains(t, items.Details, "datetime: 2024-01-01T10:00:00Z")
	assert.Contains(t, items.Details, "cloud cover: 12.5%")
}

func TestSuiteFreshTokenPerCheck(t *testing.T) {
	f, srv := newFakeCDSE(t)
	s := New(loadConfig(t, srv.URL, nil), nil, WithNetDialer(okDialer{}))

	runSuite(t, s)

	assert.Equal(t, int32(3), f.tokens.Load())
}

func TestSuiteReusedToken(t *testing.T) {
	f, srv := newFakeCDSE(t)
	cfg := loadConfig(t, srv.URL, config.MapEnv{config.KeyReuseClients: "true"})
	s := New(cfg, nil, WithNetDialer(okDialer{}))

	results := runSuite(t, s)

	assert.Equal(t, int32(1), f.tokens.Load())
	assert.Equal(t, check.StatusOK, results["cdse: items"].Status)
}

func TestSuiteRejectedCredentials(t *testing.T) {
	f, srv := newFakeCDSE(t)
	f.tokenStatus = http.StatusUnauthorized
	f.tokenBody = `{"error":"invalid_client","error_description":"Invalid client credentials"}`
	s := New(loadConfig(t, srv.URL, nil), nil, WithNetDialer(okDialer{}))

	results := runSuite(t, s)

	assert.Equal(t, check.StatusOK, results["tcp: cdse"].Status)
	for _, name := range []string{"cdse: token", "cdse: collections", "cdse: items"} {
		r := results[name]
		assert.Equal(t, check.StatusFail, r.Status, name)
		assert.Equal(t, check.KindRemoteRejected, r.Kind, name)
		assert.True(t, testutil.ContainsDetail(r.Details, "status 401"), "%s: %v", name, r.Details)
		assert.True(t, testutil.ContainsDetail(r.Details, "invalid_client"), "%s: %v", name, r.Details)
	}
}

func TestSuiteTokenRateLimited(t *testing.T) {
	f, srv := newFakeCDSE(t)
	f.tokenStatus = http.StatusTooManyRequests
	f.tokenBody = `{"error":"too_many_requests"}`
	s := New(loadConfig(t, srv.URL, nil), nil, WithNetDialer(okDialer{}))

	results := runSuite(t, s)

	assert.Equal(t, check.KindRateLimited, results["cdse: token"].Kind)
}

func TestSuiteMissingCredentials(t *testing.T) {
	cfg, err := config.Load(config.MapEnv{config.KeyCDSEClientID: "client"})
	require.NoError(t, err)
	s := New(cfg, nil, WithHTTPClient(&testutil.MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			t.Fatalf("unexpected request to %s", req.URL)
			return nil, nil
		},
	}))

	results := runSuite(t, s)

	require.Len(t, results, 4)
	for name, r := range results {
		assert.Equal(t, check.StatusSkip, r.Status, name)
		assert.Contains(t, r.Details, "missing configuration: "+config.KeyCDSEClientSecret)
	}
}

func TestSuiteMalformedToken(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantDetail  string
	}{
		{"html page", "text/html", `<html>maintenance</html>`, "cannot parse json"},
		{"no access token", "application/json", `{"token_type":"Bearer"}`, "missing access_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(loadConfig(t, "https://cdse.example", nil), nil,
				WithNetDialer(okDialer{}),
				WithHTTPClient(&testutil.MockHTTPClient{
					DoFunc: func(req *http.Request) (*http.Response, error) {
						resp := testutil.MockResponse(http.StatusOK, tt.body)
						resp.Header.Set("Content-Type", tt.contentType)
						return resp, nil
					},
				}))

			results := runSuite(t, s)

			for _, name := range []string{"cdse: token", "cdse: collections", "cdse: items"} {
				r := results[name]
				assert.Equal(t, check.StatusFail, r.Status, name)
				assert.Equal(t, check.KindMalformed, r.Kind, name)
				assert.True(t, testutil.ContainsDetail(r.Details, tt.wantDetail), "%s: %v", name, r.Details)
			}
		})
	}
}

func TestSuiteCollectionIDMatchedLiterally(t *testing.T) {
	_, srv := newFakeCDSE(t)
	cfg := loadConfig(t, srv.URL, config.MapEnv{config.KeyCDSECollection: `x") || id!=("`})
	s := New(cfg, nil, WithNetDialer(okDialer{}))

	results := runSuite(t, s)

	coll := results["cdse: collections"]
	assert.Equal(t, check.StatusOK, coll.Status)
	assert.Contains(t, coll.Details, `x") || id!=(": not listed`)
}

func TestSuiteCollectionNotListed(t *testing.T) {
	_, srv := newFakeCDSE(t)
	cfg := loadConfig(t, srv.URL, config.MapEnv{config.KeyCDSECollection: "landsat-c2-l2"})
	s := New(cfg, nil, WithNetDialer(okDialer{}))

	results := runSuite(t, s)

	coll := results["cdse: collections"]
	assert.Equal(t, check.StatusOK, coll.Status)
	assert.Contains(t, coll.Details, "landsat-c2-l2: not listed")

	items := results["cdse: items"]
	assert.Equal(t, check.StatusFail, items.Status)
	assert.Equal(t, check.KindRemoteRejected, items.Kind)
}

func TestSuiteMalformedCatalogue(t *testing.T) {
	token := `{"access_token":"tok","token_type":"Bearer","expires_in":600}`
	s := New(loadConfig(t, "https://cdse.example", nil), nil,
		WithNetDialer(okDialer{}),
		WithHTTPClient(&testutil.MockHTTPClient{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				switch req.URL.Path {
				case "/token":
					resp := testutil.MockResponse(http.StatusOK, token)
					resp.Header.Set("Content-Type", "application/json")
					return resp, nil
				case "/stac/collections":
					return testutil.MockResponse(http.StatusOK, `{"links":[]}`), nil
				default:
					return testutil.MockResponse(http.StatusOK, `<html>maintenance</html>`), nil
				}
			},
		}))

	results := runSuite(t, s)

	assert.Equal(t, check.StatusOK, results["cdse: token"].Status)
	assert.Equal(t, check.KindMalformed, results["cdse: collections"].Kind)
	assert.Equal(t, check.KindMalformed, results["cdse: items"].Kind)
}

func TestSuiteTokenEndpointUnreachable(t *testing.T) {
	s := New(loadConfig(t, "https://cdse.example", nil), nil,
		WithNetDialer(okDialer{}),
		WithHTTPClient(&testutil.MockHTTPClient{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
			},
		}))

	results := runSuite(t, s)

	tok := results["cdse: token"]
	assert.Equal(t, check.StatusFail, tok.Status)
	assert.Equal(t, check.KindNetwork, tok.Kind)
}
