package earthdatacheck

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/probe/pkg/check"
	"github.com/vertti/probe/pkg/config"
	"github.com/vertti/probe/pkg/runner"
	"github.com/vertti/probe/pkg/testutil"
)

const hlsEntry = `{"feed":{"entry":[{
	"id":"C2021957657-LPCLOUD",
	"title":"HLS Landsat Operational Land Imager Surface Reflectance V2.0",
	"time_start":"2013-04-11T00:00:00.000Z",
	"data_center":"LPCLOUD"
}]}}`

type okDialer struct{}

func (okDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	c1, c2 := net.Pipe()
	_ = c2.Close()
	return c1, nil
}

func newCMR(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/collections.json" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer edl-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":["Token is not valid"]}`))
			return
		}
		body, ok := responses[r.URL.Query().Get("short_name")]
		if !ok {
			body = `{"feed":{"entry":[]}}`
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func loadConfig(t *testing.T, env config.MapEnv) config.Config {
	t.Helper()
	cfg, err := config.Load(env)
	require.NoError(t, err)
	return cfg
}

func runSuite(t *testing.T, s *Suite) []check.Result {
	t.Helper()
	return (&runner.Runner{Timeout: 5 * time.Second}).Run(context.Background(), s.Definitions())
}

func TestSuiteDefaultCollections(t *testing.T) {
	srv := newCMR(t, map[string]string{"HLSL30": hlsEntry, "HLSS30": hlsEntry})
	cfg := loadConfig(t, config.MapEnv{
		config.KeyEarthdataToken:  "edl-token",
		config.KeyEarthdataCMRURL: srv.URL,
	})

	results := runSuite(t, New(cfg, nil, WithNetDialer(okDialer{})))

	require.Len(t, results, 3)
	assert.Equal(t, "tcp: earthdata", results[0].Name)
	assert.Equal(t, "earthdata: collection HLSL30", results[1].Name)
	assert.Equal(t, "earthdata: collection HLSS30", results[2].Name)
	for _, r := range results {
		assert.Equal(t, check.StatusOK, r.Status, "%s: %v", r.Name, r.Details)
	}
	assert.Equal(t, []string{
		"hits: 1",
		"concept id: C2021957657-LPCLOUD",
		"title: HLS Landsat Operational Land Imager Surface Reflectance V2.0",
		"time start: 2013-04-11T00:00:00.000Z",
		"data center: LPCLOUD",
	}, results[1].Details)
}

func TestSuiteUnknownCollectionFails(t *testing.T) {
	srv := newCMR(t, map[string]string{"HLSL30": hlsEntry})
	cfg := loadConfig(t, config.MapEnv{
		config.KeyEarthdataToken:       "edl-token",
		config.KeyEarthdataCMRURL:      srv.URL,
		config.KeyEarthdataCollections: "HLSL30,NOPE",
	})

	results := runSuite(t, New(cfg, nil, WithNetDialer(okDialer{})))

	assert.Equal(t, check.StatusOK, results[1].Status)
	assert.Equal(t, check.StatusFail, results[2].Status)
	assert.Equal(t, check.KindRemoteRejected, results[2].Kind)
	assert.True(t, testutil.ContainsDetail(results[2].Details, "no collections found for short name NOPE"))
}

func TestSuiteRejectedToken(t *testing.T) {
	srv := newCMR(t, map[string]string{"HLSL30": hlsEntry})
	cfg := loadConfig(t, config.MapEnv{
		config.KeyEarthdataToken:       "expired",
		config.KeyEarthdataCMRURL:      srv.URL,
		config.KeyEarthdataCollections: "HLSL30",
	})

	results := runSuite(t, New(cfg, nil, WithNetDialer(okDialer{})))

	r := results[1]
	assert.Equal(t, check.StatusFail, r.Status)
	assert.Equal(t, check.KindRemoteRejected, r.Kind)
	assert.True(t, testutil.ContainsDetail(r.Details, "cmr returned status 401"), "%v", r.Details)
	assert.True(t, testutil.ContainsDetail(r.Details, "Token is not valid"))
}

func TestSuiteMissingToken(t *testing.T) {
	cfg := loadConfig(t, config.MapEnv{})
	s := New(cfg, nil, WithHTTPClient(&testutil.MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			t.Errorf("unexpected request to %s", req.URL)
			return testutil.MockResponse(http.StatusOK, "{}"), nil
		},
	}))

	results := runSuite(t, s)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, check.StatusSkip, r.Status, r.Name)
		assert.Equal(t, []string{"missing configuration: " + config.KeyEarthdataToken}, r.Details)
	}
}

func TestSuiteMalformedFeed(t *testing.T) {
	cfg := loadConfig(t, config.MapEnv{
		config.KeyEarthdataToken:       "edl-token",
		config.KeyEarthdataCollections: "HLSL30",
	})
	s := New(cfg, nil,
		WithNetDialer(okDialer{}),
		WithHTTPClient(&testutil.MockHTTPClient{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				return testutil.MockResponse(http.StatusOK, `{"hits":0}`), nil
			},
		}))

	results := runSuite(t, s)

	assert.Equal(t, check.KindMalformed, results[1].Kind)
}

func TestSuiteRateLimited(t *testing.T) {
	cfg := loadConfig(t, config.MapEnv{
		config.KeyEarthdataToken:       "edl-token",
		config.KeyEarthdataCollections: "HLSL30",
	})
	s := New(cfg, nil,
		WithNetDialer(okDialer{}),
		WithHTTPClient(&testutil.MockHTTPClient{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				return testutil.MockResponse(http.StatusTooManyRequests, `{"errors":["slow down"]}`), nil
			},
		}))

	results := runSuite(t, s)

	assert.Equal(t, check.KindRateLimited, results[1].Kind)
	assert.Contains(t, results[1].Details, "hint: rate limit exceeded")
}
