// Package earthdatacheck probes NASA's Common Metadata Repository with an
// Earthdata Login bearer token.
package earthdatacheck

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/vertti/probe/pkg/check"
	"github.com/vertti/probe/pkg/config"
	"github.com/vertti/probe/pkg/httpcheck"
	"github.com/vertti/probe/pkg/logging"
	"github.com/vertti/probe/pkg/netcheck"
)

// Suite builds the Earthdata check definitions for one run.
type Suite struct {
	cfg    config.Config
	client httpcheck.HTTPClient
	dialer netcheck.Dialer
	logger logging.Logger
}

// Option customizes a Suite.
type Option func(*Suite)

// WithHTTPClient replaces the HTTP client used for CMR searches.
func WithHTTPClient(c httpcheck.HTTPClient) Option {
	return func(s *Suite) { s.client = c }
}

// WithNetDialer replaces the dialer used by the TCP reachability check.
func WithNetDialer(d netcheck.Dialer) Option {
	return func(s *Suite) { s.dialer = d }
}

// New returns a Suite over cfg.
func New(cfg config.Config, logger logging.Logger, opts ...Option) *Suite {
	s := &Suite{
		cfg:    cfg,
		client: &httpcheck.RealHTTPClient{Timeout: cfg.Timeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

// Definitions returns the reachability check followed by one search per
// configured collection short name.
func (s *Suite) Definitions() []check.Definition {
	missing := s.cfg.Missing(config.KeyEarthdataToken)
	defs := []check.Definition{
		netcheck.Definition("tcp: earthdata", s.cfg.Earthdata.CMRURL, missing, s.dialer),
	}
	for _, name := range s.cfg.Earthdata.Collections {
		defs = append(defs, check.Definition{
			Name:    "earthdata: collection " + name,
			Missing: missing,
			Run:     s.collection(name),
		})
	}
	return defs
}

func (s *Suite) collection(shortName string) check.Func {
	return func(ctx context.Context) ([]string, error) {
		q := url.Values{"short_name": {shortName}}
		rawURL := s.cfg.Earthdata.CMRURL + "/search/collections.json?" + q.Encode()

		body, err := httpcheck.GetJSON(ctx, s.client, "cmr", rawURL, httpcheck.Bearer(s.cfg.Earthdata.Token))
		if err != nil {
			return nil, err
		}

		entries := gjson.Get(body, "feed.entry")
		if !entries.IsArray() {
			return nil, check.Malformedf("cmr response has no feed.entry array")
		}
		hits := len(entries.Array())
		if hits == 0 {
			return nil, check.Wrap(check.KindRemoteRejected,
				fmt.Errorf("no collections found for short name %s", shortName))
		}
		s.logger.WithField("short_name", shortName).WithField("hits", hits).Debug("cmr search done")

		first := entries.Get("0")
		details := []string{fmt.Sprintf("hits: %d", hits)}
		for _, f := range []struct{ label, path string }{
			{"concept id", "id"},
			{"title", "title"},
			{"time start", "time_start"},
			{"data center", "data_center"},
		} {
			if v := first.Get(f.path); v.Exists() {
				details = append(details, f.label+": "+v.String())
			}
		}
		return details, nil
	}
}
