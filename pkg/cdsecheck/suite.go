// Package cdsecheck probes the Copernicus Data Space Ecosystem: the OAuth2
// client-credentials token endpoint and the STAC catalogue behind it.
package cdsecheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/vertti/probe/pkg/check"
	"github.com/vertti/probe/pkg/config"
	"github.com/vertti/probe/pkg/httpcheck"
	"github.com/vertti/probe/pkg/logging"
	"github.com/vertti/probe/pkg/netcheck"
)

// Suite builds the CDSE check definitions for one run.
type Suite struct {
	cfg    config.Config
	client httpcheck.HTTPClient
	dialer netcheck.Dialer
	logger logging.Logger

	cached *oauth2.Token // only populated when cfg.ReuseClients
}

// Option customizes a Suite.
type Option func(*Suite)

// WithHTTPClient replaces the HTTP client used for token and STAC requests.
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

// Definitions returns the checks in run order. Every check needs the client
// credentials, the reachability probe included.
func (s *Suite) Definitions() []check.Definition {
	missing := s.cfg.Missing(config.KeyCDSEClientID, config.KeyCDSEClientSecret)
	return []check.Definition{
		netcheck.Definition("tcp: cdse", s.cfg.CDSE.STACURL, missing, s.dialer),
		{Name: "cdse: token", Missing: missing, Run: s.tokenCheck},
		{Name: "cdse: collections", Missing: missing, Run: s.collections},
		{Name: "cdse: items", Missing: missing, Run: s.items},
	}
}

// token returns an access token. Without reuse every call goes to the token
// endpoint; with reuse the first valid token is kept for the run.
func (s *Suite) token(ctx context.Context) (*oauth2.Token, error) {
	if s.cfg.ReuseClients && s.cached.Valid() {
		return s.cached, nil
	}

	cc := &clientcredentials.Config{
		ClientID:     s.cfg.CDSE.ClientID,
		ClientSecret: s.cfg.CDSE.ClientSecret,
		TokenURL:     s.cfg.CDSE.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpcheck.StdClient(s.client))

	tok, err := cc.Token(ctx)
	if err != nil {
		return nil, tokenError(err)
	}
	s.logger.WithField("expiry", tok.Expiry).Debug("fetched cdse access token")

	if s.cfg.ReuseClients {
		s.cached = tok
	}
	return tok, nil
}

// tokenError keeps the token endpoint's error payload. oauth2 flattens its
// parse errors into text, so anything that is neither a remote answer nor a
// transport failure is a 2xx reply the library could not use.
func tokenError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		remote := &check.RemoteError{
			Service: "cdse token endpoint",
			Body:    check.TruncateBody(string(retrieve.Body)),
		}
		if retrieve.Response != nil {
			remote.StatusCode = retrieve.Response.StatusCode
		}
		return fmt.Errorf("token request failed: %w", remote)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("token request failed: %w", err)
	}
	return check.Wrap(check.KindMalformed, fmt.Errorf("token request failed: %w", err))
}

func (s *Suite) tokenCheck(ctx context.Context) ([]string, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}

	details := []string{"token type: " + tok.Type()}
	if !tok.Expiry.IsZero() {
		details = append(details, fmt.Sprintf("expires in: %s", time.Until(tok.Expiry).Round(time.Second)))
	}
	if u, err := url.Parse(s.cfg.CDSE.TokenURL); err == nil {
		details = append(details, "issuer: "+u.Host)
	}
	return details, nil
}

func (s *Suite) get(ctx context.Context, service, rawURL string) (string, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return "", err
	}
	return httpcheck.GetJSON(ctx, s.client, service, rawURL, httpcheck.Bearer(tok.AccessToken))
}

func (s *Suite) collections(ctx context.Context) ([]string, error) {
	body, err := s.get(ctx, "stac collections", s.cfg.CDSE.STACURL+"/collections")
	if err != nil {
		return nil, err
	}

	list := gjson.Get(body, "collections")
	if !list.IsArray() {
		return nil, check.Malformedf("stac collections response has no collections array")
	}

	details := []string{fmt.Sprintf("collections: %d", len(list.Array()))}
	want := s.cfg.CDSE.Collection
	status := "not listed"
	for _, c := range list.Array() {
		if c.Get("id").String() == want {
			status = "listed"
			break
		}
	}
	return append(details, want+": "+status), nil
}

func (s *Suite) items(ctx context.Context) ([]string, error) {
	q := url.Values{"limit": {strconv.Itoa(s.cfg.CDSE.ItemLimit)}}
	rawURL := fmt.Sprintf("%s/collections/%s/items?%s", s.cfg.CDSE.STACURL, url.PathEscape(s.cfg.CDSE.Collection), q.Encode())

	body, err := s.get(ctx, "stac items", rawURL)
	if err != nil {
		return nil, err
	}

	features := gjson.Get(body, "features")
	if !features.IsArray() {
		return nil, check.Malformedf("stac items response has no features array")
	}

	details := []string{fmt.Sprintf("items returned: %d", len(features.Array()))}
	if matched := gjson.Get(body, "numberMatched"); matched.Exists() {
		details = append(details, fmt.Sprintf("items matched: %d", matched.Int()))
	}

	first := features.Get("0")
	if !first.Exists() {
		return details, nil
	}
	details = append(details, "first item: "+first.Get("id").String())
	if dt := first.Get("properties.datetime"); dt.Exists() {
		details = append(details, "datetime: "+dt.String())
	}
	if cc := first.Get(`properties.eo:cloud_cover`); cc.Exists() {
		details = append(details, fmt.Sprintf("cloud cover: %.1f%%", cc.Float()))
	}
	return details, nil
}
