// Package netcheck confirms that a service host accepts TCP connections.
// Suites run it first so that later failures can be read against it.
package netcheck

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/vertti/probe/pkg/check"
)

// Dialer abstracts network dialing for testability.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// RealDialer uses the real net package.
type RealDialer struct {
	Timeout time.Duration // default 5s
}

// DialContext dials the network address, bounded by Timeout and ctx.
func (d *RealDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	nd := &net.Dialer{Timeout: timeout}
	return nd.DialContext(ctx, network, address)
}

// Check verifies TCP connectivity to the host of a service URL.
type Check struct {
	URL    string // service URL; host and port are derived from it
	Dialer Dialer // injected for testing
}

// Run executes the TCP connectivity check.
func (c *Check) Run(ctx context.Context) ([]string, error) {
	address, err := HostPort(c.URL)
	if err != nil {
		return nil, err
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = &RealDialer{}
	}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, check.Wrap(check.KindNetwork, fmt.Errorf("connection to %s failed: %w", address, err))
	}
	defer func() { _ = conn.Close() }()

	return []string{
		fmt.Sprintf("connected to %s", address),
		fmt.Sprintf("connect time: %s", time.Since(start).Round(time.Millisecond)),
	}, nil
}

// HostPort returns host:port for rawURL, filling in the default port of
// the scheme when the URL has none.
func HostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	switch u.Scheme {
	case "https", "wss":
		return net.JoinHostPort(u.Hostname(), "443"), nil
	case "http", "ws":
		return net.JoinHostPort(u.Hostname(), "80"), nil
	default:
		return "", fmt.Errorf("no default port for scheme %q in %s", u.Scheme, rawURL)
	}
}

// Definition wraps a reachability check for rawURL as a runner definition.
func Definition(name, rawURL string, missing []string, dialer Dialer) check.Definition {
	c := &Check{URL: rawURL, Dialer: dialer}
	return check.Definition{Name: name, Missing: missing, Run: c.Run}
}
