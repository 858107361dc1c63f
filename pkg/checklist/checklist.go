// Package checklist assembles the suites into one ordered checklist, runs it
// and hands the results to a reporter.
package checklist

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vertti/probe/pkg/cdsecheck"
	"github.com/vertti/probe/pkg/chaincheck"
	"github.com/vertti/probe/pkg/check"
	"github.com/vertti/probe/pkg/config"
	"github.com/vertti/probe/pkg/earthdatacheck"
	"github.com/vertti/probe/pkg/httpcheck"
	"github.com/vertti/probe/pkg/logging"
	"github.com/vertti/probe/pkg/netcheck"
	"github.com/vertti/probe/pkg/output"
	"github.com/vertti/probe/pkg/runner"
)

// Suite names, in the order they run.
const (
	SuiteChain     = "chain"
	SuiteCDSE      = "cdse"
	SuiteEarthdata = "earthdata"
)

// AllSuites is the full checklist.
var AllSuites = []string{SuiteChain, SuiteCDSE, SuiteEarthdata}

// Options controls a single run.
type Options struct {
	Suites  []string // defaults to AllSuites
	Format  string   // "text" (default) or "json"
	Verbose bool     // force debug logging

	Env    config.EnvGetter // defaults to the process environment
	Stdout io.Writer        // report
	Stderr io.Writer        // logs

	// Optional transports; the real ones are used when nil.
	HTTPClient httpcheck.HTTPClient
	Dialer     netcheck.Dialer
	Dial       chaincheck.DialFunc
}

// Run loads the configuration, runs the selected suites and reports the
// results. The returned error is non-nil only when the run could not start
// or the report could not be written; failed and skipped checks are part
// of the results.
func Run(ctx context.Context, opts Options) ([]check.Result, error) {
	if opts.Env == nil {
		opts.Env = &config.RealEnvGetter{}
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	suites := opts.Suites
	if len(suites) == 0 {
		suites = AllSuites
	}
	for _, name := range suites {
		if !slices.Contains(AllSuites, name) {
			return nil, fmt.Errorf("unknown suite %q", name)
		}
	}

	reporter, err := output.New(opts.Format, opts.Stdout)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.Env)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()
	if j, ok := reporter.(*output.JSON); ok {
		j.RunID = runID
	}
	logger := NewLogger(opts.Stderr, cfg.LogLevel, opts.Verbose)

	var defs []check.Definition
	for _, name := range AllSuites {
		if !slices.Contains(suites, name) {
			continue
		}
		switch name {
		case SuiteChain:
			chain := chaincheck.New(cfg, logger, chainOptions(opts)...)
			if err := chain.Connect(ctx); err != nil {
				return nil, err
			}
			defer chain.Close()
			defs = append(defs, chain.Definitions()...)
		case SuiteCDSE:
			defs = append(defs, cdsecheck.New(cfg, logger, cdseOptions(opts)...).Definitions()...)
		case SuiteEarthdata:
			defs = append(defs, earthdatacheck.New(cfg, logger, earthdataOptions(opts)...).Definitions()...)
		}
	}

	logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"suites":  suites,
		"checks":  len(defs),
		"timeout": cfg.Timeout,
		"reuse":   cfg.ReuseClients,
	}).Info("starting checklist")

	r := &runner.Runner{Timeout: cfg.Timeout, Logger: logger, OnResult: reporter.Result}
	results := r.Run(ctx, defs)

	summary := output.Summarize(results)
	logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"ok":      summary.OK,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
	}).Info("checklist finished")

	if err := reporter.Finish(results); err != nil {
		return results, fmt.Errorf("failed to write report: %w", err)
	}
	return results, nil
}

// NewLogger builds the run's logger: LOG_LEVEL decides, verbose forces debug.
func NewLogger(w io.Writer, level string, verbose bool) logging.Logger {
	lvl := logging.ParseLevel(level)
	if verbose {
		lvl = logrus.DebugLevel
	}
	return logging.New(w, lvl)
}

func chainOptions(opts Options) []chaincheck.Option {
	var o []chaincheck.Option
	if opts.Dial != nil {
		o = append(o, chaincheck.WithDial(opts.Dial))
	}
	if opts.Dialer != nil {
		o = append(o, chaincheck.WithNetDialer(opts.Dialer))
	}
	return o
}

func cdseOptions(opts Options) []cdsecheck.Option {
	var o []cdsecheck.Option
	if opts.HTTPClient != nil {
		o = append(o, cdsecheck.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Dialer != nil {
		o = append(o, cdsecheck.WithNetDialer(opts.Dialer))
	}
	return o
}

func earthdataOptions(opts Options) []earthdatacheck.Option {
	var o []earthdatacheck.Option
	if opts.HTTPClient != nil {
		o = append(o, earthdatacheck.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Dialer != nil {
		o = append(o, earthdatacheck.WithNetDialer(opts.Dialer))
	}
	return o
}
