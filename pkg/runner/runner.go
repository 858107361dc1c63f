// Package runner executes check definitions one after another. Every check
// runs behind its own failure boundary: errors, panics and timeouts become a
// failed Result and the next check still runs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/sirupsen/logrus"

	"github.com/vertti/probe/pkg/check"
	"github.com/vertti/probe/pkg/logging"
)

// DefaultTimeout bounds a single check when Runner.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Runner runs checks sequentially in declaration order.
type Runner struct {
	Timeout time.Duration  // bounded wait per check (default: 30s)
	Logger  logging.Logger // optional
	// OnResult, when set, receives each result as soon as it is recorded.
	OnResult func(check.Result)
}

// Run executes defs in order and returns one Result per definition, in the
// same order. It never stops early.
func (r *Runner) Run(ctx context.Context, defs []check.Definition) []check.Result {
	logger := r.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	results := make([]check.Result, 0, len(defs))
	for _, def := range defs {
		res := r.runOne(ctx, logger, def)
		results = append(results, res)
		if r.OnResult != nil {
			r.OnResult(res)
		}
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, logger *logrus.Logger, def check.Definition) check.Result {
	result := check.Result{Name: def.Name}
	log := logger.WithField("check", def.Name)

	if len(def.Missing) > 0 {
		log.WithField("missing", def.Missing).Debug("check skipped")
		return result.Skip(def.Missing...)
	}
	if def.Run == nil {
		return result.FailErr(errors.New("check has no function"))
	}

	log.Debug("check started")
	start := time.Now()
	details, err := r.execute(ctx, def.Run)
	result.Duration = time.Since(start)

	if err != nil {
		result.FailErr(err)
	} else {
		result.Status = check.StatusOK
		result.Details = details
	}

	log.WithFields(logging.Fields{
		"status":      result.Status,
		"kind":        result.Kind,
		"duration_ms": result.Duration.Milliseconds(),
	}).Debug("check finished")
	return result
}

// execute calls fn under the per-check timeout. The timeout cancels the
// context handed to fn; fn is expected to honor it.
func (r *Runner) execute(ctx context.Context, fn check.Func) ([]string, error) {
	limit := r.Timeout
	if limit <= 0 {
		limit = DefaultTimeout
	}

	if err := ctx.Err(); err != nil {
		return nil, check.Wrap(check.KindNetwork, fmt.Errorf("run cancelled before check started: %w", err))
	}

	details, err := failsafe.With[[]string](timeout.New[[]string](limit)).
		WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[[]string]) (details []string, err error) {
			defer func() {
				if p := recover(); p != nil {
					details, err = nil, fmt.Errorf("check panicked: %v", p)
				}
			}()
			return fn(exec.Context())
		})

	if errors.Is(err, timeout.ErrExceeded) {
		return nil, check.Wrap(check.KindNetwork, fmt.Errorf("no response within %s", limit))
	}
	return details, err
}
