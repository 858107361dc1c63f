package check

import "time"

// Status represents the outcome of a check.
type Status string

const (
	StatusOK   Status = "OK"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Result holds the outcome of a single check.
type Result struct {
	Name     string        // e.g., "chain: network", "cdse: token"
	Status   Status        // OK, FAIL or SKIP
	Details  []string      // human-readable details
	Kind     Kind          // error class for FAIL and SKIP, empty on success
	Err      error         // underlying error for failures
	Duration time.Duration // time spent in the check function
}

// OK returns true if the check passed.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Skipped returns true if the check was not attempted.
func (r Result) Skipped() bool {
	return r.Status == StatusSkip
}
