package check

import (
	"fmt"
	"strings"
)

// Fail sets the result to failed status with a detail message.
// The error class is derived from err.
func (r *Result) Fail(detail string, err error) Result {
	r.Status = StatusFail
	r.Details = append(r.Details, detail)
	r.Err = err
	r.Kind = Classify(err)
	return *r
}

// Failf sets the result to failed status with a formatted detail message.
func (r *Result) Failf(format string, args ...interface{}) Result {
	return r.Fail(fmt.Sprintf(format, args...), fmt.Errorf(format, args...))
}

// FailErr records err as the failure and appends the hint for its class.
func (r *Result) FailErr(err error) Result {
	r.Fail(err.Error(), err)
	if hint := r.Kind.Hint(); hint != "" {
		r.AddDetailf("hint: %s", hint)
	}
	return *r
}

// Skip marks the result as not attempted because configuration is missing.
func (r *Result) Skip(keys ...string) Result {
	r.Status = StatusSkip
	r.Kind = KindConfigMissing
	detail := "missing configuration"
	if len(keys) > 0 {
		detail += ": " + strings.Join(keys, ", ")
	}
	r.Details = append(r.Details, detail)
	return *r
}

// AddDetail appends a detail line to the result.
func (r *Result) AddDetail(detail string) *Result {
	r.Details = append(r.Details, detail)
	return r
}

// AddDetailf appends a formatted detail line to the result.
func (r *Result) AddDetailf(format string, args ...interface{}) *Result {
	return r.AddDetail(fmt.Sprintf(format, args...))
}
