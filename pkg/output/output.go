// Package output presents check results. It knows nothing about how checks
// run; the runner hands it finished Results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jwalton/go-supportscolor"

	"github.com/vertti/probe/pkg/check"
)

var (
	green  = "\033[32m"
	red    = "\033[31m"
	yellow = "\033[33m"
	dim    = "\033[2m"
	reset  = "\033[0m"
)

func init() {
	if !supportscolor.Stdout().SupportsColor {
		green, red, yellow, dim, reset = "", "", "", "", ""
	}
}

// Reporter receives results as they are produced and renders the report.
type Reporter interface {
	// Result is called once per check, in run order.
	Result(r check.Result)
	// Finish is called after the last check with every result of the run.
	Finish(results []check.Result) error
}

// New returns the reporter for format ("text" or "json") writing to w.
func New(format string, w io.Writer) (Reporter, error) {
	switch format {
	case "", "text":
		return &Text{W: w}, nil
	case "json":
		return &JSON{W: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}

// Text streams colored, human-readable lines.
type Text struct {
	W io.Writer
}

func (t *Text) Result(r check.Result) {
	PrintResult(t.W, r)
}

func (t *Text) Finish(results []check.Result) error {
	s := Summarize(results)
	_, err := fmt.Fprintf(t.W, "\n%d checks: %s%d ok%s, %s%d failed%s, %s%d skipped%s\n",
		s.Total, green, s.OK, reset, red, s.Failed, reset, yellow, s.Skipped, reset)
	return err
}

// PrintResult outputs a check result with colored status.
func PrintResult(w io.Writer, r check.Result) {
	var tag string
	switch r.Status {
	case check.StatusOK:
		tag = fmt.Sprintf("%s[OK]%s", green, reset)
	case check.StatusSkip:
		tag = fmt.Sprintf("%s[SKIP]%s", yellow, reset)
	default:
		tag = fmt.Sprintf("%s[FAIL]%s", red, reset)
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", tag, r.Name)

	// Details line up under the name: "[OK] " is 5 wide, "[FAIL] " and "[SKIP] " are 7.
	indent := strings.Repeat(" ", len(r.Status)+3)
	for _, d := range r.Details {
		_, _ = fmt.Fprintf(w, "%s%s\n", indent, formatLabel(d))
	}
}

// formatLabel dims the "label:" prefix of a detail line.
func formatLabel(s string) string {
	idx := strings.Index(s, ":")
	if idx == -1 {
		return s
	}
	return dim + s[:idx+1] + reset + s[idx+1:]
}

// Summary counts results by status.
type Summary struct {
	Total   int `json:"total"`
	OK      int `json:"ok"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func Summarize(results []check.Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case check.StatusOK:
			s.OK++
		case check.StatusSkip:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// JSON buffers results and writes a single document on Finish.
type JSON struct {
	W     io.Writer
	RunID string // optional, copied into the report
}

type jsonResult struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Kind       string   `json:"kind,omitempty"`
	Details    []string `json:"details"`
	DurationMS int64    `json:"duration_ms"`
}

type jsonReport struct {
	RunID   string       `json:"run_id,omitempty"`
	Checks  []jsonResult `json:"checks"`
	Summary Summary      `json:"summary"`
}

func (j *JSON) Result(check.Result) {}

func (j *JSON) Finish(results []check.Result) error {
	report := jsonReport{
		RunID:   j.RunID,
		Checks:  make([]jsonResult, 0, len(results)),
		Summary: Summarize(results),
	}
	for _, r := range results {
		details := r.Details
		if details == nil {
			details = []string{}
		}
		report.Checks = append(report.Checks, jsonResult{
			Name:       r.Name,
			Status:     jsonStatus(r.Status),
			Kind:       string(r.Kind),
			Details:    details,
			DurationMS: r.Duration.Milliseconds(),
		})
	}

	enc := json.NewEncoder(j.W)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func jsonStatus(s check.Status) string {
	switch s {
	case check.StatusOK:
		return "ok"
	case check.StatusSkip:
		return "skipped"
	default:
		return "failed"
	}
}
