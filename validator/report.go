package validator

import (
	"fmt"

	"github.com/bucketlint/bucketlint/types"
)

// Counts aggregates check outcomes for one run. Every individual check
// lands in exactly one counter.
type Counts struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Warned int `json:"warned"`
}

// Report is the immutable result of one validation run. It replaces the
// shared-counter pattern: each run produces a fresh report, so repeated
// runs are fully independent.
type Report struct {
	Violations []types.Violation `json:"violations"`
	Counts     Counts            `json:"counts"`

	// Halted is true when a parse failure stopped the run before the
	// semantic phase could execute.
	Halted bool `json:"halted"`
}

// pass records n checks that ran and found nothing
func (r *Report) pass(n int) {
	r.Counts.Passed += n
}

// add records one violation, counting it as failed or warned
func (r *Report) add(v types.Violation) {
	r.Violations = append(r.Violations, v)
	if v.Failing() {
		r.Counts.Failed++
	} else {
		r.Counts.Warned++
	}
}

// addAll records a batch of violations
func (r *Report) addAll(violations []types.Violation) {
	for _, v := range violations {
		r.add(v)
	}
}

// OK reports whether the run is clean: no FATAL or ERROR violations.
// Warnings never affect pass/fail.
func (r *Report) OK() bool {
	for _, v := range r.Violations {
		if v.Failing() {
			return false
		}
	}
	return true
}

// ExitCode maps the report to a process exit status
func (r *Report) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Lines renders the human-readable summary: one line per violation plus
// a trailing counts line.
func (r *Report) Lines() []string {
	lines := make([]string, 0, len(r.Violations)+1)
	for _, v := range r.Violations {
		lines = append(lines, v.String())
	}

	status := "PASS"
	if !r.OK() {
		status = "FAIL"
	}
	lines = append(lines, fmt.Sprintf("%s: %d passed, %d failed, %d warned",
		status, r.Counts.Passed, r.Counts.Failed, r.Counts.Warned))
	return lines
}
