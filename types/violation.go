package types

import "fmt"

// Severity classifies how a violation affects the outcome of a run
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Code identifies the invariant class a violation belongs to
type Code string

const (
	// CodeConfigurationMissing - a required definition unit is absent.
	// Halts validation of the affected unit only.
	CodeConfigurationMissing Code = "configuration_missing"

	// CodeParseFailure - a unit is syntactically invalid or references
	// something that does not exist. Halts the entire run.
	CodeParseFailure Code = "parse_failure"

	// CodeSecurityInvariant - a bucket fails the public-access-block,
	// explicit-deny, or encryption checks.
	CodeSecurityInvariant Code = "security_invariant"

	// CodeLifecycleMissing - a bucket that requires lifecycle rules
	// declares none.
	CodeLifecycleMissing Code = "lifecycle_missing"

	// CodeCountMismatch - a module or the composition holds the wrong
	// number of buckets.
	CodeCountMismatch Code = "count_mismatch"

	// CodeNamingCollision - two buckets render to the same name.
	CodeNamingCollision Code = "naming_collision"

	// CodeAdvisoryGap - an optional file or advisory policy check, never
	// affects pass/fail.
	CodeAdvisoryGap Code = "advisory_gap"
)

// Violation describes one failed or warned invariant check
type Violation struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Scope    string   `json:"scope"`
	Message  string   `json:"message"`
}

// Failing reports whether this violation makes the run fail
func (v Violation) Failing() bool {
	return v.Severity == SeverityFatal || v.Severity == SeverityError
}

// String formats a violation as a single report line
func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s (%s)", v.Severity, v.Scope, v.Message, v.Code)
}
