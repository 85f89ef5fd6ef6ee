package validator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketlint/bucketlint/config"
	"github.com/bucketlint/bucketlint/internal/spectest"
	"github.com/bucketlint/bucketlint/types"
	"github.com/bucketlint/bucketlint/validator"
)

func canonicalDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	spectest.WriteTree(t, dir)
	return dir
}

func failing(report *validator.Report) []types.Violation {
	var out []types.Violation
	for _, v := range report.Violations {
		if v.Failing() {
			out = append(out, v)
		}
	}
	return out
}

func TestRun_CanonicalFixtureIsClean(t *testing.T) {
	report := validator.New(canonicalDir(t)).Run(context.Background(), spectest.Params())

	assert.True(t, report.OK())
	assert.Equal(t, 0, report.ExitCode())
	assert.Empty(t, failing(report))
	assert.False(t, report.Halted)

	// 12 structural + 16 syntax + 40 semantic checks, all passing; the
	// absent optional params.local.yaml is the single warning.
	assert.Equal(t, 68, report.Counts.Passed)
	assert.Equal(t, 0, report.Counts.Failed)
	assert.Equal(t, 1, report.Counts.Warned)
}

func TestRun_ReportsAreIndependent(t *testing.T) {
	v := validator.New(canonicalDir(t))

	first := v.Run(context.Background(), spectest.Params())
	second := v.Run(context.Background(), spectest.Params())
	assert.Equal(t, first, second)
}

func TestRun_EncryptionViolation(t *testing.T) {
	dir := canonicalDir(t)

	// One analytics bucket loses its encryption compliance
	main := spectest.CanonicalModule(types.ModuleAnalytics)
	bucket := main.Buckets["events-raw"]
	bucket.Encryption = types.EncryptionNone
	main.Buckets["events-raw"] = bucket
	moduleDir := config.ModuleDir(dir, types.ModuleAnalytics)
	spectest.WriteUnit(t, filepath.Join(moduleDir, config.UnitMain), main)

	report := validator.New(dir).Run(context.Background(), spectest.Params())

	assert.False(t, report.OK())
	assert.Equal(t, 1, report.ExitCode())

	errors := failing(report)
	require.Len(t, errors, 1)
	assert.Equal(t, types.SeverityError, errors[0].Severity)
	assert.Equal(t, types.CodeSecurityInvariant, errors[0].Code)
	assert.Equal(t, "analytics/events-raw", errors[0].Scope)
	assert.Equal(t, 67, report.Counts.Passed)
	assert.Equal(t, 1, report.Counts.Failed)
}

func TestRun_MissingModuleUnit(t *testing.T) {
	dir := canonicalDir(t)
	moduleDir := config.ModuleDir(dir, types.ModuleApplication)
	require.NoError(t, os.Remove(filepath.Join(moduleDir, config.UnitVariables)))

	report := validator.New(dir).Run(context.Background(), spectest.Params())

	assert.False(t, report.OK())
	assert.False(t, report.Halted, "a missing unit must not halt the whole run")

	errors := failing(report)
	require.Len(t, errors, 1)
	assert.Equal(t, types.SeverityFatal, errors[0].Severity)
	assert.Equal(t, types.CodeConfigurationMissing, errors[0].Code)
	assert.Equal(t, "modules/application", errors[0].Scope)
	assert.Contains(t, errors[0].Message, config.UnitVariables)

	// Storage and analytics still validate independently: 11 structural
	// + 12 syntax + 27 semantic checks pass, and no count mismatch is
	// reported for the partial composition.
	assert.Equal(t, 50, report.Counts.Passed)
	for _, v := range report.Violations {
		assert.NotEqual(t, types.CodeCountMismatch, v.Code)
	}
}

func TestRun_FifthStorageBucket(t *testing.T) {
	dir := canonicalDir(t)

	main := spectest.CanonicalModule(types.ModuleStorage)
	extra := main.Buckets["data-lake"]
	extra.Name = "scratch"
	main.Buckets["scratch"] = extra
	moduleDir := config.ModuleDir(dir, types.ModuleStorage)
	spectest.WriteUnit(t, filepath.Join(moduleDir, config.UnitMain), main)

	report := validator.New(dir).Run(context.Background(), spectest.Params())

	assert.False(t, report.OK())
	errors := failing(report)
	require.Len(t, errors, 2)

	// Module-level mismatch cites the expected and actual counts; the
	// composition total mismatch follows.
	assert.Equal(t, types.CodeCountMismatch, errors[0].Code)
	assert.Equal(t, "storage", errors[0].Scope)
	assert.Contains(t, errors[0].Message, "expected 4")
	assert.Contains(t, errors[0].Message, "actual 5")
	assert.Equal(t, types.CodeCountMismatch, errors[1].Code)
	assert.Equal(t, "composition", errors[1].Scope)
}

func TestRun_ThreeWayCollisionCountsOneCheck(t *testing.T) {
	dir := canonicalDir(t)

	// The same key in all three modules renders to one name, so the
	// single uniqueness check emits two collision violations. It must
	// still subtract exactly one from the pass count.
	shared := types.BucketDescriptor{
		Versioning: true,
		Encryption: types.EncryptionAES256,
		PublicAccessBlock: types.PublicAccessBlock{
			BlockPublicACLs:       true,
			BlockPublicPolicy:     true,
			IgnorePublicACLs:      true,
			RestrictPublicBuckets: true,
		},
		ExplicitDenyPolicy: true,
	}
	for _, name := range types.ModuleNames {
		main := spectest.CanonicalModule(name)
		main.Buckets["shared"] = shared
		spectest.WriteUnit(t, filepath.Join(config.ModuleDir(dir, name), config.UnitMain), main)
	}

	report := validator.New(dir).Run(context.Background(), spectest.Params())

	assert.False(t, report.OK())

	var collisions int
	for _, v := range report.Violations {
		if v.Code == types.CodeNamingCollision {
			collisions++
		}
	}
	assert.Equal(t, 2, collisions)

	// Six violations across five failed checks: three module counts, the
	// composition total, and the one uniqueness check. The extra buckets
	// add nine passing descriptor checks to the canonical 68.
	assert.Equal(t, 6, report.Counts.Failed)
	assert.Equal(t, 72, report.Counts.Passed)
	assert.Equal(t, 1, report.Counts.Warned)
}

func TestRun_ParseFailureHaltsRun(t *testing.T) {
	dir := canonicalDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.UnitMain), []byte("version: [unclosed\n"), 0o644))

	report := validator.New(dir).Run(context.Background(), spectest.Params())

	assert.True(t, report.Halted)
	assert.False(t, report.OK())

	errors := failing(report)
	require.Len(t, errors, 1)
	assert.Equal(t, types.SeverityFatal, errors[0].Severity)
	assert.Equal(t, types.CodeParseFailure, errors[0].Code)
}

func TestRun_ModuleParseFailureHaltsRun(t *testing.T) {
	dir := canonicalDir(t)
	moduleDir := config.ModuleDir(dir, types.ModuleStorage)
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, config.UnitMain), []byte("buckets: {bad\n"), 0o644))

	report := validator.New(dir).Run(context.Background(), spectest.Params())

	assert.True(t, report.Halted)
	errors := failing(report)
	require.Len(t, errors, 1)
	assert.Equal(t, types.CodeParseFailure, errors[0].Code)
	assert.Contains(t, errors[0].Scope, "modules/storage")
}

func TestRun_DanglingRootReferenceIsFatal(t *testing.T) {
	dir := canonicalDir(t)
	spectest.WriteUnit(t, filepath.Join(dir, config.UnitOutputs), &config.Outputs{
		Outputs: map[string]config.Output{
			"ghost": {Module: "networking", Attribute: "names"},
		},
	})

	report := validator.New(dir).Run(context.Background(), spectest.Params())

	assert.True(t, report.Halted)
	errors := failing(report)
	require.Len(t, errors, 1)
	assert.Equal(t, types.CodeParseFailure, errors[0].Code)
}

func TestRun_LocalParamsPresenceClearsWarning(t *testing.T) {
	dir := canonicalDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.LocalParamsFile), []byte("environment: staging\n"), 0o644))

	report := validator.New(dir).Run(context.Background(), spectest.Params())

	assert.True(t, report.OK())
	assert.Equal(t, 0, report.Counts.Warned)
	assert.Equal(t, 69, report.Counts.Passed)
}

func TestRun_InvalidParams(t *testing.T) {
	report := validator.New(canonicalDir(t)).Run(context.Background(), types.Params{})

	assert.False(t, report.OK())
	errors := failing(report)
	require.Len(t, errors, 1)
	assert.Equal(t, types.SeverityFatal, errors[0].Severity)
	assert.Equal(t, "params", errors[0].Scope)
}

func TestRun_AdvisoryPoliciesWarnOnly(t *testing.T) {
	dir := canonicalDir(t)
	policyDir := t.TempDir()
	policyCode := `package bucketlint

warnings contains msg if {
	some bucket in input.buckets
	count(bucket.descriptor.lifecycle_rules) == 0
	msg := {
		"scope": sprintf("%s/%s", [bucket.module, bucket.key]),
		"message": "bucket declares no lifecycle rules",
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(policyDir, "lifecycle.rego"), []byte(policyCode), 0o644))

	v := validator.New(dir, validator.WithPolicyDir(policyDir))
	report := v.Run(context.Background(), spectest.Params())

	// Advisory findings are warnings and never flip the outcome
	assert.True(t, report.OK())
	assert.Greater(t, report.Counts.Warned, 1)
	assert.Empty(t, failing(report))

	var advisory int
	for _, violation := range report.Violations {
		if violation.Code == types.CodeAdvisoryGap && violation.Severity == types.SeverityWarning {
			advisory++
		}
	}
	assert.Greater(t, advisory, 0)
}

func TestReport_Lines(t *testing.T) {
	report := validator.New(canonicalDir(t)).Run(context.Background(), spectest.Params())

	lines := report.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "PASS")
	assert.Contains(t, lines[len(lines)-1], "68 passed")
}
