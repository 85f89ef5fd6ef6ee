// Package validator checks a bucket provisioning spec tree against its
// structural and security invariants without provisioning anything.
//
// A run has three strictly sequential phases: structural (required
// units exist), syntax (units parse and cross-references resolve), and
// semantic (the descriptor/module/composition invariant chain). A
// missing unit short-circuits later phases for that unit only; a parse
// failure halts the entire run.
package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bucketlint/bucketlint/config"
	"github.com/bucketlint/bucketlint/policy"
	"github.com/bucketlint/bucketlint/render"
	"github.com/bucketlint/bucketlint/telemetry"
	"github.com/bucketlint/bucketlint/types"
)

// Validator inspects one spec tree. It only reads; the tree is treated
// as an immutable snapshot for the duration of a run.
type Validator struct {
	dir       string
	policyDir string
	logger    *telemetry.Logger
	tracer    trace.Tracer
}

// Option configures a Validator
type Option func(*Validator)

// WithPolicyDir enables advisory policy evaluation from a directory of
// Rego files. Advisory results are warnings and never affect pass/fail.
func WithPolicyDir(dir string) Option {
	return func(v *Validator) {
		v.policyDir = dir
	}
}

// New creates a validator for the spec tree rooted at dir
func New(dir string, opts ...Option) *Validator {
	v := &Validator{
		dir:    dir,
		logger: telemetry.NewLogger("validator"),
		tracer: otel.Tracer("validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// unitStatus tracks which parts of the tree survived the structural phase
type unitStatus struct {
	root    bool
	modules map[types.ModuleName]bool
}

// parsedTree holds the units that parsed during the syntax phase
type parsedTree struct {
	root    *config.RootMain
	modules map[types.ModuleName]*config.ModuleMain
}

// Run executes one validation pass and returns a fresh report.
func (v *Validator) Run(ctx context.Context, params types.Params) *Report {
	ctx, span := v.tracer.Start(ctx, "validator.run",
		trace.WithAttributes(attribute.String("spec.dir", v.dir)))
	defer span.End()

	report := &Report{}

	if err := params.Validate(); err != nil {
		report.add(types.Violation{
			Severity: types.SeverityFatal,
			Code:     types.CodeConfigurationMissing,
			Scope:    "params",
			Message:  err.Error(),
		})
		return report
	}

	status := v.structural(ctx, report)
	parsed, ok := v.syntax(ctx, report, status)
	if !ok {
		report.Halted = true
		v.logger.LogRunComplete(ctx, report.Counts.Passed, report.Counts.Failed, report.Counts.Warned, false)
		return report
	}
	v.semantic(ctx, report, parsed, params)
	v.advisories(ctx, report, parsed, params)

	v.logger.LogRunComplete(ctx, report.Counts.Passed, report.Counts.Failed, report.Counts.Warned, report.OK())
	return report
}

// structural checks that the three required units exist for the root
// and for each module. Each missing unit is a FATAL violation scoped to
// its owning unit; the rest of the tree is still validated.
func (v *Validator) structural(ctx context.Context, report *Report) unitStatus {
	ctx, span := v.tracer.Start(ctx, "validator.structural")
	defer span.End()
	v.logger.LogPhaseStart(ctx, "structural")

	before := len(report.Violations)
	passedBefore := report.Counts.Passed
	status := unitStatus{modules: make(map[types.ModuleName]bool)}

	status.root = v.checkUnits(ctx, report, v.dir, "root")
	for _, name := range types.ModuleNames {
		scope := fmt.Sprintf("modules/%s", name)
		status.modules[name] = v.checkUnits(ctx, report, config.ModuleDir(v.dir, name), scope)
	}

	// Optional local parameter override; absence is advisory only
	if _, err := os.Stat(filepath.Join(v.dir, config.LocalParamsFile)); err != nil {
		report.add(types.Violation{
			Severity: types.SeverityWarning,
			Code:     types.CodeAdvisoryGap,
			Scope:    "root",
			Message:  fmt.Sprintf("optional parameter override %s not found", config.LocalParamsFile),
		})
	} else {
		report.pass(1)
	}

	v.logger.LogPhaseComplete(ctx, "structural", report.Counts.Passed-passedBefore, len(report.Violations)-before)
	return status
}

// checkUnits verifies one directory's required units, one check each
func (v *Validator) checkUnits(ctx context.Context, report *Report, dir, scope string) bool {
	missing := config.MissingUnits(dir)
	report.pass(len(config.RequiredUnits) - len(missing))

	for _, unit := range missing {
		report.add(types.Violation{
			Severity: types.SeverityFatal,
			Code:     types.CodeConfigurationMissing,
			Scope:    scope,
			Message:  fmt.Sprintf("required unit %s is missing", unit),
		})
	}
	if len(missing) > 0 {
		v.logger.LogUnitMissing(ctx, scope, missing)
		return false
	}
	return true
}

// syntax parses every structurally present unit and checks that
// cross-references resolve. Unlike the other phases, any failure here
// is fatal for the whole run: downstream checks assume a parseable
// graph. Returns false to halt.
func (v *Validator) syntax(ctx context.Context, report *Report, status unitStatus) (*parsedTree, bool) {
	ctx, span := v.tracer.Start(ctx, "validator.syntax")
	defer span.End()
	v.logger.LogPhaseStart(ctx, "syntax")

	passedBefore := report.Counts.Passed
	parsed := &parsedTree{modules: make(map[types.ModuleName]*config.ModuleMain)}

	if status.root {
		root, ok := v.parseRoot(ctx, report)
		if !ok {
			return nil, false
		}
		parsed.root = root
	}

	for _, name := range types.ModuleNames {
		if !status.modules[name] {
			continue
		}
		main, ok := v.parseModule(ctx, report, name)
		if !ok {
			return nil, false
		}
		parsed.modules[name] = main
	}

	v.logger.LogPhaseComplete(ctx, "syntax", report.Counts.Passed-passedBefore, 0)
	return parsed, true
}

func (v *Validator) parseRoot(ctx context.Context, report *Report) (*config.RootMain, bool) {
	root, err := parseUnit(filepath.Join(v.dir, config.UnitMain), config.ParseRootMain)
	if err != nil {
		return nil, v.parseFailed(ctx, report, "root/"+config.UnitMain, err)
	}
	report.pass(1)

	if _, err := parseUnit(filepath.Join(v.dir, config.UnitVariables), config.ParseVariables); err != nil {
		return nil, v.parseFailed(ctx, report, "root/"+config.UnitVariables, err)
	}
	report.pass(1)

	outputs, err := parseUnit(filepath.Join(v.dir, config.UnitOutputs), config.ParseOutputs)
	if err != nil {
		return nil, v.parseFailed(ctx, report, "root/"+config.UnitOutputs, err)
	}
	report.pass(1)

	if err := config.CheckRootRefs(root, outputs); err != nil {
		return nil, v.parseFailed(ctx, report, "root", err)
	}
	report.pass(1)

	return root, true
}

func (v *Validator) parseModule(ctx context.Context, report *Report, name types.ModuleName) (*config.ModuleMain, bool) {
	moduleDir := config.ModuleDir(v.dir, name)
	scope := fmt.Sprintf("modules/%s", name)

	main, err := parseUnit(filepath.Join(moduleDir, config.UnitMain), config.ParseModuleMain)
	if err != nil {
		return nil, v.parseFailed(ctx, report, scope+"/"+config.UnitMain, err)
	}
	if main.Module != name {
		return nil, v.parseFailed(ctx, report, scope,
			fmt.Errorf("module %s declares itself as %q", name, main.Module))
	}
	report.pass(1)

	if _, err := parseUnit(filepath.Join(moduleDir, config.UnitVariables), config.ParseVariables); err != nil {
		return nil, v.parseFailed(ctx, report, scope+"/"+config.UnitVariables, err)
	}
	report.pass(1)

	outputs, err := parseUnit(filepath.Join(moduleDir, config.UnitOutputs), config.ParseOutputs)
	if err != nil {
		return nil, v.parseFailed(ctx, report, scope+"/"+config.UnitOutputs, err)
	}
	report.pass(1)

	if err := config.CheckModuleRefs(main, outputs); err != nil {
		return nil, v.parseFailed(ctx, report, scope, err)
	}
	report.pass(1)

	return main, true
}

// parseFailed records a fatal parse violation; always returns false
func (v *Validator) parseFailed(ctx context.Context, report *Report, scope string, err error) bool {
	v.logger.LogParseFailure(ctx, scope, err)
	report.add(types.Violation{
		Severity: types.SeverityFatal,
		Code:     types.CodeParseFailure,
		Scope:    scope,
		Message:  err.Error(),
	})
	return false
}

func parseUnit[T any](path string, parse func([]byte) (*T, error)) (*T, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path derives from user-chosen spec dir
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return parse(data)
}

// semantic runs the full descriptor/module/composition invariant chain,
// collecting every violation with no short-circuit. Composition-level
// checks (total count, naming uniqueness) require all three modules;
// with a partial tree each surviving module is validated independently.
func (v *Validator) semantic(ctx context.Context, report *Report, parsed *parsedTree, params types.Params) {
	ctx, span := v.tracer.Start(ctx, "validator.semantic")
	defer span.End()
	v.logger.LogPhaseStart(ctx, "semantic")

	before := len(report.Violations)
	passedBefore := report.Counts.Passed

	comp := buildComposition(parsed, params)
	if comp.Complete() {
		violations := comp.Validate()
		report.pass(comp.CheckCount() - failedChecks(violations))
		report.addAll(violations)
	} else {
		for i := range comp.Modules {
			module := &comp.Modules[i]
			violations := module.Validate()
			report.pass(module.CheckCount() - failedChecks(violations))
			report.addAll(violations)
		}
	}

	v.logger.LogPhaseComplete(ctx, "semantic", report.Counts.Passed-passedBefore, len(report.Violations)-before)
}

// advisories evaluates optional Rego policies against the rendered
// graph. Advisory findings are warnings only.
func (v *Validator) advisories(ctx context.Context, report *Report, parsed *parsedTree, params types.Params) {
	if v.policyDir == "" {
		return
	}

	comp := buildComposition(parsed, params)
	if !comp.Complete() {
		return
	}
	graph, err := render.Render(comp)
	if err != nil {
		return
	}

	engine := policy.NewEngine()
	if err := engine.LoadDir(ctx, v.policyDir); err != nil {
		report.add(types.Violation{
			Severity: types.SeverityWarning,
			Code:     types.CodeAdvisoryGap,
			Scope:    "policy",
			Message:  fmt.Sprintf("failed to load advisory policies: %v", err),
		})
		return
	}

	warnings, clean := engine.Evaluate(ctx, graph)
	report.pass(clean)
	report.addAll(warnings)
}

// failedChecks counts distinct failed checks in a violation batch.
// Every check emits at most one violation except naming uniqueness,
// which reports each colliding name; those all belong to the single
// uniqueness check and must not deflate the pass count.
func failedChecks(violations []types.Violation) int {
	failed := 0
	collided := false
	for _, v := range violations {
		if v.Code == types.CodeNamingCollision {
			collided = true
			continue
		}
		failed++
	}
	if collided {
		failed++
	}
	return failed
}

func buildComposition(parsed *parsedTree, params types.Params) *types.Composition {
	comp := &types.Composition{Params: params}
	for _, name := range types.ModuleNames {
		main, ok := parsed.modules[name]
		if !ok {
			continue
		}
		comp.Modules = append(comp.Modules, types.Module{
			Name:    name,
			Buckets: main.Buckets,
		})
	}
	return comp
}
