// Package policy evaluates optional Rego advisory policies against a
// rendered bucket graph.
//
// ADVISORY ONLY: policy findings surface as WARNING violations and can
// never fail a validation run. The fixed invariant checklist lives in
// the validator; this package exists for team-specific extras.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bucketlint/bucketlint/render"
	"github.com/bucketlint/bucketlint/telemetry"
	"github.com/bucketlint/bucketlint/types"
)

// Input is the document policies evaluate against
type Input struct {
	Params          types.Params     `json:"params"`
	Buckets         []*render.Bucket `json:"buckets"`
	WebsiteEndpoint string           `json:"website_endpoint,omitempty"`
	ResourceCount   int              `json:"resource_count"`
}

// BuildInput converts a rendered graph into policy input
func BuildInput(graph *render.Graph) Input {
	return Input{
		Params:          graph.Params,
		Buckets:         graph.Buckets(),
		WebsiteEndpoint: graph.WebsiteEndpoint(),
		ResourceCount:   graph.Len(),
	}
}

// Engine holds compiled advisory policies
type Engine struct {
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine creates an empty advisory engine
func NewEngine() *Engine {
	return &Engine{
		logger:  telemetry.NewLogger("policy-engine"),
		tracer:  otel.Tracer("policy-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// Len returns the number of loaded policies
func (e *Engine) Len() int {
	return len(e.queries)
}

// LoadPolicy compiles one Rego policy under the given name
func (e *Engine) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	ctx, span := e.tracer.Start(ctx, "policy_engine.load_policy",
		trace.WithAttributes(attribute.String("policy.name", name)))
	defer span.End()

	query := rego.New(
		rego.Query("data.bucketlint"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Info().
		Str("policy_name", name).
		Msg("policy loaded")

	return nil
}

// LoadDir compiles every .rego file in dir
func (e *Engine) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read policy dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rego") {
			continue
		}
		code, err := os.ReadFile(filepath.Join(dir, entry.Name())) // #nosec G304 -- policy dir is user input
		if err != nil {
			return fmt.Errorf("failed to read policy %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".rego")
		if err := e.LoadPolicy(ctx, name, string(code)); err != nil {
			return err
		}
	}

	return nil
}

// Evaluate runs every loaded policy against the rendered graph. Returns
// the collected warnings plus the number of policies that came back
// clean. Evaluation errors are logged and skipped: a broken advisory
// policy must not break the run.
func (e *Engine) Evaluate(ctx context.Context, graph *render.Graph) ([]types.Violation, int) {
	ctx, span := e.tracer.Start(ctx, "policy_engine.evaluate",
		trace.WithAttributes(attribute.Int("policies.loaded", len(e.queries))))
	defer span.End()

	input := BuildInput(graph)

	var warnings []types.Violation
	clean := 0

	for _, name := range e.policyNames() {
		found := e.evaluatePolicy(ctx, name, input)
		if len(found) == 0 {
			clean++
			continue
		}
		warnings = append(warnings, found...)
	}

	e.logger.WithContext(ctx).Info().
		Int("policies", len(e.queries)).
		Int("warnings", len(warnings)).
		Msg("advisory evaluation complete")

	return warnings, clean
}

// policyNames returns loaded policy names in stable order
func (e *Engine) policyNames() []string {
	names := make([]string, 0, len(e.queries))
	for name := range e.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) evaluatePolicy(ctx context.Context, name string, input Input) []types.Violation {
	results, err := e.queries[name].Eval(ctx, rego.EvalInput(input))
	if err != nil {
		e.logger.WithContext(ctx).Error().
			Err(err).
			Str("policy_name", name).
			Msg("policy evaluation failed")
		return nil
	}

	return parseWarnings(name, results)
}

// parseWarnings extracts the warnings set a policy produced. Policies
// publish warnings as objects with scope and message fields, or as
// plain strings.
func parseWarnings(policy string, results rego.ResultSet) []types.Violation {
	var warnings []types.Violation

	for _, result := range results {
		for _, expr := range result.Expressions {
			doc, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			list, ok := doc["warnings"].([]interface{})
			if !ok {
				continue
			}
			for _, item := range list {
				warnings = append(warnings, warningViolation(policy, item))
			}
		}
	}

	return warnings
}

func warningViolation(policy string, item interface{}) types.Violation {
	violation := types.Violation{
		Severity: types.SeverityWarning,
		Code:     types.CodeAdvisoryGap,
		Scope:    fmt.Sprintf("policy/%s", policy),
	}

	switch value := item.(type) {
	case string:
		violation.Message = value
	case map[string]interface{}:
		if scope, ok := value["scope"].(string); ok && scope != "" {
			violation.Scope = scope
		}
		if message, ok := value["message"].(string); ok {
			violation.Message = message
		}
	default:
		violation.Message = fmt.Sprintf("%v", item)
	}

	if violation.Message == "" {
		violation.Message = fmt.Sprintf("advisory policy %s flagged the composition", policy)
	}
	return violation
}
