package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bucketlint/bucketlint/config"
	"github.com/bucketlint/bucketlint/history"
	"github.com/bucketlint/bucketlint/types"
	"github.com/bucketlint/bucketlint/validator"
)

var (
	validateDir         string
	validateRegion      string
	validateEnvironment string
	validateProject     string
	validateOutput      string
	validatePolicyDir   string
	validateHistoryPath string
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a bucket fleet spec tree",
	Long: `Validate a spec tree in three phases:
- Structural: every module directory carries its three required units
- Syntax: every unit parses and its references resolve
- Semantic: every bucket honors encryption, access, and lifecycle invariants

Violations are reported with severity, scope, and a stable code. The
command exits non-zero when any FATAL or ERROR violation is found;
warnings never fail a run.`,
	Example: `  bucketlint validate                          # Validate ./
  bucketlint validate --dir ./fleet            # Validate a specific tree
  bucketlint validate --environment staging    # Override the environment
  bucketlint validate --output json            # Machine-readable report
  bucketlint validate --policies ./policies    # Load advisory policies
  bucketlint validate --history ./runs.db      # Record the run`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateDir, "dir", "d", ".", "Spec tree directory")
	validateCmd.Flags().StringVarP(&validateRegion, "region", "r", "us-east-1", "Target region")
	validateCmd.Flags().StringVarP(&validateEnvironment, "environment", "e", "prod", "Target environment")
	validateCmd.Flags().StringVarP(&validateProject, "project", "p", "acme", "Project name prefix")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "table", "Output format: table, json")
	validateCmd.Flags().StringVar(&validatePolicyDir, "policies", "", "Directory of advisory policy files (*.rego)")
	validateCmd.Flags().StringVar(&validateHistoryPath, "history", "", "Record the run in this history database")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if err := validOutput(validateOutput); err != nil {
		return err
	}

	params, err := resolveParams(validateDir)
	if err != nil {
		return err
	}

	var opts []validator.Option
	if dir := resolvePolicyDir(validatePolicyDir, validateDir); dir != "" {
		opts = append(opts, validator.WithPolicyDir(dir))
	}

	start := time.Now()
	report := validator.New(validateDir, opts...).Run(cmd.Context(), params)
	duration := time.Since(start)

	if err := printReport(os.Stdout, report, validateOutput); err != nil {
		return err
	}

	if validateHistoryPath != "" {
		if err := recordRun(cmd.Context(), report, duration); err != nil {
			return err
		}
	}

	if !report.OK() {
		return fmt.Errorf("validation failed: %d check(s) failed", report.Counts.Failed)
	}
	return nil
}

// resolvePolicyDir falls back to the conventional policies/ directory
// next to the spec tree when no explicit policy dir is given
func resolvePolicyDir(explicit, specDir string) string {
	if explicit != "" {
		return explicit
	}
	conventional := filepath.Join(specDir, "policies")
	if info, err := os.Stat(conventional); err == nil && info.IsDir() {
		return conventional
	}
	return ""
}

// resolveParams builds the run parameters from flags, overlaid by the
// optional local params file in the spec tree.
func resolveParams(dir string) (types.Params, error) {
	params := types.Params{
		Region:      validateRegion,
		Environment: validateEnvironment,
		ProjectName: validateProject,
	}

	local, exists, err := config.LoadLocalParams(dir)
	if err != nil {
		return params, err
	}
	if exists {
		params = config.MergeParams(params, local)
	}
	return params, nil
}

func recordRun(ctx context.Context, report *validator.Report, duration time.Duration) error {
	store, err := history.Open(validateHistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	return store.Record(ctx, history.FromReport(report, duration))
}
