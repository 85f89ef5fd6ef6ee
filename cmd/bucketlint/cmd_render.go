package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bucketlint/bucketlint/config"
	"github.com/bucketlint/bucketlint/render"
	"github.com/bucketlint/bucketlint/types"
)

var (
	renderDir         string
	renderRegion      string
	renderEnvironment string
	renderProject     string
	renderOutput      string
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the bucket graph from a spec tree",
	Long: `Render a spec tree into its bucket graph: every bucket with its
final name, locator, and website endpoint, in deterministic name order.

Rendering fails fast on an unloadable tree; use validate for the full
violation report.`,
	Example: `  bucketlint render                        # Render ./
  bucketlint render --dir ./fleet          # Render a specific tree
  bucketlint render --environment staging  # Render with staging names
  bucketlint render --output table         # Human-readable listing`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderDir, "dir", "d", ".", "Spec tree directory")
	renderCmd.Flags().StringVarP(&renderRegion, "region", "r", "us-east-1", "Target region")
	renderCmd.Flags().StringVarP(&renderEnvironment, "environment", "e", "prod", "Target environment")
	renderCmd.Flags().StringVarP(&renderProject, "project", "p", "acme", "Project name prefix")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "json", "Output format: table, json")
}

func runRender(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if err := validOutput(renderOutput); err != nil {
		return err
	}

	params := types.Params{
		Region:      renderRegion,
		Environment: renderEnvironment,
		ProjectName: renderProject,
	}
	local, exists, err := config.LoadLocalParams(renderDir)
	if err != nil {
		return err
	}
	if exists {
		params = config.MergeParams(params, local)
	}

	tree, err := config.LoadTree(renderDir)
	if err != nil {
		return fmt.Errorf("failed to load spec tree: %w", err)
	}

	graph, err := render.Render(tree.Composition(params))
	if err != nil {
		return err
	}

	if renderOutput == outputJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(graph.Outputs())
	}

	for _, bucket := range graph.Buckets() {
		line := fmt.Sprintf("%-12s %-16s %s", bucket.Module, bucket.Key, bucket.Name)
		if bucket.WebsiteEndpoint != "" {
			line += fmt.Sprintf("  (website: %s)", bucket.WebsiteEndpoint)
		}
		fmt.Println(line)
	}
	fmt.Printf("%d buckets\n", graph.Len())
	return nil
}
