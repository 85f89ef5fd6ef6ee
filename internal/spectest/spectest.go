// Package spectest builds canonical spec trees for tests.
package spectest

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/bucketlint/bucketlint/config"
	"github.com/bucketlint/bucketlint/types"
)

// Params returns the parameter set used across test fixtures
func Params() types.Params {
	return types.Params{Region: "us-east-1", Environment: "prod", ProjectName: "acme"}
}

func compliant(requiresLifecycle bool, rules ...types.LifecycleRule) types.BucketDescriptor {
	return types.BucketDescriptor{
		Versioning: true,
		Encryption: types.EncryptionAES256,
		PublicAccessBlock: types.PublicAccessBlock{
			BlockPublicACLs:       true,
			BlockPublicPolicy:     true,
			IgnorePublicACLs:      true,
			RestrictPublicBuckets: true,
		},
		ExplicitDenyPolicy: true,
		RequiresLifecycle:  requiresLifecycle,
		LifecycleRules:     rules,
	}
}

// CanonicalModule returns the canonical definitions unit for one module.
// The fleet is fixed: storage=4, application=3, analytics=3 buckets.
func CanonicalModule(name types.ModuleName) *config.ModuleMain {
	transition := func(days int, action string) types.LifecycleRule {
		return types.LifecycleRule{TransitionAfterDays: days, Action: action}
	}

	var buckets map[string]types.BucketDescriptor
	switch name {
	case types.ModuleStorage:
		buckets = map[string]types.BucketDescriptor{
			"data-lake": compliant(false),
			"backups":   compliant(false),
			"logs":      compliant(true, transition(30, "EXPIRE")),
			"archive":   compliant(false, transition(90, "DEEP_ARCHIVE")),
		}
	case types.ModuleApplication:
		assets := compliant(false)
		assets.CORSEnabled = true
		assets.StaticAssetHost = true
		buckets = map[string]types.BucketDescriptor{
			"assets":  assets,
			"uploads": compliant(false),
			"cache":   compliant(true, transition(7, "EXPIRE")),
		}
	case types.ModuleAnalytics:
		buckets = map[string]types.BucketDescriptor{
			"events-raw":     compliant(true, transition(30, "GLACIER")),
			"events-curated": compliant(true, transition(90, "GLACIER")),
			"reports":        compliant(true, transition(365, "EXPIRE")),
		}
	}

	for key, bucket := range buckets {
		bucket.Name = key
		buckets[key] = bucket
	}
	return &config.ModuleMain{Module: name, Buckets: buckets}
}

// WriteUnit marshals v as YAML into path
func WriteUnit(tb testing.TB, path string, v any) {
	tb.Helper()
	data, err := yaml.Marshal(v)
	if err != nil {
		tb.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}

// WriteTree writes the full canonical spec tree under dir: root units
// plus the three module directories, all compliant.
func WriteTree(tb testing.TB, dir string) {
	tb.Helper()

	WriteUnit(tb, filepath.Join(dir, config.UnitMain), &config.RootMain{
		Version: "v1",
		Modules: []string{"storage", "application", "analytics"},
	})
	WriteUnit(tb, filepath.Join(dir, config.UnitVariables), &config.Variables{
		Variables: map[string]config.Variable{
			"region":       {Description: "provisioning region", Default: "us-east-1"},
			"environment":  {Description: "deployment environment"},
			"project_name": {Description: "project prefix for bucket names"},
		},
	})
	WriteUnit(tb, filepath.Join(dir, config.UnitOutputs), &config.Outputs{
		Outputs: map[string]config.Output{
			"storage_buckets":     {Module: "storage", Attribute: "names"},
			"application_buckets": {Module: "application", Attribute: "names"},
			"analytics_buckets":   {Module: "analytics", Attribute: "names"},
			"website_endpoint":    {Module: "application", Attribute: "website_endpoint"},
			"resource_count":      {Description: "total bucket count"},
		},
	})

	for _, name := range types.ModuleNames {
		moduleDir := config.ModuleDir(dir, name)
		if err := os.MkdirAll(moduleDir, 0o755); err != nil {
			tb.Fatalf("mkdir %s: %v", moduleDir, err)
		}

		main := CanonicalModule(name)
		WriteUnit(tb, filepath.Join(moduleDir, config.UnitMain), main)
		WriteUnit(tb, filepath.Join(moduleDir, config.UnitVariables), &config.Variables{
			Variables: map[string]config.Variable{
				"region":       {Description: "provisioning region"},
				"environment":  {Description: "deployment environment"},
				"project_name": {Description: "project prefix for bucket names"},
			},
		})

		outputs := &config.Outputs{Outputs: map[string]config.Output{}}
		for key := range main.Buckets {
			outputs.Outputs[key+"_name"] = config.Output{Bucket: key, Attribute: "name"}
			outputs.Outputs[key+"_arn"] = config.Output{Bucket: key, Attribute: "arn"}
		}
		WriteUnit(tb, filepath.Join(moduleDir, config.UnitOutputs), outputs)
	}
}
