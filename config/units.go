// Package config loads a bucket provisioning spec tree from disk.
//
// A spec tree is a root directory plus one subdirectory per module, each
// made of three YAML units: definitions (main.yaml), parameter
// declarations (variables.yaml), and output declarations (outputs.yaml).
// A unit is only well-formed if all three co-exist.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bucketlint/bucketlint/types"
)

// Unit file names within a root or module directory
const (
	UnitMain      = "main.yaml"
	UnitVariables = "variables.yaml"
	UnitOutputs   = "outputs.yaml"

	// LocalParamsFile is an optional per-checkout parameter override.
	// Its absence is advisory, never an error.
	LocalParamsFile = "params.local.yaml"

	// ModulesDir holds the per-module subdirectories
	ModulesDir = "modules"
)

// RequiredUnits are the three units every root and module directory needs
var RequiredUnits = []string{UnitMain, UnitVariables, UnitOutputs}

// ModuleDir returns the directory of a named module under root dir
func ModuleDir(dir string, name types.ModuleName) string {
	return filepath.Join(dir, ModulesDir, string(name))
}

// MissingUnits returns the required unit files absent from dir
func MissingUnits(dir string) []string {
	var missing []string
	for _, unit := range RequiredUnits {
		if _, err := os.Stat(filepath.Join(dir, unit)); err != nil {
			missing = append(missing, unit)
		}
	}
	return missing
}

// RootMain is the root composition definitions unit
type RootMain struct {
	Version string   `yaml:"version"`
	Modules []string `yaml:"modules"`
}

// ModuleMain is a module's definitions unit
type ModuleMain struct {
	Module  types.ModuleName                  `yaml:"module"`
	Buckets map[string]types.BucketDescriptor `yaml:"buckets"`
}

// Variable declares one accepted parameter
type Variable struct {
	Description string `yaml:"description,omitempty"`
	Default     string `yaml:"default,omitempty"`
}

// Variables is a parameter declarations unit
type Variables struct {
	Variables map[string]Variable `yaml:"variables"`
}

// Output declares one exposed value. Module outputs reference a bucket
// key; root outputs reference a module name.
type Output struct {
	Bucket      string `yaml:"bucket,omitempty"`
	Module      string `yaml:"module,omitempty"`
	Attribute   string `yaml:"attribute,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Outputs is an output declarations unit
type Outputs struct {
	Outputs map[string]Output `yaml:"outputs"`
}

// ParseRootMain parses a root definitions unit
func ParseRootMain(data []byte) (*RootMain, error) {
	var root RootMain
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse root definitions: %w", err)
	}
	if root.Version == "" {
		return nil, fmt.Errorf("root definitions: version is required")
	}
	if len(root.Modules) == 0 {
		return nil, fmt.Errorf("root definitions: modules list is required")
	}
	return &root, nil
}

// ParseModuleMain parses a module definitions unit. Descriptor names
// default to their logical key.
func ParseModuleMain(data []byte) (*ModuleMain, error) {
	var main ModuleMain
	if err := yaml.Unmarshal(data, &main); err != nil {
		return nil, fmt.Errorf("failed to parse module definitions: %w", err)
	}
	if main.Module == "" {
		return nil, fmt.Errorf("module definitions: module name is required")
	}
	for key, bucket := range main.Buckets {
		if bucket.Name == "" {
			bucket.Name = key
			main.Buckets[key] = bucket
		}
	}
	return &main, nil
}

// ParseVariables parses a parameter declarations unit
func ParseVariables(data []byte) (*Variables, error) {
	var vars Variables
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("failed to parse variable declarations: %w", err)
	}
	return &vars, nil
}

// ParseOutputs parses an output declarations unit
func ParseOutputs(data []byte) (*Outputs, error) {
	var outputs Outputs
	if err := yaml.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("failed to parse output declarations: %w", err)
	}
	return &outputs, nil
}

// CheckModuleRefs verifies a module's outputs only reference bucket keys
// its definitions declare. A dangling reference is a syntax-level
// failure, not a semantic one.
func CheckModuleRefs(main *ModuleMain, outputs *Outputs) error {
	for name, output := range outputs.Outputs {
		if output.Bucket == "" {
			continue
		}
		if _, ok := main.Buckets[output.Bucket]; !ok {
			return fmt.Errorf("output %q references undefined bucket %q", name, output.Bucket)
		}
	}
	return nil
}

// CheckRootRefs verifies the root's module list and output references
// resolve to known modules
func CheckRootRefs(root *RootMain, outputs *Outputs) error {
	declared := make(map[string]bool, len(root.Modules))
	for _, name := range root.Modules {
		if !types.KnownModule(types.ModuleName(name)) {
			return fmt.Errorf("root declares unknown module %q", name)
		}
		declared[name] = true
	}
	for name, output := range outputs.Outputs {
		if output.Module == "" {
			continue
		}
		if !declared[output.Module] {
			return fmt.Errorf("output %q references undeclared module %q", name, output.Module)
		}
	}
	return nil
}
