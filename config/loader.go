package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bucketlint/bucketlint/types"
)

// ModuleTree is one fully loaded module directory
type ModuleTree struct {
	Dir       string
	Main      *ModuleMain
	Variables *Variables
	Outputs   *Outputs
}

// Tree is a fully loaded spec tree: root units plus the three modules
type Tree struct {
	Dir       string
	Root      *RootMain
	Variables *Variables
	Outputs   *Outputs
	Modules   map[types.ModuleName]*ModuleTree
}

// LoadModule loads one module directory. Construction fails fast if any
// of the three constituent units is absent or unparseable: a module is
// only well-formed when definitions, parameters, and outputs co-exist.
func LoadModule(dir string, name types.ModuleName) (*ModuleTree, error) {
	moduleDir := ModuleDir(dir, name)

	if missing := MissingUnits(moduleDir); len(missing) > 0 {
		return nil, fmt.Errorf("module %s is missing required units: %s", name, strings.Join(missing, ", "))
	}

	mainData, err := os.ReadFile(filepath.Join(moduleDir, UnitMain)) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s definitions: %w", name, err)
	}
	main, err := ParseModuleMain(mainData)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}
	if main.Module != name {
		return nil, fmt.Errorf("module %s declares itself as %q", name, main.Module)
	}

	varsData, err := os.ReadFile(filepath.Join(moduleDir, UnitVariables)) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s variables: %w", name, err)
	}
	vars, err := ParseVariables(varsData)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}

	outputsData, err := os.ReadFile(filepath.Join(moduleDir, UnitOutputs)) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s outputs: %w", name, err)
	}
	outputs, err := ParseOutputs(outputsData)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}

	if err := CheckModuleRefs(main, outputs); err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}

	return &ModuleTree{Dir: moduleDir, Main: main, Variables: vars, Outputs: outputs}, nil
}

// LoadTree loads the root and all three modules, failing fast on the
// first problem. The validator does its own finer-grained walk; this is
// the convenience path for rendering.
func LoadTree(dir string) (*Tree, error) {
	if missing := MissingUnits(dir); len(missing) > 0 {
		return nil, fmt.Errorf("root is missing required units: %s", strings.Join(missing, ", "))
	}

	mainData, err := os.ReadFile(filepath.Join(dir, UnitMain)) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read root definitions: %w", err)
	}
	root, err := ParseRootMain(mainData)
	if err != nil {
		return nil, err
	}

	varsData, err := os.ReadFile(filepath.Join(dir, UnitVariables)) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read root variables: %w", err)
	}
	vars, err := ParseVariables(varsData)
	if err != nil {
		return nil, err
	}

	outputsData, err := os.ReadFile(filepath.Join(dir, UnitOutputs)) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read root outputs: %w", err)
	}
	outputs, err := ParseOutputs(outputsData)
	if err != nil {
		return nil, err
	}

	if err := CheckRootRefs(root, outputs); err != nil {
		return nil, err
	}

	tree := &Tree{
		Dir:       dir,
		Root:      root,
		Variables: vars,
		Outputs:   outputs,
		Modules:   make(map[types.ModuleName]*ModuleTree),
	}

	for _, name := range root.Modules {
		module, err := LoadModule(dir, types.ModuleName(name))
		if err != nil {
			return nil, err
		}
		tree.Modules[types.ModuleName(name)] = module
	}

	return tree, nil
}

// Composition builds the immutable composition snapshot the validator
// and renderer operate on, in fixed module order.
func (t *Tree) Composition(params types.Params) *types.Composition {
	comp := &types.Composition{Params: params}
	for _, name := range types.ModuleNames {
		module, ok := t.Modules[name]
		if !ok {
			continue
		}
		comp.Modules = append(comp.Modules, types.Module{
			Name:    name,
			Buckets: module.Main.Buckets,
		})
	}
	return comp
}

// LoadLocalParams reads the optional parameter override file. The second
// return value reports whether the file exists at all.
func LoadLocalParams(dir string) (*types.Params, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, LocalParamsFile)) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read local params: %w", err)
	}

	var params types.Params
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, true, fmt.Errorf("failed to parse local params: %w", err)
	}
	return &params, true, nil
}

// MergeParams overlays any non-empty override values onto base
func MergeParams(base types.Params, override *types.Params) types.Params {
	if override == nil {
		return base
	}
	if override.Region != "" {
		base.Region = override.Region
	}
	if override.Environment != "" {
		base.Environment = override.Environment
	}
	if override.ProjectName != "" {
		base.ProjectName = override.ProjectName
	}
	return base
}
