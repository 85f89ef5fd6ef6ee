package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketlint/bucketlint/config"
	"github.com/bucketlint/bucketlint/internal/spectest"
	"github.com/bucketlint/bucketlint/types"
)

func TestLoadTree(t *testing.T) {
	dir := t.TempDir()
	spectest.WriteTree(t, dir)

	tree, err := config.LoadTree(dir)
	require.NoError(t, err)

	assert.Equal(t, "v1", tree.Root.Version)
	assert.Len(t, tree.Modules, 3)
	assert.Len(t, tree.Modules[types.ModuleStorage].Main.Buckets, 4)
	assert.Len(t, tree.Modules[types.ModuleApplication].Main.Buckets, 3)
	assert.Len(t, tree.Modules[types.ModuleAnalytics].Main.Buckets, 3)
}

func TestLoadTree_MissingRootUnit(t *testing.T) {
	dir := t.TempDir()
	spectest.WriteTree(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, config.UnitOutputs)))

	_, err := config.LoadTree(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.UnitOutputs)
}

func TestLoadModule_FailsFastOnMissingUnit(t *testing.T) {
	dir := t.TempDir()
	spectest.WriteTree(t, dir)

	moduleDir := config.ModuleDir(dir, types.ModuleApplication)
	require.NoError(t, os.Remove(filepath.Join(moduleDir, config.UnitVariables)))

	_, err := config.LoadModule(dir, types.ModuleApplication)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required units")
	assert.Contains(t, err.Error(), config.UnitVariables)
}

func TestLoadModule_DefaultsBucketNames(t *testing.T) {
	dir := t.TempDir()
	spectest.WriteTree(t, dir)

	module, err := config.LoadModule(dir, types.ModuleStorage)
	require.NoError(t, err)
	for key, bucket := range module.Main.Buckets {
		assert.Equal(t, key, bucket.Name)
	}
}

func TestLoadModule_NameMismatch(t *testing.T) {
	dir := t.TempDir()
	spectest.WriteTree(t, dir)

	moduleDir := config.ModuleDir(dir, types.ModuleStorage)
	main := spectest.CanonicalModule(types.ModuleAnalytics)
	spectest.WriteUnit(t, filepath.Join(moduleDir, config.UnitMain), main)
	spectest.WriteUnit(t, filepath.Join(moduleDir, config.UnitOutputs), &config.Outputs{})

	_, err := config.LoadModule(dir, types.ModuleStorage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares itself")
}

func TestLoadModule_DanglingOutputRef(t *testing.T) {
	dir := t.TempDir()
	spectest.WriteTree(t, dir)

	moduleDir := config.ModuleDir(dir, types.ModuleAnalytics)
	spectest.WriteUnit(t, filepath.Join(moduleDir, config.UnitOutputs), &config.Outputs{
		Outputs: map[string]config.Output{
			"ghost": {Bucket: "does-not-exist", Attribute: "name"},
		},
	})

	_, err := config.LoadModule(dir, types.ModuleAnalytics)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined bucket")
}

func TestParseRootMain(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid",
			input:   "version: v1\nmodules: [storage, application, analytics]\n",
			wantErr: false,
		},
		{
			name:    "missing version",
			input:   "modules: [storage]\n",
			wantErr: true,
		},
		{
			name:    "empty module list",
			input:   "version: v1\n",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			input:   "version: [unclosed\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseRootMain([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRootMain() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckRootRefs_UnknownModule(t *testing.T) {
	root := &config.RootMain{Version: "v1", Modules: []string{"storage", "networking"}}
	err := config.CheckRootRefs(root, &config.Outputs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "networking")
}

func TestCheckRootRefs_UndeclaredOutputModule(t *testing.T) {
	root := &config.RootMain{Version: "v1", Modules: []string{"storage"}}
	outputs := &config.Outputs{
		Outputs: map[string]config.Output{
			"analytics_buckets": {Module: "analytics", Attribute: "names"},
		},
	}
	err := config.CheckRootRefs(root, outputs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared module")
}

func TestTreeComposition(t *testing.T) {
	dir := t.TempDir()
	spectest.WriteTree(t, dir)

	tree, err := config.LoadTree(dir)
	require.NoError(t, err)

	comp := tree.Composition(spectest.Params())
	assert.True(t, comp.Complete())
	assert.Equal(t, types.TotalBucketCount, comp.TotalBuckets())

	// Fixed instantiation order
	require.Len(t, comp.Modules, 3)
	assert.Equal(t, types.ModuleStorage, comp.Modules[0].Name)
	assert.Equal(t, types.ModuleApplication, comp.Modules[1].Name)
	assert.Equal(t, types.ModuleAnalytics, comp.Modules[2].Name)
}

func TestLoadLocalParams(t *testing.T) {
	dir := t.TempDir()

	params, exists, err := config.LoadLocalParams(dir)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, params)

	content := "region: eu-west-1\nproject_name: globex\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.LocalParamsFile), []byte(content), 0o644))

	params, exists, err = config.LoadLocalParams(dir)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "eu-west-1", params.Region)
	assert.Equal(t, "globex", params.ProjectName)
}

func TestMergeParams(t *testing.T) {
	base := spectest.Params()

	merged := config.MergeParams(base, nil)
	assert.Equal(t, base, merged)

	merged = config.MergeParams(base, &types.Params{Environment: "staging"})
	assert.Equal(t, "staging", merged.Environment)
	assert.Equal(t, base.Region, merged.Region)
	assert.Equal(t, base.ProjectName, merged.ProjectName)
}
