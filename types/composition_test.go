package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{Region: "us-east-1", Environment: "prod", ProjectName: "acme"}
}

func testComposition() Composition {
	return Composition{
		Params: testParams(),
		Modules: []Module{
			moduleWithBuckets(ModuleStorage, "data-lake", "backups", "logs", "archive"),
			moduleWithBuckets(ModuleApplication, "assets", "uploads", "cache"),
			moduleWithBuckets(ModuleAnalytics, "events-raw", "events-curated", "reports"),
		},
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{
			name:    "all set",
			params:  testParams(),
			wantErr: false,
		},
		{
			name:    "missing region",
			params:  Params{Environment: "prod", ProjectName: "acme"},
			wantErr: true,
		},
		{
			name:    "missing environment",
			params:  Params{Region: "us-east-1", ProjectName: "acme"},
			wantErr: true,
		},
		{
			name:    "missing project name",
			params:  Params{Region: "us-east-1", Environment: "prod"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBucketName(t *testing.T) {
	name := BucketName(testParams(), "data-lake")
	assert.Equal(t, "acme-prod-data-lake", name)
}

func TestComposition_ValidateClean(t *testing.T) {
	comp := testComposition()
	assert.Empty(t, comp.Validate())
	assert.Equal(t, TotalBucketCount, comp.TotalBuckets())
	assert.True(t, comp.Complete())
}

func TestComposition_ValidateTotalCount(t *testing.T) {
	comp := testComposition()
	storage, ok := comp.Module(ModuleStorage)
	require.True(t, ok)
	storage.Buckets["extra"] = compliantBucket("extra")

	violations := comp.Validate()

	// One module count mismatch, one composition total mismatch
	var codes []Code
	for _, v := range violations {
		codes = append(codes, v.Code)
	}
	assert.Equal(t, []Code{CodeCountMismatch, CodeCountMismatch}, codes)
}

func TestComposition_ValidateNamingCollision(t *testing.T) {
	comp := testComposition()
	application, ok := comp.Module(ModuleApplication)
	require.True(t, ok)

	// Same logical key in two modules renders to the same name
	delete(application.Buckets, "cache")
	application.Buckets["data-lake"] = compliantBucket("data-lake")

	violations := comp.Validate()
	require.Len(t, violations, 1)
	assert.Equal(t, CodeNamingCollision, violations[0].Code)
	assert.Contains(t, violations[0].Message, "acme-prod-data-lake")
}

func TestComposition_RenameKeepsUniqueness(t *testing.T) {
	comp := testComposition()

	for _, project := range []string{"acme", "globex", "initech"} {
		comp.Params.ProjectName = project
		names := make(map[string]bool)
		for i := range comp.Modules {
			for _, key := range comp.Modules[i].BucketKeys() {
				name := BucketName(comp.Params, key)
				assert.False(t, names[name], "duplicate name %s for project %s", name, project)
				assert.Contains(t, name, project)
				names[name] = true
			}
		}
		assert.Len(t, names, TotalBucketCount)
	}
}

func TestComposition_ModuleLookup(t *testing.T) {
	comp := testComposition()

	module, ok := comp.Module(ModuleAnalytics)
	require.True(t, ok)
	assert.Equal(t, ModuleAnalytics, module.Name)

	_, ok = comp.Module("networking")
	assert.False(t, ok)
}
