package types

import (
	"fmt"
	"sort"
)

// ModuleName identifies one of the three functional domains
type ModuleName string

const (
	ModuleStorage     ModuleName = "storage"
	ModuleApplication ModuleName = "application"
	ModuleAnalytics   ModuleName = "analytics"
)

// ModuleNames is the fixed instantiation order of the composition
var ModuleNames = []ModuleName{ModuleStorage, ModuleApplication, ModuleAnalytics}

// ExpectedBucketCount is the fixed per-module bucket count
var ExpectedBucketCount = map[ModuleName]int{
	ModuleStorage:     4,
	ModuleApplication: 3,
	ModuleAnalytics:   3,
}

// TotalBucketCount is the expected bucket count across all modules
const TotalBucketCount = 10

// KnownModule reports whether name is one of the three defined modules
func KnownModule(name ModuleName) bool {
	_, ok := ExpectedBucketCount[name]
	return ok
}

// Module is a named, purpose-grouped collection of bucket descriptors.
// Keys are unique within the module; order is irrelevant.
type Module struct {
	Name    ModuleName                  `yaml:"module" json:"module"`
	Buckets map[string]BucketDescriptor `yaml:"buckets" json:"buckets"`
}

// BucketKeys returns the module's logical keys in sorted order
func (m *Module) BucketKeys() []string {
	keys := make([]string, 0, len(m.Buckets))
	for key := range m.Buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// CheckCount returns how many invariant checks Validate runs
func (m *Module) CheckCount() int {
	count := 1 // bucket count check
	for _, bucket := range m.Buckets {
		count += bucket.CheckCount()
	}
	return count
}

// Validate concatenates every bucket's violations, scoped as
// module/key for traceability, plus the module-level count check.
func (m *Module) Validate() []Violation {
	var violations []Violation

	for _, key := range m.BucketKeys() {
		for _, v := range m.Buckets[key].Validate() {
			v.Scope = fmt.Sprintf("%s/%s", m.Name, key)
			violations = append(violations, v)
		}
	}

	if expected, ok := ExpectedBucketCount[m.Name]; ok && len(m.Buckets) != expected {
		violations = append(violations, Violation{
			Severity: SeverityError,
			Code:     CodeCountMismatch,
			Scope:    string(m.Name),
			Message:  fmt.Sprintf("module bucket count mismatch: expected %d, actual %d", expected, len(m.Buckets)),
		})
	}

	return violations
}
