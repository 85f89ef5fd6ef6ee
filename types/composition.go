package types

import "fmt"

// Params are the environment-specific values substituted into every
// bucket name and tag set
type Params struct {
	Region      string `yaml:"region" json:"region"`
	Environment string `yaml:"environment" json:"environment"`
	ProjectName string `yaml:"project_name" json:"project_name"`
}

// Validate ensures all parameters are set
func (p Params) Validate() error {
	if p.Region == "" {
		return fmt.Errorf("region is required")
	}
	if p.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if p.ProjectName == "" {
		return fmt.Errorf("project_name is required")
	}
	return nil
}

// BucketName derives a bucket's rendered name as a pure function of the
// project name, environment, and logical key. Every produced name must
// be unique within the composition.
func BucketName(p Params, key string) string {
	return fmt.Sprintf("%s-%s-%s", p.ProjectName, p.Environment, key)
}

// Composition instantiates the three modules with one parameter set and
// aggregates their outputs. It is an immutable snapshot for the duration
// of a validation pass; validation only reads and reports.
type Composition struct {
	Params  Params   `json:"params"`
	Modules []Module `json:"modules"`
}

// Module returns the named module, if instantiated
func (c *Composition) Module(name ModuleName) (*Module, bool) {
	for i := range c.Modules {
		if c.Modules[i].Name == name {
			return &c.Modules[i], true
		}
	}
	return nil, false
}

// TotalBuckets counts buckets across all modules
func (c *Composition) TotalBuckets() int {
	total := 0
	for i := range c.Modules {
		total += len(c.Modules[i].Buckets)
	}
	return total
}

// Complete reports whether all three modules are instantiated.
// Composition-level checks only make sense on a complete composition.
func (c *Composition) Complete() bool {
	for _, name := range ModuleNames {
		if _, ok := c.Module(name); !ok {
			return false
		}
	}
	return true
}

// CheckCount returns how many invariant checks Validate runs
func (c *Composition) CheckCount() int {
	count := 2 // total count + naming uniqueness
	for i := range c.Modules {
		count += c.Modules[i].CheckCount()
	}
	return count
}

// Validate runs every module's checks plus the two composition-level
// checks: total bucket count and rendered-name uniqueness. Like all
// Validate methods it collects everything and never short-circuits.
func (c *Composition) Validate() []Violation {
	var violations []Violation

	for i := range c.Modules {
		violations = append(violations, c.Modules[i].Validate()...)
	}

	if total := c.TotalBuckets(); total != TotalBucketCount {
		violations = append(violations, Violation{
			Severity: SeverityError,
			Code:     CodeCountMismatch,
			Scope:    "composition",
			Message:  fmt.Sprintf("total bucket count mismatch: expected %d, actual %d", TotalBucketCount, total),
		})
	}

	violations = append(violations, c.checkNamingUniqueness()...)

	return violations
}

// checkNamingUniqueness detects rendered bucket names claimed by more
// than one descriptor across modules
func (c *Composition) checkNamingUniqueness() []Violation {
	var violations []Violation
	seen := make(map[string]string) // rendered name -> first claimant scope

	for i := range c.Modules {
		module := &c.Modules[i]
		for _, key := range module.BucketKeys() {
			name := BucketName(c.Params, key)
			scope := fmt.Sprintf("%s/%s", module.Name, key)
			if first, dup := seen[name]; dup {
				violations = append(violations, Violation{
					Severity: SeverityError,
					Code:     CodeNamingCollision,
					Scope:    scope,
					Message:  fmt.Sprintf("rendered name %q already claimed by %s", name, first),
				})
				continue
			}
			seen[name] = scope
		}
	}

	return violations
}
