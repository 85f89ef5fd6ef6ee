package types

import "fmt"

// Encryption is the server-side encryption mode declared for a bucket
type Encryption string

const (
	EncryptionNone   Encryption = "NONE"
	EncryptionAES256 Encryption = "AES256"
)

// LifecycleRule transitions or expires objects after a number of days
type LifecycleRule struct {
	TransitionAfterDays int    `yaml:"transition_after_days" json:"transition_after_days"`
	Action              string `yaml:"action" json:"action"`
}

// PublicAccessBlock holds the four flags that prevent any public exposure
// of a bucket. All four must be true for every bucket, no exceptions.
type PublicAccessBlock struct {
	BlockPublicACLs       bool `yaml:"block_public_acls" json:"block_public_acls"`
	BlockPublicPolicy     bool `yaml:"block_public_policy" json:"block_public_policy"`
	IgnorePublicACLs      bool `yaml:"ignore_public_acls" json:"ignore_public_acls"`
	RestrictPublicBuckets bool `yaml:"restrict_public_buckets" json:"restrict_public_buckets"`
}

// AllEnabled reports whether every flag is set
func (b PublicAccessBlock) AllEnabled() bool {
	return b.BlockPublicACLs && b.BlockPublicPolicy && b.IgnorePublicACLs && b.RestrictPublicBuckets
}

// BucketDescriptor is the atomic unit of the provisioning spec: one named
// storage container and its declared security/lifecycle properties.
// It is pure data; Validate is its only behavior.
type BucketDescriptor struct {
	Name               string            `yaml:"name" json:"name"`
	Versioning         bool              `yaml:"versioning" json:"versioning"`
	Encryption         Encryption        `yaml:"encryption" json:"encryption"`
	LifecycleRules     []LifecycleRule   `yaml:"lifecycle_rules,omitempty" json:"lifecycle_rules,omitempty"`
	CORSEnabled        bool              `yaml:"cors_enabled" json:"cors_enabled"`
	PublicAccessBlock  PublicAccessBlock `yaml:"public_access_block" json:"public_access_block"`
	ExplicitDenyPolicy bool              `yaml:"explicit_deny_policy" json:"explicit_deny_policy"`

	// RequiresLifecycle marks descriptors (analytics, temp-cleanup) that
	// are only compliant with at least one lifecycle rule.
	RequiresLifecycle bool `yaml:"requires_lifecycle,omitempty" json:"requires_lifecycle,omitempty"`

	// StaticAssetHost marks the single bucket that surfaces a website
	// endpoint in the composition outputs.
	StaticAssetHost bool `yaml:"static_asset_host,omitempty" json:"static_asset_host,omitempty"`
}

// CheckCount returns how many invariant checks Validate runs for this
// descriptor. Used by the validator to derive pass counts.
func (d BucketDescriptor) CheckCount() int {
	if d.RequiresLifecycle {
		return 4
	}
	return 3
}

// Validate checks the descriptor's invariants in a fixed order and
// returns every violation found. It never short-circuits and never
// fails: all outcomes are violations, not errors.
func (d BucketDescriptor) Validate() []Violation {
	var violations []Violation

	if !d.PublicAccessBlock.AllEnabled() {
		violations = append(violations, Violation{
			Severity: SeverityError,
			Code:     CodeSecurityInvariant,
			Scope:    d.Name,
			Message:  "public access block must enable all four flags",
		})
	}

	if !d.ExplicitDenyPolicy {
		violations = append(violations, Violation{
			Severity: SeverityError,
			Code:     CodeSecurityInvariant,
			Scope:    d.Name,
			Message:  "bucket must carry an explicit public-access deny policy",
		})
	}

	if d.Encryption == EncryptionNone || d.Encryption == "" {
		violations = append(violations, Violation{
			Severity: SeverityError,
			Code:     CodeSecurityInvariant,
			Scope:    d.Name,
			Message:  fmt.Sprintf("encryption must be %s or stronger", EncryptionAES256),
		})
	}

	if d.RequiresLifecycle && len(d.LifecycleRules) == 0 {
		violations = append(violations, Violation{
			Severity: SeverityError,
			Code:     CodeLifecycleMissing,
			Scope:    d.Name,
			Message:  "bucket requires lifecycle rules but declares none",
		})
	}

	return violations
}
