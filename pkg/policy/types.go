package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block an install.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that must never be bypassed.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`
}

// InstallInput is the document policies are evaluated against.
type InstallInput struct {
	// Kind is "collection" or "role".
	Kind string `json:"kind"`

	// Name is the content name as given to the installer. For galaxy
	// content this is the dotted fully qualified name; for other
	// source types it may be a path, URL, or git spec.
	Name string `json:"name"`

	// Version is the requested version constraint, if any. The field
	// is always present in the policy input document so rules can
	// test for emptiness.
	Version string `json:"version"`

	// Source is the server or repository the content comes from.
	Source string `json:"source"`

	// Type tells the installer how to treat Name (galaxy, git, url,
	// file, dir, subdirs). Empty means galaxy.
	Type string `json:"type"`

	// AllowedServers restricts galaxy servers when non-empty.
	AllowedServers []string `json:"allowed_servers,omitempty"`

	// Context carries evaluation metadata.
	Context *EvalContext `json:"context"`
}

// EvalContext provides additional evaluation context.
type EvalContext struct {
	// Timestamp is when the evaluation started.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the operation being gated.
	Operation string `json:"operation"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Subject is the content name the violation applies to.
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Remediation provides a suggested fix.
	Remediation string `json:"remediation,omitempty"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the outcome of gating one install.
type Result struct {
	// Allowed indicates if the install may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not block.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that ran.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation finished.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Blockers returns the violations that caused the install to be denied.
func (r *Result) Blockers() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityError || v.Severity == SeverityCritical {
			out = append(out, v)
		}
	}
	return out
}
