package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

// Engine evaluates install requests against registered policies.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range GetBuiltinPolicies() {
		if err := e.RegisterPolicy(context.Background(), p); err != nil {
			return nil, fmt.Errorf("failed to load built-in policies: %w", err)
		}
	}

	return e, nil
}

// RegisterPolicy compiles and stores a policy, replacing any existing
// policy with the same name.
func (e *Engine) RegisterPolicy(ctx context.Context, policy Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy %s: %w", policy.Name, err)
	}
	packagePath := strings.TrimPrefix(module.Package.Path.String(), "data.")

	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query(fmt.Sprintf("data.%s.deny", packagePath)),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare policy %s: %w", policy.Name, err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   &policy,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled successfully")
	return nil
}

// LoadPolicyFiles registers policies from .rego files. Each file
// becomes one policy named after its base name.
func (e *Engine) LoadPolicyFiles(ctx context.Context, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read policy file %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p := Policy{
			Name:        name,
			Description: fmt.Sprintf("policy loaded from %s", path),
			Rego:        string(data),
			Severity:    SeverityError,
			Enabled:     true,
		}
		if err := e.RegisterPolicy(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Policies returns the names of all registered policies.
func (e *Engine) Policies() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	return names
}

// SetEnabled toggles a policy by name.
func (e *Engine) SetEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("unknown policy %q", name)
	}
	cp.policy.Enabled = enabled
	return nil
}

// EvaluateInstall evaluates all enabled policies against one install
// request.
func (e *Engine) EvaluateInstall(ctx context.Context, input *InstallInput) (*Result, error) {
	startTime := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	if input.Context == nil {
		input.Context = &EvalContext{
			Timestamp: startTime,
			Operation: "install",
		}
	}

	var allViolations []Violation
	var warnings []string
	evaluatedPolicies := make([]string, 0, len(e.policies))

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}
		evaluatedPolicies = append(evaluatedPolicies, cp.policy.Name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("name", input.Name).
				Msg("Policy evaluation failed")
			warnings = append(warnings, fmt.Sprintf("Policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}
		allViolations = append(allViolations, violations...)
	}

	allowed := true
	for i := range allViolations {
		if allViolations[i].Severity == SeverityError || allViolations[i].Severity == SeverityCritical {
			allowed = false
			break
		}
	}

	duration := time.Since(startTime)
	e.logger.Debug().
		Str("name", input.Name).
		Str("kind", input.Kind).
		Int("violations", len(allViolations)).
		Dur("duration", duration).
		Msg("Install policy evaluation completed")

	return &Result{
		Allowed:           allowed,
		Violations:        allViolations,
		Warnings:          warnings,
		EvaluatedPolicies: evaluatedPolicies,
		EvaluatedAt:       time.Now(),
		Duration:          duration,
	}, nil
}

func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *InstallInput) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, e.createViolation(cp.policy, d, input))
			}
		}
	}
	return violations, nil
}

func (e *Engine) createViolation(policy *Policy, raw interface{}, input *InstallInput) Violation {
	v := Violation{
		Policy:     policy.Name,
		Subject:    input.Name,
		Severity:   policy.Severity,
		DetectedAt: time.Now(),
	}

	fields, ok := raw.(map[string]interface{})
	if !ok {
		v.Message = fmt.Sprintf("%v", raw)
		return v
	}
	if msg, ok := fields["message"].(string); ok {
		v.Message = msg
	}
	if subject, ok := fields["subject"].(string); ok && subject != "" {
		v.Subject = subject
	}
	if sev, ok := fields["severity"].(string); ok && sev != "" {
		v.Severity = Severity(sev)
	}
	if rem, ok := fields["remediation"].(string); ok {
		v.Remediation = rem
	}
	return v
}
