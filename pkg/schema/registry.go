package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Well-known schema names registered by default.
const (
	SchemaRequirements = "requirements"
	SchemaGalaxy       = "galaxy"
	SchemaMeta         = "meta"
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	// Schema is the name of the schema the document was validated against.
	Schema string `json:"schema"`

	// Path is the dotted path to the offending field, or "" for
	// document-level errors.
	Path string `json:"path"`

	// Message is the human-readable description of the violation.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Schema, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Schema, e.Path, e.Message)
}

// ValidationErrors is the full set of violations for one document.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// Registry holds compiled CUE schemas keyed by name.
type Registry struct {
	mu      sync.RWMutex
	ctx     *cue.Context
	schemas map[string]cue.Value
}

// NewRegistry creates a registry with the built-in schemas registered.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	builtins := map[string]struct {
		src string
		def string
	}{
		SchemaRequirements: {builtinRequirementsSchema, "#Requirements"},
		SchemaGalaxy:       {builtinGalaxySchema, "#Galaxy"},
		SchemaMeta:         {builtinMetaSchema, "#Meta"},
	}
	for name, b := range builtins {
		if err := r.Register(name, b.src, b.def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles a CUE schema and stores the named definition under
// the given name, replacing any previous registration.
func (r *Registry) Register(name, src, definition string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	val := r.ctx.CompileString(src)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		return fmt.Errorf("schema %s has no definition %s: %w", name, definition, err)
	}

	r.schemas[name] = def
	return nil
}

// Schemas returns the names of all registered schemas, sorted.
func (r *Registry) Schemas() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a decoded document against a named schema. It returns
// nil when the document conforms. Violations come back as a
// ValidationErrors value sorted by field path; any other error means
// validation itself could not run.
func (r *Registry) Validate(name string, data interface{}) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	dataVal := r.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	unified := schema.Unify(dataVal)
	// Concrete is what catches a missing required field: the unified
	// value is still valid then, just not concrete.
	err := unified.Validate(cue.Concrete(true), cue.All())
	if err == nil {
		return nil
	}

	verrs := make(ValidationErrors, 0, 4)
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		verrs = append(verrs, ValidationError{
			Schema:  name,
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	sort.Slice(verrs, func(i, j int) bool {
		if verrs[i].Path != verrs[j].Path {
			return verrs[i].Path < verrs[j].Path
		}
		return verrs[i].Message < verrs[j].Message
	})
	return verrs
}
