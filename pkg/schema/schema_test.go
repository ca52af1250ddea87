package schema

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func decodeYAML(t *testing.T, src string) interface{} {
	t.Helper()
	var doc interface{}
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	return doc
}

func TestRegistryBuiltins(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	names := r.Schemas()
	want := []string{"galaxy", "meta", "requirements"}
	if len(names) != len(want) {
		t.Fatalf("Schemas() = %v, want %v", names, want)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Schemas()[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestValidateRequirements(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	doc := decodeYAML(t, `
roles:
  - name: geerlingguy.ntp
    version: "2.0.0"
collections:
  - community.general
  - name: community.docker
    version: ">=3.0.0"
    type: galaxy
`)
	if err := r.Validate(SchemaRequirements, doc); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRequirementsUnknownKey(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	doc := decodeYAML(t, `
roles: []
rolls: []
`)
	err = r.Validate(SchemaRequirements, doc)
	if err == nil {
		t.Fatal("Validate() error = nil, want unknown field error")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Validate() error type = %T, want ValidationErrors", err)
	}
}

func TestValidateRequirementsBadCollectionType(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	doc := decodeYAML(t, `
collections:
  - name: community.general
    type: tarball
`)
	if err := r.Validate(SchemaRequirements, doc); err == nil {
		t.Error("Validate() error = nil, want type constraint error")
	}
}

func TestValidateRequirementsMissingName(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	doc := decodeYAML(t, `
collections:
  - version: "1.0.0"
`)
	if err := r.Validate(SchemaRequirements, doc); err == nil {
		t.Error("Validate() error = nil, want missing name error")
	}
}

func TestValidateGalaxy(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{
			name: "valid manifest",
			src: `
namespace: community
name: docker
version: "3.4.0"
dependencies:
  community.general: ">=1.0.0"
`,
			wantErr: false,
		},
		{
			name: "missing namespace",
			src: `
name: docker
`,
			wantErr: true,
		},
		{
			name: "invalid namespace shape",
			src: `
namespace: 9community
name: docker
`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(SchemaGalaxy, decodeYAML(t, tt.src))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMeta(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	doc := decodeYAML(t, `
galaxy_info:
  role_name: ntp
  namespace: acme
  author: Acme
  min_ansible_version: "2.16"
  platforms:
    - name: Debian
      versions:
        - all
dependencies: []
`)
	if err := r.Validate(SchemaMeta, doc); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	bad := decodeYAML(t, `
galaxy_info:
  role_name: Bad-Name
`)
	if err := r.Validate(SchemaMeta, bad); err == nil {
		t.Error("Validate() error = nil, want role_name constraint error")
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := r.Validate("nope", map[string]interface{}{}); err == nil {
		t.Error("Validate() error = nil, want unknown schema error")
	}
}

func TestValidationErrorsSorted(t *testing.T) {
	errs := ValidationErrors{
		{Schema: "galaxy", Path: "namespace", Message: "missing"},
		{Schema: "galaxy", Path: "name", Message: "missing"},
	}
	if got := errs.Error(); got == "" {
		t.Error("Error() = empty string")
	}
}
