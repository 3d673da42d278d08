package pipeline

import (
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dmitriyb/ciyaml/internal/config"
)

// scalarValues flattens every scalar value of the spec in document order.
func scalarValues(n *yaml.Node) []string {
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}
	}
	var out []string
	for i, c := range n.Content {
		if n.Kind == yaml.MappingNode && i%2 == 0 {
			continue
		}
		out = append(out, scalarValues(c)...)
	}
	return out
}

func TestLoadKeepsKeyOrder(t *testing.T) {
	spec, err := Load([]byte(exampleYAML), exampleContext())
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}
	want := []string{"language", "python", "before_script", "after_script", "script"}
	if got := spec.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
}

// TestLoadUnquotedPlaceholder verifies that an unquoted {{Name}} list item,
// which YAML reads as a nested flow mapping, is loaded as a template string.
func TestLoadUnquotedPlaceholder(t *testing.T) {
	spec, err := Load([]byte("python:\n  - {{Python35}}\n  - {{ Python27 }}\n"), config.Context{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := scalarValues(spec.Entries[0].Value)
	want := []string{"{{Python35}}", "{{Python27}}"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("python entries = %v, want %v", got, want)
	}
}

func TestLoadSubstitutesBoundVariables(t *testing.T) {
	ctx := config.Context{
		"PLATFORM": config.String("win"),
		"Python35": config.String("/opt/python35"),
		"Python27": config.Null,
	}
	text := "python:\n  - {{Python35}}\n  - {{Python27}}\nscript:\n  - ls {{PLATFORM}} {{Later}}\n"
	spec, err := Load([]byte(text), ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := scalarValues(spec.Entries[0].Value); !reflect.DeepEqual(got, []string{"/opt/python35", "{{Python27}}"}) {
		t.Errorf("python entries = %v", got)
	}
	if got := scalarValues(spec.Entries[1].Value); !reflect.DeepEqual(got, []string{"ls win {{Later}}"}) {
		t.Errorf("script entries = %v", got)
	}
}

// TestInstantiateTwoPhase verifies that a spec loaded with a partial context
// can be completed later without changing the original.
func TestInstantiateTwoPhase(t *testing.T) {
	spec, err := Load([]byte("script:\n  - echo {{project_name}} {{PLATFORM}}\n"), config.FromStrings(map[string]string{"project_name": "pyq"}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	win := spec.Instantiate(config.FromStrings(map[string]string{"PLATFORM": "win"}))
	linux := spec.Instantiate(config.FromStrings(map[string]string{"PLATFORM": "linux"}))

	if got := scalarValues(win.Entries[0].Value)[0]; got != "echo pyq win" {
		t.Errorf("win = %q", got)
	}
	if got := scalarValues(linux.Entries[0].Value)[0]; got != "echo pyq linux" {
		t.Errorf("linux = %q", got)
	}
	if got := scalarValues(spec.Entries[0].Value)[0]; got != "echo pyq {{PLATFORM}}" {
		t.Errorf("original modified: %q", got)
	}
}

// TestLoadLeavesGuardsForEnumerate verifies that guard conditions keep
// their placeholders while the guarded command is expanded.
func TestLoadLeavesGuardsForEnumerate(t *testing.T) {
	ctx := config.FromStrings(map[string]string{"PLATFORM": "win"})
	text := "script:\n" +
		"  - if [ {{PLATFORM}} == \"win\" ] then dir {{PLATFORM}} fi\n" +
		"  - { CMD: \"echo {{PLATFORM}}\", IF: \"{{PLATFORM}} == 'win'\" }\n"
	spec, err := Load([]byte(text), ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{
		`if [ {{PLATFORM}} == "win" ] then dir win fi`,
		"echo win",
		"{{PLATFORM}} == 'win'",
	}
	if got := scalarValues(spec.Entries[0].Value); !reflect.DeepEqual(got, want) {
		t.Errorf("script entries = %q, want %q", got, want)
	}
}

// TestLoadDefersValuesThatFormPlaceholders verifies that a substitution
// whose result would read as a new placeholder is left to Enumerate.
func TestLoadDefersValuesThatFormPlaceholders(t *testing.T) {
	ctx := config.FromStrings(map[string]string{"A": "{{B}}", "B": "secret", "P": "win"})
	spec, err := Load([]byte("script:\n  - echo {{A}} {{P}}\n  - echo {{P}}\n"), ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"echo {{A}} {{P}}", "echo win"}
	if got := scalarValues(spec.Entries[0].Value); !reflect.DeepEqual(got, want) {
		t.Errorf("script entries = %q, want %q", got, want)
	}
}

func TestLoadDoesNotExpandKeys(t *testing.T) {
	spec, err := Load([]byte("script:\n  - {\"{{K}}\": \"{{K}}\"}\n"), config.FromStrings(map[string]string{"K": "x"}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	item := spec.Entries[0].Value.Content[0]
	if item.Content[0].Value != "{{K}}" {
		t.Errorf("key = %q, want it unexpanded", item.Content[0].Value)
	}
	if item.Content[1].Value != "x" {
		t.Errorf("value = %q, want %q", item.Content[1].Value, "x")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr string
	}{
		{"empty", "", "empty document"},
		{"sequence at top", "- ls\n- ls\n", "top level must be a mapping"},
		{"malformed", "script: [ls\n", "pipeline: parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.text), config.Context{})
			if err == nil {
				t.Fatalf("Load returned nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	spec, err := LoadFile("testdata/jenkins.yml", exampleContext())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(spec.Entries) == 0 {
		t.Fatal("LoadFile returned no entries")
	}

	_, err = LoadFile("testdata/nonexistent.yml", nil)
	if err == nil || !strings.Contains(err.Error(), "pipeline: read") {
		t.Errorf("error = %v, want it to contain %q", err, "pipeline: read")
	}
}
