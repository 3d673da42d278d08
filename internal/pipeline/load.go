package pipeline

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitriyb/ciyaml/internal/config"
	"github.com/dmitriyb/ciyaml/internal/template"
)

// Spec is a parsed pipeline document with the context applied. Keys keep
// their declaration order; nothing is checked against the schema until
// Decode or Enumerate.
type Spec struct {
	Entries []Entry
}

// Entry is one top-level key and its value.
type Entry struct {
	Key   string
	Value *yaml.Node
	Line  int
}

// Keys returns the top-level keys in declaration order.
func (s *Spec) Keys() []string {
	keys := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Load parses a pipeline document and substitutes every {{Key}} bound to a
// string in ctx. Placeholders naming absent or null variables are kept, so
// the Spec can be instantiated again with another context.
func Load(text []byte, ctx config.Context) (*Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return nil, fmt.Errorf("pipeline: parse: %w", err)
	}
	if doc.Kind == 0 {
		return nil, errors.New("pipeline: parse: empty document")
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("pipeline: parse: line %d: top level must be a mapping", root.Line)
	}

	spec := &Spec{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		spec.Entries = append(spec.Entries, Entry{Key: k.Value, Value: repairPlaceholders(v), Line: k.Line})
	}
	return spec.Instantiate(ctx), nil
}

// LoadFile reads path and calls Load.
func LoadFile(path string, ctx config.Context) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read %s: %w", path, err)
	}
	spec, err := Load(data, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Instantiate returns a copy of s with the placeholders bound in ctx
// substituted. s itself is not modified. Guards (the condition of an
// inline `if [ ... ] then ... fi` and IF fields) are left as written and
// resolved per variant by Enumerate.
func (s *Spec) Instantiate(ctx config.Context) *Spec {
	out := &Spec{Entries: make([]Entry, len(s.Entries))}
	for i, e := range s.Entries {
		out.Entries[i] = Entry{Key: e.Key, Value: expandNode(e.Value, ctx.Lookup), Line: e.Line}
	}
	return out
}

// expandNode deep-copies n, expanding placeholders in scalar values.
func expandNode(n *yaml.Node, lookup template.Lookup) *yaml.Node {
	if n == nil {
		return nil
	}
	cp := *n
	switch n.Kind {
	case yaml.ScalarNode:
		if v := expandScalar(n.Value, lookup); v != n.Value {
			cp.Value = v
			// An expanded placeholder is text, whatever it looks like.
			cp.Tag = "!!str"
		}
	case yaml.MappingNode, yaml.SequenceNode, yaml.DocumentNode:
		cp.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			// Mapping keys are never expanded, nor IF guards.
			if n.Kind == yaml.MappingNode && (i%2 == 0 || n.Content[i-1].Value == "IF") {
				cp.Content[i] = c
				continue
			}
			cp.Content[i] = expandNode(c, lookup)
		}
	}
	return &cp
}

// expandScalar expands s, leaving the condition of an inline guard intact.
func expandScalar(s string, lookup template.Lookup) string {
	m := inlineCondition.FindStringSubmatchIndex(s)
	if m == nil {
		return expandOnce(s, lookup)
	}
	cmdStart, cmdEnd := m[4], m[5]
	return s[:cmdStart] + expandOnce(s[cmdStart:cmdEnd], lookup) + s[cmdEnd:]
}

// expandOnce substitutes the placeholders lookup resolves unless the
// substituted text would itself read as a new placeholder. In that case s is
// returned unchanged and Enumerate substitutes it in a single pass, so a
// value is never expanded twice.
func expandOnce(s string, lookup template.Lookup) string {
	out := template.ExpandPartial(s, lookup)
	if out == s {
		return s
	}
	var kept []string
	for _, name := range template.Placeholders(s) {
		if _, ok := lookup(name); !ok {
			kept = append(kept, name)
		}
	}
	if !slices.Equal(template.Placeholders(out), kept) {
		return s
	}
	return out
}

// repairPlaceholders turns unquoted {{Name}} values back into scalars. YAML
// reads them as a flow mapping whose only key is the flow mapping {Name}.
func repairPlaceholders(n *yaml.Node) *yaml.Node {
	if name, ok := flowPlaceholder(n); ok {
		return &yaml.Node{
			Kind:   yaml.ScalarNode,
			Tag:    "!!str",
			Value:  "{{" + name + "}}",
			Line:   n.Line,
			Column: n.Column,
		}
	}
	for i, c := range n.Content {
		n.Content[i] = repairPlaceholders(c)
	}
	return n
}

func flowPlaceholder(n *yaml.Node) (string, bool) {
	if n.Kind != yaml.MappingNode || n.Style&yaml.FlowStyle == 0 || len(n.Content) != 2 {
		return "", false
	}
	inner, val := n.Content[0], n.Content[1]
	if !isEmptyNull(val) || inner.Kind != yaml.MappingNode || inner.Style&yaml.FlowStyle == 0 || len(inner.Content) != 2 {
		return "", false
	}
	key, innerVal := inner.Content[0], inner.Content[1]
	if key.Kind != yaml.ScalarNode || key.Style != 0 || !isEmptyNull(innerVal) {
		return "", false
	}
	if len(template.Placeholders("{{"+key.Value+"}}")) != 1 {
		return "", false
	}
	return key.Value, true
}

func isEmptyNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" && n.Value == ""
}
