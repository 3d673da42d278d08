package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Value is a context variable: either a string or null. Null marks a
// variable that is known but unavailable on this machine, such as an
// interpreter that is not installed.
type Value struct {
	s     string
	valid bool
}

// String returns a non-null Value holding s.
func String(s string) Value { return Value{s: s, valid: true} }

// Null is the unavailable value.
var Null = Value{}

// Get returns the string and whether the value is non-null.
func (v Value) Get() (string, bool) { return v.s, v.valid }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return !v.valid }

func (v Value) String() string {
	if !v.valid {
		return "null"
	}
	return v.s
}

// UnmarshalYAML maps YAML null (~, null, empty) to Null and any other
// scalar to its string form.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: context values must be scalars", node.Line)
	}
	if node.ShortTag() == "!!null" {
		*v = Null
		return nil
	}
	*v = String(node.Value)
	return nil
}

// MarshalYAML writes null for Null and the plain string otherwise.
func (v Value) MarshalYAML() (any, error) {
	if !v.valid {
		return nil, nil
	}
	return v.s, nil
}

// Context maps variable names to values. It is treated as immutable once a
// compilation starts; use Merge to derive new contexts.
type Context map[string]Value

// Lookup returns the string bound to name. ok is false when name is absent
// or null.
func (c Context) Lookup(name string) (string, bool) {
	v, ok := c[name]
	if !ok {
		return "", false
	}
	return v.Get()
}

// Has reports whether name is bound, null or not.
func (c Context) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Merge returns a new Context holding c overlaid with each of others in order.
func (c Context) Merge(others ...Context) Context {
	n := len(c)
	for _, o := range others {
		n += len(o)
	}
	out := make(Context, n)
	for k, v := range c {
		out[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// Names returns the sorted variable names.
func (c Context) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FromStrings builds a Context where every entry is non-null.
func FromStrings(m map[string]string) Context {
	c := make(Context, len(m))
	for k, v := range m {
		c[k] = String(v)
	}
	return c
}
