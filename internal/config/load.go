package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadContext reads a variable context file. YAML is the native format;
// .json and .jsonc files are accepted too, with comments and trailing commas
// stripped before decoding. A null value marks an unavailable variable.
func LoadContext(path string) (Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	ctx, err := ParseContext(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return ctx, nil
}

// ParseContext decodes a context document. ext selects JSONC stripping when
// it is ".json" or ".jsonc"; anything else is decoded as YAML.
func ParseContext(data []byte, ext string) (Context, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	var ctx Context
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = Context{}
	}
	return ctx, nil
}

// ParseAssignment parses a KEY=VALUE command-line override. An empty value
// or "~" binds KEY to null.
func ParseAssignment(s string) (string, Value, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", Null, fmt.Errorf("config: invalid assignment %q (want KEY=VALUE)", s)
	}
	if value == "" || value == "~" {
		return key, Null, nil
	}
	return key, String(value), nil
}
