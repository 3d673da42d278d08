package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// inlineCondition matches the shell-style guard `if [ expr ] then cmd fi`.
var inlineCondition = regexp.MustCompile(`(?s)^\s*if\s*\[\s*(.*?)\s*\]\s*then\s+(.*?)\s*;?\s*fi\s*$`)

var (
	stepKeys        = []string{"CMD", "NAME", "SCHEDULER", "IF"}
	interpreterKeys = []string{"PATH", "VERSION", "DIST"}
	virtualenvKeys  = []string{"path"}
)

// Validate checks that every top-level key belongs to the whitelist and
// that each stage value has the expected shape. All problems are reported
// via errors.Join; each one is a *SchemaError.
func Validate(spec *Spec) error {
	_, err := Decode(spec)
	return err
}

// Decode checks spec against the schema and converts it to a Pipeline.
func Decode(spec *Spec) (*Pipeline, error) {
	var errs []error
	p := &Pipeline{Stages: map[StageKind][]Step{}}
	seen := map[StageKind]bool{}

	for _, e := range spec.Entries {
		kind, ok := ParseStageKind(e.Key)
		if !ok {
			errs = append(errs, &SchemaError{
				Path: "pipeline",
				Key:  e.Key,
				Msg:  fmt.Sprintf("line %d, expected one of: %s", e.Line, strings.Join(StageNames(), ", ")),
			})
			continue
		}
		if seen[kind] {
			errs = append(errs, &SchemaError{Path: e.Key, Msg: fmt.Sprintf("line %d: duplicate stage", e.Line)})
			continue
		}
		seen[kind] = true

		switch kind {
		case StageLanguage:
			if e.Value.Kind != yaml.ScalarNode {
				errs = append(errs, &SchemaError{Path: e.Key, Msg: "must be a scalar"})
				continue
			}
			p.Language = e.Value.Value
		case StagePython:
			interps, err := decodeInterpreters(e.Key, e.Value)
			errs = append(errs, err...)
			p.Interpreters = interps
		default:
			steps, err := decodeSteps(kind, e.Value)
			errs = append(errs, err...)
			p.Stages[kind] = steps
		}
	}

	for _, kind := range commandStages {
		if seen[kind] {
			p.Present = append(p.Present, kind)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return p, nil
}

// items returns the entries of a stage value: the elements of a sequence,
// the value itself for a non-null scalar or mapping, nothing for null.
func items(n *yaml.Node) []*yaml.Node {
	switch {
	case n.Kind == yaml.SequenceNode:
		return n.Content
	case n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null":
		return nil
	default:
		return []*yaml.Node{n}
	}
}

func decodeInterpreters(stage string, n *yaml.Node) ([]Interpreter, []error) {
	var out []Interpreter
	var errs []error
	for i, item := range items(n) {
		path := fmt.Sprintf("%s[%d]", stage, i)
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, Interpreter{Path: item.Value, Line: item.Line})
		case yaml.MappingNode:
			fields, err := fieldsOf(path, item, interpreterKeys)
			errs = append(errs, err...)
			if fields["PATH"] == "" {
				errs = append(errs, &SchemaError{Path: path, Msg: "PATH is required"})
				continue
			}
			out = append(out, Interpreter{
				Path:    fields["PATH"],
				Version: fields["VERSION"],
				Dist:    fields["DIST"],
				Line:    item.Line,
			})
		default:
			errs = append(errs, &SchemaError{Path: path, Msg: "must be a path or a {PATH, VERSION, DIST} mapping"})
		}
	}
	return out, errs
}

func decodeSteps(kind StageKind, n *yaml.Node) ([]Step, []error) {
	var out []Step
	var errs []error
	for i, item := range items(n) {
		path := fmt.Sprintf("%s[%d]", kind, i)
		switch {
		case item.Kind == yaml.ScalarNode:
			out = append(out, scalarStep(item.Value, item.Line))
		case item.Kind == yaml.MappingNode && kind == StageVirtualenv:
			fields, err := fieldsOf(path, item, virtualenvKeys)
			errs = append(errs, err...)
			if fields["path"] == "" {
				errs = append(errs, &SchemaError{Path: path, Msg: "path is required"})
				continue
			}
			out = append(out, Step{VirtualEnv: fields["path"], Line: item.Line})
		case item.Kind == yaml.MappingNode:
			fields, err := fieldsOf(path, item, stepKeys)
			errs = append(errs, err...)
			if fields["CMD"] == "" {
				errs = append(errs, &SchemaError{Path: path, Msg: "CMD is required"})
				continue
			}
			step := scalarStep(fields["CMD"], item.Line)
			if cond := fields["IF"]; cond != "" {
				if step.Condition != "" {
					step.Condition = "(" + cond + ") and (" + step.Condition + ")"
				} else {
					step.Condition = cond
				}
			}
			step.Name = fields["NAME"]
			step.Scheduler = fields["SCHEDULER"]
			if step.Name == "" && step.Scheduler != "" {
				errs = append(errs, &SchemaError{Path: path, Msg: "SCHEDULER requires NAME"})
			}
			if step.Name != "" && kind != StageScript {
				errs = append(errs, &SchemaError{Path: path, Msg: "NAME is only valid in script"})
			}
			out = append(out, step)
		default:
			errs = append(errs, &SchemaError{Path: path, Msg: "must be a command or a {CMD, NAME, SCHEDULER, IF} mapping"})
		}
	}
	return out, errs
}

func scalarStep(s string, line int) Step {
	if m := inlineCondition.FindStringSubmatch(s); m != nil {
		return Step{Condition: m[1], Command: m[2], Line: line}
	}
	return Step{Command: s, Line: line}
}

// fieldsOf reads a mapping of scalar values, reporting keys outside allowed.
func fieldsOf(path string, n *yaml.Node, allowed []string) (map[string]string, []error) {
	fields := map[string]string{}
	var errs []error
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if !slices.Contains(allowed, k.Value) {
			errs = append(errs, &SchemaError{Path: path, Key: k.Value, Msg: "expected one of: " + strings.Join(allowed, ", ")})
			continue
		}
		if v.Kind != yaml.ScalarNode {
			errs = append(errs, &SchemaError{Path: path + "." + k.Value, Msg: "must be a scalar"})
			continue
		}
		fields[k.Value] = v.Value
	}
	return fields, errs
}
