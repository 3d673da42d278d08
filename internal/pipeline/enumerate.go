package pipeline

import (
	"errors"
	"iter"
	"strings"

	"github.com/dmitriyb/ciyaml/internal/condition"
	"github.com/dmitriyb/ciyaml/internal/config"
	"github.com/dmitriyb/ciyaml/internal/template"
)

// Variables bound for every variant on top of the context.
const (
	VarPython     = "PYTHON"
	VarPyInt      = "PYINT"
	VarVersion    = "VERSION"
	VarDist       = "DIST"
	VarName       = "NAME"
	VarScheduler  = "SCHEDULER"
	VarVirtualEnv = "VIRTUAL_ENV"
)

// Enumerate compiles spec into one Batch per variant. Variants are the
// cross-product of the python entries that resolve to a non-empty path and
// the named script entries.
//
// The sequence is lazy and restartable: every iteration decodes spec again
// and produces batches one at a time. A schema error is yielded before any
// batch. Any error ends the sequence; a batch is only yielded once fully
// resolved.
func Enumerate(spec *Spec, vars config.Context) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		p, err := Decode(spec)
		if err != nil {
			yield(nil, err)
			return
		}
		interps := p.Interpreters
		if len(interps) == 0 {
			// No interpreter dimension: a single variant with no binding.
			interps = []Interpreter{{}}
		}
		named := namedScripts(p)

		for _, interp := range interps {
			binding, skip, err := bindInterpreter(interp, vars, len(p.Interpreters) > 0)
			if err != nil {
				yield(nil, err)
				return
			}
			if skip {
				continue
			}
			for _, script := range named {
				b, err := compileVariant(p, vars, binding, script)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(b, nil) {
					return
				}
			}
		}
	}
}

// Collect drains seq and returns all batches, or the first error.
func Collect(seq iter.Seq2[*Batch, error]) ([]*Batch, error) {
	var out []*Batch
	for b, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// namedScripts returns the named script entries, or a single nil when there
// are none so the script dimension always has one element.
func namedScripts(p *Pipeline) []*Step {
	var named []*Step
	steps := p.Stages[StageScript]
	for i := range steps {
		if steps[i].Name != "" {
			named = append(named, &steps[i])
		}
	}
	if len(named) == 0 {
		return []*Step{nil}
	}
	return named
}

// bindInterpreter resolves an interpreter entry into variant variables.
// skip is true when the path names a null variable or expands to nothing,
// which means the interpreter is not installed.
func bindInterpreter(interp Interpreter, vars config.Context, declared bool) (binding Variant, skip bool, err error) {
	binding.Bindings = map[string]string{}
	if !declared {
		return binding, false, nil
	}
	for _, name := range template.Placeholders(interp.Path) {
		if v, bound := vars[name]; bound && v.IsNull() {
			return binding, true, nil
		}
	}
	path, err := expand(StagePython, interp.Path, vars.Lookup)
	if err != nil {
		return binding, false, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return binding, true, nil
	}
	version, err := expand(StagePython, interp.Version, vars.Lookup)
	if err != nil {
		return binding, false, err
	}
	dist, err := expand(StagePython, interp.Dist, vars.Lookup)
	if err != nil {
		return binding, false, err
	}

	binding.Interpreter = path
	binding.Version = version
	binding.Dist = dist
	binding.Bindings[VarPython] = path
	binding.Bindings[VarPyInt] = interpreterExecutable(path)
	if version != "" {
		binding.Bindings[VarVersion] = version
	}
	if dist != "" {
		binding.Bindings[VarDist] = dist
	}
	return binding, false, nil
}

// interpreterExecutable joins the interpreter directory with the executable
// name, following the path's own separator style.
func interpreterExecutable(dir string) string {
	if strings.Contains(dir, `\`) {
		return strings.TrimRight(dir, `\`) + `\python.exe`
	}
	return strings.TrimRight(dir, "/") + "/python"
}

func compileVariant(p *Pipeline, vars config.Context, base Variant, script *Step) (*Batch, error) {
	variant := base
	variant.Bindings = make(map[string]string, len(base.Bindings)+2)
	for k, v := range base.Bindings {
		variant.Bindings[k] = v
	}
	if script != nil {
		variant.Name = script.Name
		variant.Scheduler = script.Scheduler
		variant.Bindings[VarName] = script.Name
		if script.Scheduler != "" {
			variant.Bindings[VarScheduler] = script.Scheduler
		}
	}

	merged := vars.Merge(config.FromStrings(variant.Bindings))
	b := &Batch{Variant: variant, Stages: p.Present}
	for _, stage := range p.Present {
		for i := range p.Stages[stage] {
			step := &p.Stages[stage][i]
			if step.Name != "" && step != script {
				continue
			}
			ok, err := evaluate(stage, step.Condition, merged)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			cmd, env, err := stepCommand(stage, step, merged)
			if err != nil {
				return nil, err
			}
			b.Instructions = append(b.Instructions, Instruction{Stage: stage, Command: cmd})
			if env != "" {
				variant.Bindings[VarVirtualEnv] = env
				merged = merged.Merge(config.Context{VarVirtualEnv: config.String(env)})
			}
		}
	}
	b.Variant = variant
	return b, nil
}

// stepCommand expands the command of a step. A virtualenv entry written as
// {path: ...} becomes the command that creates it, and env returns its
// expanded path.
func stepCommand(stage StageKind, step *Step, vars config.Context) (cmd, env string, err error) {
	if step.VirtualEnv == "" {
		cmd, err = expand(stage, step.Command, vars.Lookup)
		return cmd, "", err
	}
	env, err = expand(stage, step.VirtualEnv, vars.Lookup)
	if err != nil {
		return "", "", err
	}
	pyint, ok := vars.Lookup(VarPyInt)
	if !ok {
		pyint = "python"
	}
	return `"` + pyint + `" -m venv "` + env + `"`, env, nil
}

func expand(stage StageKind, s string, lookup template.Lookup) (string, error) {
	out, err := template.Expand(s, lookup)
	var unresolved *template.UnresolvedError
	if errors.As(err, &unresolved) {
		return "", &UnresolvedVariableError{Stage: stage.String(), Name: unresolved.Name}
	}
	return out, err
}

func evaluate(stage StageKind, expr string, vars config.Context) (bool, error) {
	ok, err := condition.Evaluate(expr, func(name string) (string, bool, bool) {
		v, bound := vars[name]
		s, ok := v.Get()
		return s, ok, bound
	})
	var unresolved *UnresolvedVariableError
	if errors.As(err, &unresolved) {
		return false, &UnresolvedVariableError{Stage: stage.String(), Name: unresolved.Name}
	}
	return ok, err
}
