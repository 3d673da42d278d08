// Package pipeline loads CI job descriptions written in YAML and compiles
// them into one ordered instruction batch per interpreter and script variant.
package pipeline

import (
	"fmt"
	"strings"
)

// StageKind identifies a top-level pipeline key. Only these keys are valid.
type StageKind int

const (
	StageLanguage StageKind = iota
	StagePython
	StageVirtualenv
	StageInstall
	StageBeforeScript
	StageScript
	StageAfterScript
	StageDocumentation
)

var stageNames = [...]string{
	StageLanguage:      "language",
	StagePython:        "python",
	StageVirtualenv:    "virtualenv",
	StageInstall:       "install",
	StageBeforeScript:  "before_script",
	StageScript:        "script",
	StageAfterScript:   "after_script",
	StageDocumentation: "documentation",
}

// commandStages lists the stages that carry commands, in emission order.
var commandStages = []StageKind{
	StageVirtualenv,
	StageInstall,
	StageBeforeScript,
	StageScript,
	StageAfterScript,
	StageDocumentation,
}

// ParseStageKind maps a YAML key to its StageKind.
func ParseStageKind(s string) (StageKind, bool) {
	for k, name := range stageNames {
		if name == s {
			return StageKind(k), true
		}
	}
	return 0, false
}

// StageNames returns the whitelist of top-level keys in declaration order.
func StageNames() []string {
	return append([]string(nil), stageNames[:]...)
}

func (k StageKind) String() string {
	if k < 0 || int(k) >= len(stageNames) {
		return fmt.Sprintf("StageKind(%d)", int(k))
	}
	return stageNames[k]
}

// Sentinel is the marker echoed before the stage's commands, e.g.
// BEFORE_SCRIPT.
func (k StageKind) Sentinel() string {
	return strings.ToUpper(k.String())
}

func (k StageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *StageKind) UnmarshalText(text []byte) error {
	parsed, ok := ParseStageKind(string(text))
	if !ok {
		return fmt.Errorf("unknown stage %q", text)
	}
	*k = parsed
	return nil
}

// Pipeline is the decoded, schema-checked form of a Spec. Strings still
// hold {{Name}} templates; they are resolved per variant by Enumerate.
type Pipeline struct {
	Language     string
	Interpreters []Interpreter
	Stages       map[StageKind][]Step
	// Present lists the command stages declared in the document, in
	// emission order, including stages declared with no entries.
	Present []StageKind
}

// Interpreter is one entry of the python stage: a path template, optionally
// with a version and a distribution label.
type Interpreter struct {
	Path    string
	Version string
	Dist    string
	Line    int
}

// Step is one entry of a command stage.
type Step struct {
	Command   string
	Condition string
	// Name makes the step a variant of its own: a separate batch is
	// produced for every named script entry.
	Name      string
	Scheduler string
	// VirtualEnv is set for virtualenv entries written as {path: ...}.
	VirtualEnv string
	Line       int
}

// Instruction is one resolved command with the stage it belongs to.
type Instruction struct {
	Stage   StageKind `json:"stage" yaml:"stage"`
	Command string    `json:"command" yaml:"command"`
}

// Variant describes the combination a batch was produced for.
type Variant struct {
	Interpreter string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Dist        string `json:"dist,omitempty" yaml:"dist,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Scheduler   string `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
	// Bindings holds the variables the variant adds to the context.
	Bindings map[string]string `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// Batch is the fully resolved instruction sequence for one variant.
type Batch struct {
	Variant      Variant       `json:"variant" yaml:"variant"`
	Stages       []StageKind   `json:"stages" yaml:"stages"`
	Instructions []Instruction `json:"instructions" yaml:"instructions"`
}

// Commands returns the commands of one stage in order.
func (b *Batch) Commands(stage StageKind) []string {
	var cmds []string
	for _, inst := range b.Instructions {
		if inst.Stage == stage {
			cmds = append(cmds, inst.Command)
		}
	}
	return cmds
}
