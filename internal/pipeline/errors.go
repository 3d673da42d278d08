package pipeline

import (
	"fmt"

	"github.com/dmitriyb/ciyaml/internal/condition"
)

// SchemaError reports a document that does not follow the pipeline schema.
// Key is set when the problem is an unexpected key.
type SchemaError struct {
	Path string
	Key  string
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: unexpected key '%s' (%s)", e.Path, e.Key, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// UnresolvedVariableError reports a placeholder or condition operand with
// no binding, and the stage it was found in.
type UnresolvedVariableError = condition.UnresolvedVariableError

// ConditionEvaluationError reports a malformed step condition.
type ConditionEvaluationError = condition.EvaluationError
