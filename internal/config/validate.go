package config

import (
	"errors"
	"fmt"

	"github.com/dmitriyb/ciyaml/internal/template"
)

// Validate checks that every context variable name is an identifier usable
// inside a {{Name}} placeholder or a ${Name} condition operand.
// It collects all errors and returns them via errors.Join.
func Validate(ctx Context) error {
	var errs []error
	for _, name := range ctx.Names() {
		if !template.ValidName(name) {
			errs = append(errs, fmt.Errorf("context.%s: not a valid variable name", name))
		}
	}
	return errors.Join(errs...)
}
