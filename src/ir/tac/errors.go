package tac

import (
	"errors"
	"fmt"

	"decafc/src/backend/regfile"
)

// Failures that abort generation of a compilation unit. Returned errors wrap one of
// these and carry the offending name and scope.
var (
	// ErrUndeclared reports a name that resolves to nothing in the applicable scope chain or field table.
	ErrUndeclared = errors.New("undeclared symbol")
	// ErrPoolExhausted reports an expression needing more live temporaries than the pool holds.
	ErrPoolExhausted = regfile.ErrExhausted
	// ErrMalformed reports an internal shape violation: a wrong operand count, an
	// unparseable index, a second destination patch or an unhandled node kind.
	ErrMalformed = errors.New("malformed input")
)

// undeclared wraps ErrUndeclared with what could not be resolved in scope.
func undeclared(what, scope string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s in scope %s", ErrUndeclared, what, scope)
	}
	return fmt.Errorf("%w: %s in scope %s: %w", ErrUndeclared, what, scope, err)
}

// malformed wraps ErrMalformed with a formatted description.
func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
