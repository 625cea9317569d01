package vm

import (
	"fmt"

	"github.com/corelang/pyaot/errs"
)

var (
	errStackUnderflow = fmt.Errorf("pop from empty stack: %w", errs.ErrStackUnderflow)
	errStackOverflow  = fmt.Errorf("stack exceeds declared stacksize: %w", errs.ErrStackOverflow)
)

func typeError(msg string) error {
	return fmt.Errorf("%s: %w", msg, errs.ErrTypeError)
}

func nameError(name string) error {
	return fmt.Errorf("name %q is not defined: %w", name, errs.ErrNameError)
}

func zeroDivisionError() error {
	return fmt.Errorf("division by zero: %w", errs.ErrZeroDivision)
}

func indexError(msg string) error {
	return fmt.Errorf("%s: %w", msg, errs.ErrIndexError)
}

func attributeError(attr string) error {
	return fmt.Errorf("attribute %q not found: %w", attr, errs.ErrAttributeError)
}

func runtimeError(msg string) error {
	return fmt.Errorf("%s: %w", msg, errs.ErrRuntimeError)
}
