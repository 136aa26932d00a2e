package wordmerge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNilSource is returned when a template is prepared from nothing.
	ErrNilSource = errors.New("template source is nil")
	// ErrNilData is returned when an export is requested without data.
	ErrNilData = errors.New("export data is nil")
)

// ParseError describes a field instruction that is not a valid directive.
type ParseError struct {
	Instruction string
	Message     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in directive '%s': %s", e.Instruction, e.Message)
}

func NewParseError(instruction, message string) error {
	return &ParseError{Instruction: instruction, Message: message}
}

// EvaluationError reports one evaluator failing on one field. Evaluation
// errors are logged and counted, never returned from an export.
type EvaluationError struct {
	Field    string
	Function string
	Cause    error
}

func (e *EvaluationError) Error() string {
	var b strings.Builder
	b.WriteString("evaluation error for '")
	b.WriteString(e.Field)
	if e.Function != "" {
		b.WriteString(":" + e.Function)
	}
	b.WriteString("'")
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *EvaluationError) Unwrap() error { return e.Cause }

func NewEvaluationError(field, function string, cause error) error {
	return &EvaluationError{Field: field, Function: function, Cause: cause}
}

// DocumentError reports a failure reading, parsing or writing a package
// part. Path is the part name inside the archive, if known.
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	msg := "document error during " + e.Operation
	if e.Path != "" {
		msg += " of '" + e.Path + "'"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DocumentError) Unwrap() error { return e.Cause }

func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{Operation: operation, Path: path, Cause: cause}
}

// MultiError collects the failures of independent steps, such as the parts
// of one package.
type MultiError struct {
	errs []error
}

func NewMultiError() *MultiError {
	return &MultiError{}
}

// Add records err unless it is nil.
func (m *MultiError) Add(err error) {
	if err == nil {
		return
	}
	m.errs = append(m.errs, err)
}

func (m *MultiError) Len() int { return len(m.errs) }

// Err returns nil when nothing was added, the error itself when exactly one
// was, and m otherwise.
func (m *MultiError) Err() error {
	switch len(m.errs) {
	case 0:
		return nil
	case 1:
		return m.errs[0]
	}
	return m
}

func (m *MultiError) Error() string {
	switch len(m.errs) {
	case 0:
		return "no errors"
	case 1:
		return m.errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:", len(m.errs))
	for i, err := range m.errs {
		fmt.Fprintf(&b, "\n  [%d] %v", i+1, err)
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.errs
}

// ContextError annotates an error with the operation that failed and a few
// key/value pairs, printed in key order.
type ContextError struct {
	Operation string
	Context   map[string]any
	Cause     error
}

func (e *ContextError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%v", k, e.Context[k])
	}
	return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(pairs, ", "), e.Cause)
}

func (e *ContextError) Unwrap() error { return e.Cause }

// WithContext wraps err in a ContextError; a nil err stays nil.
func WithContext(err error, operation string, context map[string]any) error {
	if err == nil {
		return nil
	}
	return &ContextError{Operation: operation, Context: context, Cause: err}
}

// RecoverError turns the value of a recovered panic, typically from a
// caller-registered evaluator, into an error.
func RecoverError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic recovered: %w", err)
	}
	return fmt.Errorf("panic recovered: %v", r)
}

func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

func IsEvaluationError(err error) bool {
	var target *EvaluationError
	return errors.As(err, &target)
}

func IsDocumentError(err error) bool {
	var target *DocumentError
	return errors.As(err, &target)
}
