// Package diag defines the error taxonomy shared by every compile-time
// package (types, value, callgen, ir) and the runtime error kinds the VM and
// native backend can surface. Compile-time errors are attached to a
// Diagnostic and reported through a Sink; they never panic, so that a single
// bad expression cannot crash the rest of compilation (spec.md §7).
package diag

import (
	"errors"
	"fmt"
)

// Kind identifies one error-taxonomy entry from spec.md §7.
type Kind string

const (
	// Name resolution
	KindTypeNotFound     Kind = "type-not-found"
	KindPropertyNotFound Kind = "property-not-found"
	KindExportNotFound   Kind = "export-not-found"
	KindMethodNotFound   Kind = "method-not-found"

	// Overload ambiguity
	KindAmbiguousMethod      Kind = "ambiguous-method"
	KindAmbiguousConstructor Kind = "ambiguous-constructor"
	KindAmbiguousCast        Kind = "ambiguous-cast"
	KindAmbiguousExport      Kind = "ambiguous-export"

	// Type violation
	KindNotConvertible        Kind = "not-convertible"
	KindNotAssignable         Kind = "not-assignable"
	KindTypeUsedAsValue       Kind = "type-used-as-value"
	KindModuleUsedAsValue     Kind = "module-used-as-value"
	KindModuleDataUsedAsValue Kind = "module-data-used-as-value"
	KindNotWritable           Kind = "not-writable"
	KindNoReadAccess          Kind = "no-read-access"
	KindNoWriteAccess         Kind = "no-write-access"
	KindStaticPropOnInstance  Kind = "static-property-on-instance"
	KindInstancePropOnType    Kind = "instance-property-on-type"
	KindStaticMethodOnInst    Kind = "static-method-on-instance"
	KindInstanceMethodOnType  Kind = "instance-method-on-type"

	// Access control
	KindIsPrivate  Kind = "is-private"
	KindNotTrusted Kind = "not-trusted"

	// Runtime
	KindStackOverflow Kind = "stack-overflow"
	KindInvalidOpcode Kind = "invalid-opcode"
	KindNullCallback  Kind = "null-callback"
	KindInvalidModule Kind = "invalid-module"
)

// Diagnostic is a single compile-time error, carrying the source span it was
// raised against (module/line/column, per spec.md §4.5's Span).
type Diagnostic struct {
	Kind    Kind
	Message string
	Module  string
	Line    int
	Column  int
}

func (d *Diagnostic) Error() string {
	if d.Module == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Module, d.Line, d.Column, d.Kind, d.Message)
}

// Is allows errors.Is(err, diag.KindX) style checks by comparing Kind.
func (d *Diagnostic) Is(target error) bool {
	var other *Diagnostic
	if errors.As(target, &other) {
		return d.Kind == other.Kind
	}
	return false
}

// New builds a Diagnostic for kind at span, formatting Message like fmt.Sprintf.
func New(kind Kind, module string, line, column int, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Module:  module,
		Line:    line,
		Column:  column,
	}
}

// Sentinel runtime errors, checked with errors.Is by VM and codegen callers.
var (
	ErrStackOverflow = errors.New(string(KindStackOverflow))
	ErrInvalidOpcode = errors.New(string(KindInvalidOpcode))
	ErrNullCallback  = errors.New(string(KindNullCallback))
	ErrInvalidModule = errors.New(string(KindInvalidModule))
)

// Sink collects diagnostics during a compilation unit instead of aborting it.
// Mirrors the teacher's preference for explicit Result-shaped returns over
// exceptions (Design Notes: "Exceptions for control flow").
type Sink struct {
	diagnostics []*Diagnostic
}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Report(d *Diagnostic) { s.diagnostics = append(s.diagnostics, d) }

func (s *Sink) HasErrors() bool { return len(s.diagnostics) > 0 }

func (s *Sink) Diagnostics() []*Diagnostic { return s.diagnostics }

func (s *Sink) Error() string {
	if len(s.diagnostics) == 0 {
		return ""
	}
	msg := s.diagnostics[0].Error()
	if len(s.diagnostics) > 1 {
		msg = fmt.Sprintf("%s (+%d more)", msg, len(s.diagnostics)-1)
	}
	return msg
}
