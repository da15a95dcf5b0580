// Package util provides logging and the common error taxonomy.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors for outcome classification. Typed errors below unwrap to
// these so callers can use errors.Is without knowing the concrete type.
var (
	ErrBadFormat        = errors.New("unrecognized or malformed data file")
	ErrBadShape         = errors.New("inconsistent record shape")
	ErrValidation       = errors.New("record validation failed")
	ErrTemplateNotFound = errors.New("template not found")
	ErrRender           = errors.New("template rendering failed")
	ErrConnect          = errors.New("device connection failed")
	ErrCommand          = errors.New("device rejected command")
)

// FormatError indicates the data file could not be recognized or parsed.
// Fatal: no devices are processed when the environment cannot be built.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("data file %s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrBadFormat
}

// ShapeError indicates a record whose key set disagrees with the rest of
// the file (CSV rows with a different column count than the header).
type ShapeError struct {
	Path   string
	Row    int // 1-based data row, not counting the header
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("data file %s: row %d: %s", e.Path, e.Row, e.Reason)
}

func (e *ShapeError) Unwrap() error {
	return ErrBadShape
}

// ValidationError indicates a record missing a required field.
type ValidationError struct {
	Position int // 1-based record position in the data file
	Field    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d: missing required field %q", e.Position, e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TemplateNotFoundError indicates the device's template file is absent
// from the template root.
type TemplateNotFoundError struct {
	Name string
	Root string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found in %s", e.Name, e.Root)
}

func (e *TemplateNotFoundError) Unwrap() error {
	return ErrTemplateNotFound
}

// RenderError wraps a templating engine failure for one device.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error {
	return ErrRender
}

// ConnectError wraps a connection or authentication failure for one device.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return ErrConnect
}

// CommandError wraps a command the device rejected mid-session.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return ErrCommand
}
