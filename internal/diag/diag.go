// Package diag defines the structured diagnostic type returned by every
// compiler stage. Nothing in this package formats a diagnostic for a
// terminal; that is left to an external collaborator (the CLI, or any other
// consumer of Diagnostic values).
package diag

import "fmt"

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	default:
		return "unknown"
	}
}

// Position is a 1-based line/column location in a source file.
type Position struct {
	Line   int
	Column int
	Offset int // byte offset into the source, used for carets
}

// Span is a related range of source attached to a diagnostic, e.g. the
// opening token of an unmatched delimiter.
type Span struct {
	Label string
	Start Position
	End   Position
}

// Diagnostic is the structured error/warning value threaded through every
// stage of the compiler.
type Diagnostic struct {
	Severity Severity
	Code     string // letter + three digits, e.g. "E110"
	Message  string
	File     string
	Pos      Position
	EndPos   *Position
	Label    string
	Help     string
	Related  []Span
}

func (d *Diagnostic) Error() string {
	file := d.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d: %s[%s]: %s", file, d.Pos.Line, d.Pos.Column, d.Severity, d.Code, d.Message)
}

// New builds a plain error diagnostic at pos.
func New(code, message string, pos Position) *Diagnostic {
	return &Diagnostic{Severity: Error, Code: code, Message: message, Pos: pos}
}

// Newf builds a plain error diagnostic with a formatted message.
func Newf(code string, pos Position, format string, args ...any) *Diagnostic {
	return New(code, fmt.Sprintf(format, args...), pos)
}

// Warn builds a warning diagnostic at pos.
func Warn(code, message string, pos Position) *Diagnostic {
	return &Diagnostic{Severity: Warning, Code: code, Message: message, Pos: pos}
}

// WithLabel attaches a caret label and returns the receiver for chaining.
func (d *Diagnostic) WithLabel(label string) *Diagnostic {
	d.Label = label
	return d
}

// WithHelp attaches a help suggestion and returns the receiver for chaining.
func (d *Diagnostic) WithHelp(help string) *Diagnostic {
	d.Help = help
	return d
}

// WithFile stamps the file path and returns the receiver for chaining.
func (d *Diagnostic) WithFile(file string) *Diagnostic {
	d.File = file
	return d
}

// Bag accumulates warnings across a compilation. Warnings never abort; the
// first Diagnostic of Severity Error still aborts the pipeline immediately
// and is never placed in a Bag.
type Bag struct {
	items []*Diagnostic
}

func (b *Bag) Add(d *Diagnostic) { b.items = append(b.items, d) }

func (b *Bag) Items() []*Diagnostic { return b.items }

func (b *Bag) Len() int { return len(b.items) }
