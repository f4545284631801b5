package kerr

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// enableDebugErrorPrinting makes errors include the frame that created them when printed
const enableDebugErrorPrinting bool = true
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	IndexAudit
	SortComputation
	InvariantViolation
	Snapshot
	TermSyntax
	DefinitionLoad
)

type KError interface {
	Error() string
	Code() ErrCode

	withStack([]byte) KError
	getStack() []byte
}

func FormatWithCode(e KError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			lines := strings.Split(stack, "\n")
			if len(lines) > 6 {
				stack = strings.TrimSpace(lines[6])
			}
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func New[E KError](err E) KError {
	return err.withStack(debug.Stack())
}

// IndexAuditError is returned by an index query when the audited rule is not among
// the candidates. Unmatched lists every indexing pair of the configuration that
// found no rule.
type IndexAuditError struct {
	Rule      string
	Unmatched []string
	stack     []byte
}

func (e *IndexAuditError) Error() string {
	return fmt.Sprintf("rule '%s' not selected by the index; unmatched indexing pairs:\n  %s",
		e.Rule, strings.Join(e.Unmatched, "\n  "))
}
func (e *IndexAuditError) Code() ErrCode    { return IndexAudit }
func (e *IndexAuditError) getStack() []byte { return e.stack }
func (e *IndexAuditError) withStack(stack []byte) KError {
	e.stack = stack
	return e
}

// SortComputationError means no production of Label accepts the argument sorts.
// It is raised as a panic: the term being built has no usable sort.
type SortComputationError struct {
	Label    string
	ArgSorts []string
	stack    []byte
}

func (e *SortComputationError) Error() string {
	return fmt.Sprintf("could not compute the sort of '%s' applied to (%s)", e.Label, strings.Join(e.ArgSorts, ", "))
}
func (e *SortComputationError) Code() ErrCode    { return SortComputation }
func (e *SortComputationError) getStack() []byte { return e.stack }
func (e *SortComputationError) withStack(stack []byte) KError {
	e.stack = stack
	return e
}

// InvariantError signals a malformed term or rule that compilation should have rejected.
type InvariantError struct {
	Message string
	stack   []byte
}

func (e *InvariantError) Error() string    { return "invariant violated: " + e.Message }
func (e *InvariantError) Code() ErrCode    { return InvariantViolation }
func (e *InvariantError) getStack() []byte { return e.stack }
func (e *InvariantError) withStack(stack []byte) KError {
	e.stack = stack
	return e
}

// Invariant panics with an *InvariantError
func Invariant(format string, args ...any) {
	panic(New(&InvariantError{Message: fmt.Sprintf(format, args...)}))
}

// SnapshotError is a persisted snapshot that does not agree with the live registry.
type SnapshotError struct {
	What  string
	Name  string
	Want  int
	Found int
	stack []byte
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("%s '%s' has ordinal %d in the snapshot but %d in the registry", e.What, e.Name, e.Want, e.Found)
}
func (e *SnapshotError) Code() ErrCode    { return Snapshot }
func (e *SnapshotError) getStack() []byte { return e.stack }
func (e *SnapshotError) withStack(stack []byte) KError {
	e.stack = stack
	return e
}

type TermSyntaxError struct {
	Input   string
	Offset  int
	Message string
	stack   []byte
}

func (e *TermSyntaxError) Error() string {
	return fmt.Sprintf("at offset %d: %s (in %q)", e.Offset, e.Message, e.Input)
}
func (e *TermSyntaxError) Code() ErrCode    { return TermSyntax }
func (e *TermSyntaxError) getStack() []byte { return e.stack }
func (e *TermSyntaxError) withStack(stack []byte) KError {
	e.stack = stack
	return e
}

type DefinitionLoadError struct {
	Where   string
	Message string
	stack   []byte
}

func (e *DefinitionLoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Where, e.Message)
}
func (e *DefinitionLoadError) Code() ErrCode    { return DefinitionLoad }
func (e *DefinitionLoadError) getStack() []byte { return e.stack }
func (e *DefinitionLoadError) withStack(stack []byte) KError {
	e.stack = stack
	return e
}
