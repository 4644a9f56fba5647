package vm

import (
	"fmt"

	"github.com/zurustar/instrscript/pkg/compiler/token"
)

// FaultKind is the category of a runtime fault.
type FaultKind string

const (
	FaultDivisionByZero         FaultKind = "DIVISION_BY_ZERO"
	FaultArrayIndexOutOfBounds  FaultKind = "ARRAY_INDEX_OUT_OF_BOUNDS"
	FaultBridgeCall             FaultKind = "BRIDGE_CALL"
	FaultBudgetExceeded         FaultKind = "BUDGET_EXCEEDED"
	FaultRecursionDepthExceeded FaultKind = "RECURSION_DEPTH_EXCEEDED"
	FaultSyncReentry            FaultKind = "SYNC_REENTRY"

	// FaultInvalidOperation means the bound program asked for an operation
	// the operands do not support.
	FaultInvalidOperation FaultKind = "INVALID_OPERATION"
)

// Fault is a runtime error. It terminates only the instance that raised it.
// Offset is the byte offset of the statement or expression that faulted.
type Fault struct {
	Kind    FaultKind
	Message string
	Offset  int
	Line    int
	Column  int
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("[%s] %s at line %d, column %d", f.Kind, f.Message, f.Line, f.Column)
	}
	return fmt.Sprintf("[%s] %s", f.Kind, f.Message)
}

func newFault(kind FaultKind, pos token.Pos, format string, args ...any) *Fault {
	return &Fault{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Offset:  pos.Offset,
		Line:    pos.Line,
		Column:  pos.Column,
	}
}

func newIndexFault(pos token.Pos, name string, index int64, length int) *Fault {
	return newFault(FaultArrayIndexOutOfBounds, pos, "index %d out of range for %s (length %d)", index, name, length)
}
