package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory means the free map has no free page left.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrTranslationFault means a virtual address has no physical backing.
	ErrTranslationFault = errors.New("translation fault")

	// ErrInvalidPID means a process id is outside the PTPT.
	ErrInvalidPID = errors.New("invalid process id")

	// ErrProcessExists means the process already owns a page table.
	ErrProcessExists = errors.New("process already exists")
)

// An OOMError tells which allocation of which process ran out of memory.
type OOMError struct {
	PID  PID
	What string
}

func (e *OOMError) Error() string {
	return fmt.Sprintf("OOM: proc %d: %s", e.PID, e.What)
}

// Unwrap returns ErrOutOfMemory.
func (e *OOMError) Unwrap() error {
	return ErrOutOfMemory
}

// FaultReason tells why a translation faulted.
type FaultReason int

const (
	// FaultNoPageTable means the process has no address space.
	FaultNoPageTable FaultReason = iota

	// FaultUnmapped means the page-table entry of the virtual page is 0.
	FaultUnmapped

	// FaultOutOfRange means the virtual page number exceeds the page table.
	FaultOutOfRange
)

func (r FaultReason) String() string {
	switch r {
	case FaultNoPageTable:
		return "no page table"
	case FaultUnmapped:
		return "page not mapped"
	case FaultOutOfRange:
		return "page out of range"
	default:
		return "unknown"
	}
}

// A FaultError describes a failed translation.
type FaultError struct {
	PID    PID
	VAddr  uint64
	Reason FaultReason
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("Fault: proc %d: %d: %s", e.PID, e.VAddr, e.Reason)
}

// Unwrap returns ErrTranslationFault.
func (e *FaultError) Unwrap() error {
	return ErrTranslationFault
}
