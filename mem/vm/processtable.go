package vm

import "log"

// A ProcessTable is the page-table-pointer table (PTPT). It maps a process to
// the physical page that holds the process's page table.
type ProcessTable interface {
	// PageTableOf returns the page-table page of pid, or NoPage.
	PageTableOf(pid PID) PageNum

	// SetPageTable registers page as the page table of pid.
	SetPageTable(pid PID, page PageNum)

	// Clear unregisters the page table of pid.
	Clear(pid PID)

	// NumEntries returns the number of process ids the table can hold.
	NumEntries() int
}

// NewProcessTable creates a PTPT with one entry per process id in
// [0, numEntries).
func NewProcessTable(numEntries uint64) ProcessTable {
	return &ptpt{
		entries: make([]PageNum, numEntries),
	}
}

type ptpt struct {
	entries []PageNum
}

func (t *ptpt) PageTableOf(pid PID) PageNum {
	t.pidMustBeInRange(pid)

	return t.entries[pid]
}

func (t *ptpt) SetPageTable(pid PID, page PageNum) {
	t.pidMustBeInRange(pid)

	t.entries[pid] = page
}

func (t *ptpt) Clear(pid PID) {
	t.pidMustBeInRange(pid)

	t.entries[pid] = NoPage
}

func (t *ptpt) NumEntries() int {
	return len(t.entries)
}

func (t *ptpt) pidMustBeInRange(pid PID) {
	if int(pid) >= len(t.entries) {
		log.Panicf("process %d is beyond the PTPT of %d entries",
			pid, len(t.entries))
	}
}
