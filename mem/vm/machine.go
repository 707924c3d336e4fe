// Package vm models a paged virtual memory machine: a free-page allocator, a
// page-table-pointer table, single-level page tables and address translation.
package vm

import (
	"fmt"
	"sync"

	"github.com/sarchlab/ptsim/mem"
	"github.com/sarchlab/ptsim/sim"
)

var (
	// HookPosPageAlloc triggers after a page is allocated. Item is PageEvent.
	HookPosPageAlloc = &sim.HookPos{Name: "PageAlloc"}

	// HookPosPageFree triggers after a page is freed. Item is PageEvent.
	HookPosPageFree = &sim.HookPos{Name: "PageFree"}

	// HookPosProcessCreate triggers after a process gets all its pages. Item
	// is ProcessEvent.
	HookPosProcessCreate = &sim.HookPos{Name: "ProcessCreate"}

	// HookPosProcessDestroy triggers after a process loses all its pages.
	// Item is ProcessEvent.
	HookPosProcessDestroy = &sim.HookPos{Name: "ProcessDestroy"}

	// HookPosStore triggers after a byte is stored. Item is AccessEvent.
	HookPosStore = &sim.HookPos{Name: "Store"}

	// HookPosLoad triggers after a byte is loaded. Item is AccessEvent.
	HookPosLoad = &sim.HookPos{Name: "Load"}

	// HookPosFault triggers when a translation fails. Item is *FaultError.
	HookPosFault = &sim.HookPos{Name: "Fault"}

	// HookPosOOM triggers when an allocation fails. Item is *OOMError.
	HookPosOOM = &sim.HookPos{Name: "OOM"}
)

// PageRole tells what a page is used for. The role is never stored in
// memory; it is only reported to hooks.
type PageRole int

const (
	// RolePageTable is a page holding a page table.
	RolePageTable PageRole = iota

	// RoleData is a page backing a virtual page.
	RoleData
)

func (r PageRole) String() string {
	if r == RolePageTable {
		return "page table"
	}

	return "data page"
}

// PageEvent is the hook item for page allocations and frees.
type PageEvent struct {
	PID  PID
	Page PageNum
	Role PageRole
	VPN  uint64 // Only meaningful for RoleData
}

// ProcessEvent is the hook item for process creation and destruction.
type ProcessEvent struct {
	PID       PID
	PageTable PageNum
	NumPages  int // Data pages linked or freed
}

// AccessEvent is the hook item for stores and loads.
type AccessEvent struct {
	PID   PID
	VAddr uint64
	PAddr uint64
	Value byte
}

// A Machine is one simulated computer. It owns the physical memory, the free
// map and the PTPT, and serializes every operation on them.
type Machine struct {
	sync.Mutex
	sim.HookableBase

	name      string
	spec      Spec
	storage   *mem.Storage
	allocator PageAllocator
	processes ProcessTable
}

// Name returns the name of the machine.
func (m *Machine) Name() string {
	return m.name
}

// Spec returns the geometry of the machine.
func (m *Machine) Spec() Spec {
	return m.spec
}

func (m *Machine) checkPID(pid PID) error {
	if uint64(pid) >= m.spec.PageCount {
		return fmt.Errorf("%w: %d is not in [0, %d)",
			ErrInvalidPID, pid, m.spec.PageCount)
	}

	return nil
}

func (m *Machine) invoke(pos *sim.HookPos, item interface{}) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    pos,
		Item:   item,
	})
}

func (m *Machine) pageTableAt(page PageNum) pageTable {
	return newPageTable(m.storage, m.spec, page)
}

// FreeMap returns one flag per physical page, true if the page is used.
func (m *Machine) FreeMap() []bool {
	m.Lock()
	defer m.Unlock()

	used := make([]bool, m.spec.PageCount)
	for i := range used {
		used[i] = m.allocator.IsAllocated(PageNum(i))
	}

	return used
}

// NumAllocatedPages returns the number of used pages, page 0 included.
func (m *Machine) NumAllocatedPages() int {
	m.Lock()
	defer m.Unlock()

	return m.allocator.NumAllocated()
}

// PageTableOf returns the page-table page of a process, or NoPage if the
// process has no address space.
func (m *Machine) PageTableOf(pid PID) (PageNum, error) {
	m.Lock()
	defer m.Unlock()

	if err := m.checkPID(pid); err != nil {
		return NoPage, err
	}

	return m.processes.PageTableOf(pid), nil
}

// Mappings returns the non-zero page-table entries of a process in virtual
// page order. A process without a page table has no mappings.
func (m *Machine) Mappings(pid PID) ([]Mapping, error) {
	m.Lock()
	defer m.Unlock()

	if err := m.checkPID(pid); err != nil {
		return nil, err
	}

	table := m.processes.PageTableOf(pid)
	if table == NoPage {
		return nil, nil
	}

	return m.pageTableAt(table).mappings(), nil
}

// Processes returns the ids of the processes that own a page table.
func (m *Machine) Processes() []PID {
	m.Lock()
	defer m.Unlock()

	var pids []PID
	for i := 0; i < m.processes.NumEntries(); i++ {
		if m.processes.PageTableOf(PID(i)) != NoPage {
			pids = append(pids, PID(i))
		}
	}

	return pids
}

// ControlPage renders page 0 in the classic single-buffer layout: one
// free-map byte per page from offset 0 and one PTPT byte per process from
// PTPTOffset.
func (m *Machine) ControlPage() []byte {
	m.Lock()
	defer m.Unlock()

	image := make([]byte, m.spec.PageSize)
	for i := uint64(0); i < m.spec.PageCount; i++ {
		if m.allocator.IsAllocated(PageNum(i)) {
			image[i] = 1
		}

		image[m.spec.PTPTOffset+i] = byte(m.processes.PageTableOf(PID(i)))
	}

	return image
}
