package vm

import "fmt"

// CreateProcess gives a process a page table and pageCount data pages mapped
// at virtual pages 0 to pageCount-1.
//
// If the page table cannot be allocated, the process stays unassigned. If a
// data page cannot be allocated, creation stops there and the data pages
// allocated so far stay allocated and mapped. Either way the returned error
// is an *OOMError. A process that already owns a page table gets
// ErrProcessExists and nothing is allocated.
func (m *Machine) CreateProcess(pid PID, pageCount uint64) error {
	m.Lock()
	defer m.Unlock()

	if err := m.checkPID(pid); err != nil {
		return err
	}

	if m.processes.PageTableOf(pid) != NoPage {
		return fmt.Errorf("%w: proc %d", ErrProcessExists, pid)
	}

	tablePage, err := m.allocatePage(PageEvent{PID: pid, Role: RolePageTable})
	if err != nil {
		return err
	}

	m.processes.SetPageTable(pid, tablePage)
	table := m.pageTableAt(tablePage)

	for i := uint64(0); i < pageCount; i++ {
		page, err := m.allocatePage(PageEvent{PID: pid, Role: RoleData, VPN: i})
		if err != nil {
			return err
		}

		table.insert(i, page)
	}

	m.invoke(HookPosProcessCreate, ProcessEvent{
		PID:       pid,
		PageTable: tablePage,
		NumPages:  int(pageCount),
	})

	return nil
}

// allocatePage takes the lowest free page and zeroes it, so a reused page
// never shows stale entries or another process's data.
func (m *Machine) allocatePage(event PageEvent) (PageNum, error) {
	page, err := m.allocator.Allocate()
	if err != nil {
		what := event.Role.String()
		if event.Role == RoleData {
			what = fmt.Sprintf("%s %d", what, event.VPN)
		}

		oom := &OOMError{PID: event.PID, What: what}
		m.invoke(HookPosOOM, oom)

		return NoPage, oom
	}

	mustNotFail(m.storage.ClearUnit(uint64(page)))

	event.Page = page
	m.invoke(HookPosPageAlloc, event)

	return page, nil
}

// DestroyProcess frees every page the process owns and unregisters its page
// table. Destroying a process without a page table does nothing.
func (m *Machine) DestroyProcess(pid PID) error {
	m.Lock()
	defer m.Unlock()

	if err := m.checkPID(pid); err != nil {
		return err
	}

	tablePage := m.processes.PageTableOf(pid)
	if tablePage == NoPage {
		return nil
	}

	mappings := m.pageTableAt(tablePage).mappings()
	for _, mapping := range mappings {
		m.freePage(PageEvent{
			PID:  pid,
			Page: mapping.PPN,
			Role: RoleData,
			VPN:  mapping.VPN,
		})
	}

	m.freePage(PageEvent{PID: pid, Page: tablePage, Role: RolePageTable})
	m.processes.Clear(pid)

	m.invoke(HookPosProcessDestroy, ProcessEvent{
		PID:       pid,
		PageTable: tablePage,
		NumPages:  len(mappings),
	})

	return nil
}

func (m *Machine) freePage(event PageEvent) {
	m.allocator.Free(event.Page)
	m.invoke(HookPosPageFree, event)
}
