package vm

// Translate converts a virtual address of a process into a physical address.
//
// The address splits into a virtual page number (the high bits) and an offset
// (the low Log2PageSize bits). The process's page table maps the virtual page
// to a physical page. A process without a page table, a virtual page beyond
// the page table, and a zero entry all produce a *FaultError. A zero entry is
// never taken to mean physical page 0.
func (m *Machine) Translate(pid PID, vAddr uint64) (uint64, error) {
	m.Lock()
	defer m.Unlock()

	return m.translate(pid, vAddr)
}

func (m *Machine) translate(pid PID, vAddr uint64) (uint64, error) {
	if err := m.checkPID(pid); err != nil {
		return 0, err
	}

	shift := m.spec.Log2PageSize()
	vpn := vAddr >> shift
	offset := vAddr & m.spec.OffsetMask()

	table := m.processes.PageTableOf(pid)
	if table == NoPage {
		return 0, m.fault(pid, vAddr, FaultNoPageTable)
	}

	if vpn >= m.spec.PageCount {
		return 0, m.fault(pid, vAddr, FaultOutOfRange)
	}

	ppn := m.pageTableAt(table).find(vpn)
	if ppn == NoPage {
		return 0, m.fault(pid, vAddr, FaultUnmapped)
	}

	return uint64(ppn)<<shift | offset, nil
}

func (m *Machine) fault(pid PID, vAddr uint64, reason FaultReason) error {
	err := &FaultError{PID: pid, VAddr: vAddr, Reason: reason}
	m.invoke(HookPosFault, err)

	return err
}

// Store writes one byte to a virtual address of a process. Values outside
// the byte range wrap around. It returns the physical address and the byte
// actually stored. Nothing is written if the translation faults.
func (m *Machine) Store(
	pid PID,
	vAddr uint64,
	value int,
) (pAddr uint64, stored byte, err error) {
	m.Lock()
	defer m.Unlock()

	pAddr, err = m.translate(pid, vAddr)
	if err != nil {
		return 0, 0, err
	}

	stored = byte(value)
	mustNotFail(m.storage.WriteByteAt(pAddr, stored))

	m.invoke(HookPosStore, AccessEvent{
		PID:   pid,
		VAddr: vAddr,
		PAddr: pAddr,
		Value: stored,
	})

	return pAddr, stored, nil
}

// Load reads one byte from a virtual address of a process.
func (m *Machine) Load(pid PID, vAddr uint64) (pAddr uint64, value byte, err error) {
	m.Lock()
	defer m.Unlock()

	pAddr, err = m.translate(pid, vAddr)
	if err != nil {
		return 0, 0, err
	}

	value, err = m.storage.ReadByteAt(pAddr)
	mustNotFail(err)

	m.invoke(HookPosLoad, AccessEvent{
		PID:   pid,
		VAddr: vAddr,
		PAddr: pAddr,
		Value: value,
	})

	return pAddr, value, nil
}
