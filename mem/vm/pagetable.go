package vm

import (
	"log"

	"github.com/sarchlab/ptsim/mem"
)

// PID stands for Process ID. A PID is an index into the PTPT.
type PID uint32

// PageNum is the index of a physical page.
type PageNum uint32

// NoPage marks an unassigned PTPT entry or an unmapped page-table entry. Page
// 0 is the reserved control page, so it can never back a process.
const NoPage PageNum = 0

// A Mapping is a non-zero page-table entry.
type Mapping struct {
	VPN uint64  `json:"vpn"`
	PPN PageNum `json:"ppn"`
}

// pageTable is a view over the page that holds one process's page table.
// Entry vpn is byte vpn of the page.
type pageTable struct {
	storage    *mem.Storage
	spec       Spec
	page       PageNum
	numEntries uint64
}

func newPageTable(storage *mem.Storage, spec Spec, page PageNum) pageTable {
	return pageTable{
		storage:    storage,
		spec:       spec,
		page:       page,
		numEntries: spec.PageCount,
	}
}

func (t pageTable) entryAddr(vpn uint64) uint64 {
	if vpn >= t.numEntries {
		log.Panicf("virtual page %d is beyond the page table", vpn)
	}

	return uint64(t.page)<<t.spec.Log2PageSize() | vpn
}

// find returns the physical page backing vpn, or NoPage.
func (t pageTable) find(vpn uint64) PageNum {
	entry, err := t.storage.ReadByteAt(t.entryAddr(vpn))
	mustNotFail(err)

	return PageNum(entry)
}

func (t pageTable) insert(vpn uint64, ppn PageNum) {
	err := t.storage.WriteByteAt(t.entryAddr(vpn), byte(ppn))
	mustNotFail(err)
}

func (t pageTable) mappings() []Mapping {
	entries, err := t.storage.Read(t.entryAddr(0), t.numEntries)
	mustNotFail(err)

	var mappings []Mapping
	for vpn, entry := range entries {
		if entry != 0 {
			mappings = append(mappings, Mapping{
				VPN: uint64(vpn),
				PPN: PageNum(entry),
			})
		}
	}

	return mappings
}

// mustNotFail guards storage accesses whose bounds the validated Spec already
// guarantees.
func mustNotFail(err error) {
	if err != nil {
		log.Panic(err)
	}
}
