package vm

import "log"

// A PageAllocator tracks which physical pages are in use.
type PageAllocator interface {
	// Allocate marks the lowest free page as used and returns it. It returns
	// ErrOutOfMemory if every page is used.
	Allocate() (PageNum, error)

	// Free marks a page as free. Freeing a free page or the reserved page 0
	// does nothing.
	Free(page PageNum)

	// IsAllocated tells if a page is in use.
	IsAllocated(page PageNum) bool

	// NumAllocated returns the number of used pages, page 0 included.
	NumAllocated() int
}

// NewPageAllocator creates a free map for pageCount pages with page 0
// already reserved.
func NewPageAllocator(pageCount uint64) PageAllocator {
	if pageCount < 2 {
		log.Panicf("a free map needs at least 2 pages, got %d", pageCount)
	}

	m := &freeMap{
		used: make([]bool, pageCount),
	}
	m.used[0] = true
	m.numUsed = 1

	return m
}

// freeMap is a first-fit allocator. The lowest free index always wins, which
// keeps allocation sequences reproducible.
type freeMap struct {
	used    []bool
	numUsed int
}

func (m *freeMap) Allocate() (PageNum, error) {
	for i := 1; i < len(m.used); i++ {
		if !m.used[i] {
			m.used[i] = true
			m.numUsed++

			return PageNum(i), nil
		}
	}

	return NoPage, ErrOutOfMemory
}

func (m *freeMap) Free(page PageNum) {
	m.pageMustExist(page)

	if page == 0 || !m.used[page] {
		return
	}

	m.used[page] = false
	m.numUsed--
}

func (m *freeMap) IsAllocated(page PageNum) bool {
	m.pageMustExist(page)

	return m.used[page]
}

func (m *freeMap) NumAllocated() int {
	return m.numUsed
}

func (m *freeMap) pageMustExist(page PageNum) {
	if int(page) >= len(m.used) {
		log.Panicf("page %d does not exist", page)
	}
}
