package vm

import (
	"fmt"
	"math/bits"
)

// MaxPageCount is the largest page count a machine supports. Page-table
// entries and PTPT entries are single bytes.
const MaxPageCount = 256

// Spec holds the immutable geometry of a simulated machine.
type Spec struct {
	PageSize   uint64 `json:"page_size"`   // Bytes per page, a power of two
	PageCount  uint64 `json:"page_count"`  // Number of physical pages
	MemSize    uint64 `json:"mem_size"`    // Must equal PageSize * PageCount
	PTPTOffset uint64 `json:"ptpt_offset"` // Offset of the PTPT in page 0
}

// Defaults returns the classic 16 KiB machine with 64 pages of 256 bytes.
func Defaults() Spec {
	return Spec{
		PageSize:   256,
		PageCount:  64,
		MemSize:    16384,
		PTPTOffset: 64,
	}
}

// Validate reports the first geometry constraint s violates.
func (s Spec) Validate() error {
	if s.PageSize == 0 || s.PageSize&(s.PageSize-1) != 0 {
		return fmt.Errorf("page size %d is not a power of two", s.PageSize)
	}

	if s.PageCount < 2 || s.PageCount > MaxPageCount {
		return fmt.Errorf("page count %d must be in [2, %d]",
			s.PageCount, MaxPageCount)
	}

	if s.PageCount > s.PageSize {
		return fmt.Errorf(
			"page count %d does not fit in a page table of %d bytes",
			s.PageCount, s.PageSize)
	}

	hi, lo := bits.Mul64(s.PageSize, s.PageCount)
	if hi != 0 || lo != s.MemSize {
		return fmt.Errorf("memory size %d must equal %d pages of %d bytes",
			s.MemSize, s.PageCount, s.PageSize)
	}

	if s.PTPTOffset < s.PageCount {
		return fmt.Errorf("PTPT offset %d overlaps the free map of %d bytes",
			s.PTPTOffset, s.PageCount)
	}

	if s.PTPTOffset+s.PageCount > s.PageSize {
		return fmt.Errorf("PTPT at offset %d does not fit in page 0",
			s.PTPTOffset)
	}

	return nil
}

// Log2PageSize returns the shift that turns an address into a page number.
func (s Spec) Log2PageSize() uint64 {
	return uint64(bits.TrailingZeros64(s.PageSize))
}

// OffsetMask returns the mask that extracts the offset within a page.
func (s Spec) OffsetMask() uint64 {
	return s.PageSize - 1
}
