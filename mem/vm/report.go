package vm

import (
	"bufio"
	"fmt"
	"io"
)

const freeMapCellsPerRow = 16

// WriteFreeMap prints one cell per physical page, '#' for used and '.' for
// free, 16 cells per row.
func WriteFreeMap(w io.Writer, m *Machine) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "--- PAGE FREE MAP ---")

	used := m.FreeMap()
	for i, u := range used {
		cell := byte('.')
		if u {
			cell = '#'
		}

		bw.WriteByte(cell)

		if (i+1)%freeMapCellsPerRow == 0 || i == len(used)-1 {
			bw.WriteByte('\n')
		}
	}

	return bw.Flush()
}

// WritePageTable prints the non-zero page-table entries of a process as
// "vpn -> ppn" in two-digit hex.
func WritePageTable(w io.Writer, m *Machine, pid PID) error {
	mappings, err := m.Mappings(pid)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "--- PROCESS %d PAGE TABLE ---\n", pid)
	for _, mapping := range mappings {
		fmt.Fprintf(bw, "%02x -> %02x\n", mapping.VPN, mapping.PPN)
	}

	return bw.Flush()
}
