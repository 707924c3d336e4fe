package vm

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reports", func() {
	var (
		m   *Machine
		out *bytes.Buffer
	)

	BeforeEach(func() {
		m = MakeBuilder().Build("Machine")
		out = new(bytes.Buffer)
	})

	It("should print the free map 16 cells per row", func() {
		Expect(m.CreateProcess(0, 2)).To(Succeed())

		Expect(WriteFreeMap(out, m)).To(Succeed())

		empty := strings.Repeat(".", 16) + "\n"
		Expect(out.String()).To(Equal("--- PAGE FREE MAP ---\n" +
			"####............\n" + empty + empty + empty))
	})

	It("should end a partial last row", func() {
		spec := Spec{PageSize: 32, PageCount: 8, MemSize: 256, PTPTOffset: 8}
		m = MakeBuilder().WithSpec(spec).Build("Tiny")

		Expect(WriteFreeMap(out, m)).To(Succeed())

		Expect(out.String()).To(Equal("--- PAGE FREE MAP ---\n#.......\n"))
	})

	It("should print the page table in hex", func() {
		Expect(m.CreateProcess(0, 20)).To(Succeed())
		Expect(m.CreateProcess(1, 2)).To(Succeed())

		Expect(WritePageTable(out, m, 1)).To(Succeed())

		Expect(out.String()).To(Equal("--- PROCESS 1 PAGE TABLE ---\n" +
			"00 -> 17\n" +
			"01 -> 18\n"))
	})

	It("should print only the header for a process without a page table",
		func() {
			Expect(WritePageTable(out, m, 4)).To(Succeed())

			Expect(out.String()).To(Equal("--- PROCESS 4 PAGE TABLE ---\n"))
		})

	It("should reject an invalid process id", func() {
		Expect(WritePageTable(out, m, 64)).To(MatchError(ErrInvalidPID))
		Expect(out.Len()).To(BeZero())
	})
})
