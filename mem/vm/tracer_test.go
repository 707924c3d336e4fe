package vm

import (
	"bytes"

	"github.com/sarchlab/ptsim/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("LogTracer", func() {
	It("should log every event of a machine", func() {
		out := new(bytes.Buffer)
		m := MakeBuilder().Build("Machine")
		m.AcceptHook(NewLogTracer(out))

		Expect(m.CreateProcess(0, 1)).To(Succeed())
		_, _, _ = m.Store(0, 1, 42)
		_, _, _ = m.Load(0, 1)
		_, _, _ = m.Load(0, 256)
		Expect(m.DestroyProcess(0)).To(Succeed())
		Expect(m.CreateProcess(1, 63)).To(HaveOccurred())

		lines := []string{
			"[vm] PageAlloc page 1: proc 0 page table",
			"[vm] PageAlloc page 2: proc 0 data page 0",
			"[vm] ProcessCreate proc 0: page table 1, 1 data pages",
			"[vm] Store proc 0: 1 => 513, value=42",
			"[vm] Load proc 0: 1 => 513, value=42",
			"[vm] Fault Fault: proc 0: 256: page not mapped",
			"[vm] PageFree page 2: proc 0 data page 0",
			"[vm] PageFree page 1: proc 0 page table",
			"[vm] ProcessDestroy proc 0: page table 1, 1 data pages",
		}
		for _, line := range lines {
			Expect(out.String()).To(ContainSubstring(line + "\n"))
		}
		Expect(out.String()).To(HaveSuffix(
			"[vm] OOM OOM: proc 1: data page 62\n"))
	})
})

var _ = Describe("EventTracer", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *MockDataRecorder
		m        *Machine
		entries  []EventEntry
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockDataRecorder(mockCtrl)
		m = MakeBuilder().Build("Machine")
		entries = nil

		recorder.EXPECT().
			CreateTable(EventTableName, EventEntry{})
		recorder.EXPECT().
			InsertData(EventTableName, gomock.Any()).
			Do(func(_ string, entry any) {
				entries = append(entries, entry.(EventEntry))
			}).
			AnyTimes()

		m.AcceptHook(NewEventTracer(recorder))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record page allocations", func() {
		Expect(m.CreateProcess(3, 1)).To(Succeed())

		Expect(entries).To(HaveLen(3))
		Expect(entries[0].Kind).To(Equal("PageAlloc"))
		Expect(entries[0].Machine).To(Equal("Machine"))
		Expect(entries[0].PID).To(Equal(uint32(3)))
		Expect(entries[0].Page).To(Equal(uint32(1)))
		Expect(entries[0].Role).To(Equal("page table"))
		Expect(entries[1].Role).To(Equal("data page"))
		Expect(entries[1].Page).To(Equal(uint32(2)))
		Expect(entries[2].Kind).To(Equal("ProcessCreate"))
		Expect(entries[2].Detail).To(Equal("1 data pages"))
	})

	It("should number entries in order", func() {
		Expect(m.CreateProcess(0, 2)).To(Succeed())

		for i, e := range entries {
			Expect(e.Seq).To(Equal(uint64(i + 1)))
			Expect(e.ID).NotTo(BeEmpty())
		}
	})

	It("should take IDs from the given generator", func() {
		recorder.EXPECT().
			CreateTable(EventTableName, EventEntry{})
		tracer := NewEventTracer(recorder).
			WithIDGenerator(sim.NewParallelIDGenerator())
		m = MakeBuilder().Build("Machine")
		m.AcceptHook(tracer)

		Expect(m.CreateProcess(0, 1)).To(Succeed())

		Expect(entries).To(HaveLen(3))
		Expect(entries[0].ID).To(HaveLen(20))
		Expect(entries[1].ID).NotTo(Equal(entries[0].ID))
		Expect(entries[2].Seq).To(Equal(uint64(3)))
	})

	It("should record accesses and faults", func() {
		Expect(m.CreateProcess(0, 1)).To(Succeed())
		entries = nil

		_, _, _ = m.Store(0, 7, 9)
		_, _, _ = m.Store(0, 300, 9)

		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Kind).To(Equal("Store"))
		Expect(entries[0].VAddr).To(Equal(uint64(7)))
		Expect(entries[0].PAddr).To(Equal(uint64(519)))
		Expect(entries[0].Value).To(Equal(uint8(9)))
		Expect(entries[1].Kind).To(Equal("Fault"))
		Expect(entries[1].Detail).To(Equal("page not mapped"))
	})

	It("should record out of memory", func() {
		Expect(m.CreateProcess(0, 62)).To(Succeed())
		entries = nil

		Expect(m.CreateProcess(1, 0)).To(MatchError(ErrOutOfMemory))

		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Kind).To(Equal("OOM"))
		Expect(entries[0].PID).To(Equal(uint32(1)))
		Expect(entries[0].Detail).To(Equal("page table"))
	})
})
