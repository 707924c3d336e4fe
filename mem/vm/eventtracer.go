package vm

import (
	"fmt"

	"github.com/sarchlab/ptsim/sim"
)

// EventTableName is the table that EventTracer writes into.
const EventTableName = "vm_events"

// EventEntry is one row of the event table. Fields that do not apply to an
// event kind are left zero.
type EventEntry struct {
	ID      string
	Seq     uint64
	Machine string
	Kind    string
	PID     uint32
	Page    uint32
	Role    string
	VPN     uint64
	VAddr   uint64
	PAddr   uint64
	Value   uint8
	Detail  string
}

// An EventTracer records machine events into a DataRecorder.
type EventTracer struct {
	recorder DataRecorder
	idGen    sim.IDGenerator
	seq      uint64
}

// NewEventTracer creates an EventTracer and the table it writes into.
func NewEventTracer(recorder DataRecorder) *EventTracer {
	recorder.CreateTable(EventTableName, EventEntry{})

	return &EventTracer{
		recorder: recorder,
		idGen:    sim.GetIDGenerator(),
	}
}

// WithIDGenerator makes the tracer take entry IDs from g instead of the
// generator shared by the run.
func (t *EventTracer) WithIDGenerator(g sim.IDGenerator) *EventTracer {
	t.idGen = g
	return t
}

// Func records the event.
func (t *EventTracer) Func(ctx sim.HookCtx) {
	entry := EventEntry{Kind: ctx.Pos.Name}

	if m, ok := ctx.Domain.(*Machine); ok {
		entry.Machine = m.Name()
	}

	switch item := ctx.Item.(type) {
	case PageEvent:
		entry.PID = uint32(item.PID)
		entry.Page = uint32(item.Page)
		entry.Role = item.Role.String()
		entry.VPN = item.VPN
	case ProcessEvent:
		entry.PID = uint32(item.PID)
		entry.Page = uint32(item.PageTable)
		entry.Role = RolePageTable.String()
		entry.Detail = fmt.Sprintf("%d data pages", item.NumPages)
	case AccessEvent:
		entry.PID = uint32(item.PID)
		entry.VAddr = item.VAddr
		entry.PAddr = item.PAddr
		entry.Value = item.Value
	case *FaultError:
		entry.PID = uint32(item.PID)
		entry.VAddr = item.VAddr
		entry.Detail = item.Reason.String()
	case *OOMError:
		entry.PID = uint32(item.PID)
		entry.Detail = item.What
	default:
		return
	}

	t.seq++
	entry.ID = t.idGen.Generate()
	entry.Seq = t.seq

	t.recorder.InsertData(EventTableName, entry)
}
