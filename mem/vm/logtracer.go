package vm

import (
	"io"

	"github.com/sarchlab/ptsim/sim"
)

// A LogTracer writes one line for every event of a machine.
type LogTracer struct {
	sim.LogHookBase
}

// NewLogTracer creates a LogTracer that writes to w.
func NewLogTracer(w io.Writer) *LogTracer {
	return &LogTracer{
		LogHookBase: sim.NewLogHookBase(w, "[vm] "),
	}
}

// Func logs the event.
func (t *LogTracer) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case PageEvent:
		t.logPage(ctx.Pos, item)
	case ProcessEvent:
		t.logProcess(ctx.Pos, item)
	case AccessEvent:
		t.Printf("%s proc %d: %d => %d, value=%d",
			ctx.Pos.Name, item.PID, item.VAddr, item.PAddr, item.Value)
	case error:
		t.Printf("%s %v", ctx.Pos.Name, item)
	}
}

func (t *LogTracer) logPage(pos *sim.HookPos, e PageEvent) {
	if e.Role == RoleData {
		t.Printf("%s page %d: proc %d %s %d",
			pos.Name, e.Page, e.PID, e.Role, e.VPN)
		return
	}

	t.Printf("%s page %d: proc %d %s", pos.Name, e.Page, e.PID, e.Role)
}

func (t *LogTracer) logProcess(pos *sim.HookPos, e ProcessEvent) {
	t.Printf("%s proc %d: page table %d, %d data pages",
		pos.Name, e.PID, e.PageTable, e.NumPages)
}
