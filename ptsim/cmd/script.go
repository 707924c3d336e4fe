package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sarchlab/ptsim/mem/vm"
	"github.com/sarchlab/ptsim/monitoring"
)

// A MalformedCommandError rejects a command script before it runs.
type MalformedCommandError struct {
	Position int // Index of the offending word in the script
	Command  string
	Reason   string
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command %q at word %d: %s",
		e.Command, e.Position, e.Reason)
}

// argNames lists the arguments each command takes.
var argNames = map[string][]string{
	"pfm": {},
	"ppt": {"pid"},
	"np":  {"pid", "pages"},
	"kp":  {"pid"},
	"sb":  {"pid", "vaddr", "value"},
	"lb":  {"pid", "vaddr"},
}

type command struct {
	name string
	args []uint64
}

// parseScript splits the words of a script into commands. It fails on the
// first unknown command, missing argument or argument that is not a decimal
// number. Only a stored value may be negative.
func parseScript(words []string) ([]command, error) {
	var cmds []command

	for i := 0; i < len(words); {
		name := words[i]

		params, ok := argNames[name]
		if !ok {
			return nil, &MalformedCommandError{
				Position: i,
				Command:  name,
				Reason:   "unknown command",
			}
		}

		c := command{name: name}

		for j, param := range params {
			pos := i + 1 + j
			if pos >= len(words) {
				return nil, &MalformedCommandError{
					Position: pos,
					Command:  name,
					Reason:   "missing " + param,
				}
			}

			v, err := parseArg(param, words[pos])
			if err != nil {
				return nil, &MalformedCommandError{
					Position: pos,
					Command:  name,
					Reason:   err.Error(),
				}
			}

			c.args = append(c.args, v)
		}

		cmds = append(cmds, c)
		i += 1 + len(params)
	}

	return cmds, nil
}

// parseArg parses one argument. A value keeps its two's complement bits so
// that storing it wraps to a byte like any other out-of-range value.
func parseArg(param, word string) (uint64, error) {
	if param == "value" {
		v, err := strconv.ParseInt(word, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s %q is not a number", param, word)
		}

		return uint64(v), nil
	}

	v, err := strconv.ParseUint(word, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a non-negative number", param, word)
	}

	return v, nil
}

// ProgressTracker is where an Interpreter reports script progress.
type ProgressTracker interface {
	CreateProgressBar(name string, total uint64) *monitoring.ProgressBar
	CompleteProgressBar(pb *monitoring.ProgressBar)
}

// An Interpreter runs command scripts against a machine.
type Interpreter struct {
	machine  *vm.Machine
	progress ProgressTracker
}

// NewInterpreter creates an Interpreter for the machine.
func NewInterpreter(machine *vm.Machine) *Interpreter {
	return &Interpreter{machine: machine}
}

// WithProgressTracker makes the interpreter report progress to t.
func (in *Interpreter) WithProgressTracker(t ProgressTracker) *Interpreter {
	in.progress = t
	return in
}

// Run parses the whole script and, if it is well formed, executes it,
// writing every report to w. Simulation errors such as OOM or faults are
// reported to w and the script goes on. A malformed script returns a
// *MalformedCommandError and nothing is executed.
func (in *Interpreter) Run(w io.Writer, words []string) error {
	cmds, err := parseScript(words)
	if err != nil {
		return err
	}

	var bar *monitoring.ProgressBar
	if in.progress != nil {
		bar = in.progress.CreateProgressBar(
			fmt.Sprintf("%s script", in.machine.Name()), uint64(len(cmds)))
		defer in.progress.CompleteProgressBar(bar)
	}

	for _, c := range cmds {
		if bar != nil {
			bar.IncrementInProgress(1)
		}

		err := in.execute(w, c)
		if err != nil {
			return err
		}

		if bar != nil {
			bar.MoveInProgressToFinished(1)
		}
	}

	return nil
}

func (in *Interpreter) execute(w io.Writer, c command) error {
	var err error

	switch c.name {
	case "pfm":
		return vm.WriteFreeMap(w, in.machine)
	case "ppt":
		err = vm.WritePageTable(w, in.machine, vm.PID(c.args[0]))
	case "np":
		err = in.machine.CreateProcess(vm.PID(c.args[0]), c.args[1])
	case "kp":
		err = in.machine.DestroyProcess(vm.PID(c.args[0]))
	case "sb":
		value := int(int64(c.args[2]))
		err = in.store(w, vm.PID(c.args[0]), c.args[1], value)
	case "lb":
		err = in.load(w, vm.PID(c.args[0]), c.args[1])
	default:
		panic("unknown command " + c.name)
	}

	if err != nil {
		_, err = fmt.Fprintln(w, err)
	}

	return err
}

func (in *Interpreter) store(
	w io.Writer,
	pid vm.PID,
	vAddr uint64,
	value int,
) error {
	pAddr, stored, err := in.machine.Store(pid, vAddr, value)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Store proc %d: %d => %d, value=%d\n",
		pid, vAddr, pAddr, stored)

	return err
}

func (in *Interpreter) load(w io.Writer, pid vm.PID, vAddr uint64) error {
	pAddr, value, err := in.machine.Load(pid, vAddr)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Load proc %d: %d => %d, value=%d\n",
		pid, vAddr, pAddr, value)

	return err
}
