// Package cmd provides the command-line interface of ptsim.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sarchlab/ptsim/datarecording"
	"github.com/sarchlab/ptsim/mem/vm"
	"github.com/sarchlab/ptsim/monitoring"
	"github.com/sarchlab/ptsim/sim"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

const scriptHelp = `Commands are executed left to right against one machine:

  pfm                   print the page free map
  ppt <pid>             print the page table of a process
  np  <pid> <pages>     create a process with <pages> data pages
  kp  <pid>             destroy a process
  sb  <pid> <vaddr> <v> store byte <v> at a virtual address
  lb  <pid> <vaddr>     load the byte at a virtual address

Flags must come before the first command.`

var errNoCommands = errors.New("no commands given")

// openBrowser shows a serving monitor to the user.
var openBrowser = (*monitoring.Monitor).OpenInBrowser

type options struct {
	verbose     bool
	record      string
	uniqueIDs   bool
	monitor     bool
	monitorPort int
	openBrowser bool
	envFile     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "ptsim [flags] <command> [args]...",
		Short: "ptsim simulates a paged virtual memory machine.",
		Long: "ptsim simulates a small machine with paged virtual memory, " +
			"one page table per process and a free page map.\n\n" + scriptHelp,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.PrintErr(cmd.UsageString())
				return errNoCommands
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	flags := rootCmd.Flags()
	flags.SetInterspersed(false)
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Log every machine event to stderr")
	flags.StringVar(&opts.record, "record", "",
		"Record machine events into <name>.sqlite3, "+
			"an empty name picks a unique one")
	flags.BoolVar(&opts.uniqueIDs, "unique-ids", false,
		"Give recorded events globally unique IDs instead of sequential ones")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"Serve the monitoring API until interrupted")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server, 0 for a random port")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring server in a browser")
	flags.StringVar(&opts.envFile, "env-file", "",
		"Load machine geometry variables from this dotenv file")

	rootCmd.AddCommand(newEventsCmd())

	return rootCmd
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	_, err := parseScript(args)
	if err != nil {
		return err
	}

	spec, err := loadSpec(opts.envFile)
	if err != nil {
		return err
	}

	machine := vm.MakeBuilder().WithSpec(spec).Build("Machine")
	interpreter := NewInterpreter(machine)

	if opts.verbose {
		machine.AcceptHook(vm.NewLogTracer(cmd.ErrOrStderr()))
	}

	if cmd.Flags().Changed("record") {
		recorder := datarecording.New(opts.record)
		defer recorder.Close()

		tracer := vm.NewEventTracer(recorder)
		if opts.uniqueIDs {
			tracer.WithIDGenerator(sim.NewParallelIDGenerator())
		}

		machine.AcceptHook(tracer)
	}

	var monitor *monitoring.Monitor
	if opts.monitor {
		monitor, err = startMonitor(cmd.ErrOrStderr(), machine, interpreter,
			opts)
		if err != nil {
			return err
		}
	}

	err = interpreter.Run(cmd.OutOrStdout(), args)
	if err != nil {
		return err
	}

	if monitor != nil {
		return serveUntilInterrupted(cmd.Context(), monitor)
	}

	return nil
}

func startMonitor(
	errOut io.Writer,
	machine *vm.Machine,
	interpreter *Interpreter,
	opts *options,
) (*monitoring.Monitor, error) {
	monitor := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
	monitor.RegisterMachine(machine)
	monitor.RegisterCommandRunner(interpreter.Run)
	interpreter.WithProgressTracker(monitor)

	_, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}

	if opts.openBrowser {
		err = openBrowser(monitor)
		if err != nil {
			fmt.Fprintf(errOut, "Cannot open browser: %v\n", err)
		}
	}

	return monitor, nil
}

func serveUntilInterrupted(
	ctx context.Context,
	monitor *monitoring.Monitor,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second)
	defer cancel()

	return monitor.StopServer(shutdownCtx)
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
