package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/ptsim/datarecording"
	"github.com/sarchlab/ptsim/mem/vm"
	"github.com/spf13/cobra"
)

type eventFilter struct {
	kind  string
	pid   int
	limit int
}

func newEventsCmd() *cobra.Command {
	filter := eventFilter{}

	c := &cobra.Command{
		Use:   "events <recording.sqlite3>",
		Short: "Print the events of a recorded run.",
		Long: "Print the events a run recorded with --record, " +
			"in the order they happened.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printEvents(cmd.Context(), cmd.OutOrStdout(), args[0], filter)
		},
	}

	c.Flags().StringVar(&filter.kind, "kind", "",
		"Only show events of this kind, e.g. Store or OOM")
	c.Flags().IntVar(&filter.pid, "pid", -1,
		"Only show events of this process")
	c.Flags().IntVar(&filter.limit, "limit", 0,
		"Show at most this many events, 0 for all")

	return c
}

func printEvents(
	ctx context.Context,
	w io.Writer,
	filename string,
	filter eventFilter,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(filename); err != nil {
		return err
	}

	reader, err := datarecording.NewReader(filename)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(vm.EventTableName, vm.EventEntry{})

	results, total, err := reader.Query(ctx, vm.EventTableName,
		filter.queryParams())
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Fprintln(w, formatEvent(r.(*vm.EventEntry)))
	}

	_, err = fmt.Fprintf(w, "%d/%d events\n", len(results), total)

	return err
}

func (f eventFilter) queryParams() datarecording.QueryParams {
	params := datarecording.QueryParams{
		OrderBy: "Seq",
		Limit:   f.limit,
	}

	var conds []string

	if f.kind != "" {
		conds = append(conds, "Kind = ?")
		params.Args = append(params.Args, f.kind)
	}

	if f.pid >= 0 {
		conds = append(conds, "PID = ?")
		params.Args = append(params.Args, f.pid)
	}

	params.Where = strings.Join(conds, " AND ")

	return params
}

func formatEvent(e *vm.EventEntry) string {
	line := fmt.Sprintf(
		"%d %s proc %d page %d vpn=%d vaddr=%d paddr=%d value=%d",
		e.Seq, e.Kind, e.PID, e.Page, e.VPN, e.VAddr, e.PAddr, e.Value)

	if e.Role != "" {
		line += " role=" + e.Role
	}

	if e.Detail != "" {
		line += " detail=" + e.Detail
	}

	return line
}
