// Package cli implements ledgerctl, the operator tool for the ledger.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/mafiaidola/13-8-office-sub005/internal/ledger"
	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
	"github.com/mafiaidola/13-8-office-sub005/jobs"
)

// ErrViolations makes ledgerctl exit non-zero when the ledger is inconsistent.
var ErrViolations = errors.New("integrity violations found")

// JobsOps is the queue surface used by the jobs commands.
type JobsOps interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error)
	Close() error
}

// LedgerOps is the ledger surface used by the report commands.
type LedgerOps interface {
	ValidateIntegrity(ctx context.Context) (ledger.IntegrityReport, error)
	AgingReport(ctx context.Context, filter ledger.DebtFilter) (ledger.AgingAnalysis, error)
	RefreshAging(ctx context.Context) (int, error)
}

// Deps opens backends lazily so each command only dials what it needs.
type Deps struct {
	OpenJobs     func() (JobsOps, error)
	OpenLedger   func(ctx context.Context) (LedgerOps, func(), error)
	OpenCounters func(ctx context.Context) (sequence.Sequencer, func(), error)
	Now          func() time.Time
}

// NewRootCommand assembles the ledgerctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the financial ledger: jobs, integrity, aging and sequences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newJobsCommand(deps),
		newIntegrityCommand(deps),
		newAgingCommand(deps),
		newSequenceCommand(deps),
	)
	return root
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and trigger background jobs"}

	trigger := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a manual run of a ledger task",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskLedgerAgingRefresh, jobs.TaskLedgerIntegrityCheck},
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := deps.OpenJobs()
			if err != nil {
				return err
			}
			defer ops.Close()
			info, err := ops.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}

	var inspectJSON bool
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show default queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := deps.OpenJobs()
			if err != nil {
				return err
			}
			defer ops.Close()
			stats, err := ops.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			if inspectJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
			return nil
		},
	}
	inspect.Flags().BoolVar(&inspectJSON, "json", false, "print JSON")

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := deps.OpenJobs()
			if err != nil {
				return err
			}
			defer ops.Close()
			tasks, err := ops.ListScheduled(cmd.Context(), size)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tNEXT")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, inspect, scheduled)
	return cmd
}

func newIntegrityCommand(deps Deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Run the read-only integrity validator; exits 1 on violations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, closeFn, err := deps.OpenLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			report, err := ops.ValidateIntegrity(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "status=%s invoices=%d debts=%d violations=%d\n",
					report.Status, report.InvoicesChecked, report.DebtsChecked, len(report.Violations))
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, v := range report.Violations {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Kind, v.Entity, v.Number, v.Detail)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if !report.Clean() {
				return fmt.Errorf("%w: %d", ErrViolations, len(report.Violations))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func newAgingCommand(deps Deps) *cobra.Command {
	var (
		filter  ledger.DebtFilter
		refresh bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "aging",
		Short: "Print the aging analysis of outstanding debts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, closeFn, err := deps.OpenLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if refresh {
				n, err := ops.RefreshAging(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "refreshed %d debts\n", n)
			}
			report, err := ops.AgingReport(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "BUCKET\tCOUNT\tAMOUNT\t")
			for _, b := range report.Buckets {
				fmt.Fprintf(tw, "%s\t%d\t%s\t\n", b.Category, b.Count, b.Amount)
			}
			fmt.Fprintf(tw, "total\t%d\t%s\t\n", report.TotalCount, report.TotalOutstanding)
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.ClinicID, "clinic", "", "clinic id")
	cmd.Flags().StringVar(&filter.SalesRepID, "sales-rep", "", "sales rep id")
	cmd.Flags().StringVar(&filter.AreaID, "area", "", "area id")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "persist recomputed aging before reporting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSequenceCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "sequence", Short: "Inspect document number counters"}
	peek := &cobra.Command{
		Use:   "peek [type...]",
		Short: "Show the last issued number per document type without consuming one",
		RunE: func(cmd *cobra.Command, args []string) error {
			types := sequence.DocumentTypes()
			if len(args) > 0 {
				types = types[:0:0]
				for _, a := range args {
					t, err := sequence.ParseDocumentType(a)
					if err != nil {
						return err
					}
					types = append(types, t)
				}
			}
			seq, closeFn, err := deps.OpenCounters(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			now := deps.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tLAST\tNEXT")
			for _, t := range types {
				last, err := seq.Peek(cmd.Context(), t)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", t, last, sequence.Number(t, now, last+1))
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(peek)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
