package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fsscompiler/internal/jobstore"
)

func (p *Program) newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect jobs archived under --record-dir",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List archived jobs",
			Args: func(cmd *cobra.Command, args []string) error {
				if err := cobra.NoArgs(cmd, args); err != nil {
					return invalidInvocationf("%v", err)
				}
				return nil
			},
			RunE: func(*cobra.Command, []string) error {
				p.ran = true
				return p.listJobs()
			},
		},
		&cobra.Command{
			Use:   "show <job-id>",
			Short: "Print an archived job and its failure",
			Args: func(cmd *cobra.Command, args []string) error {
				if err := cobra.ExactArgs(1)(cmd, args); err != nil {
					return invalidInvocationf("%v", err)
				}
				return nil
			},
			RunE: func(_ *cobra.Command, args []string) error {
				p.ran = true
				return p.showJob(args[0])
			},
		},
	)
	return cmd
}

func (p *Program) listJobs() error {
	if p.cfg.RecordDir == "" {
		return configErrorf("--record-dir is required")
	}
	store, err := p.cfg.newStore()
	if err != nil {
		return err
	}
	ids, err := store.ListJobIDs()
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	w := tabwriter.NewWriter(p.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATUS\tEXIT\tSTARTED")
	for _, id := range ids {
		rec, err := store.LoadJob(id)
		if err != nil {
			fmt.Fprintf(p.Stderr, "skipping %s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", rec.JobID, rec.Status, rec.ExitCode, humanize.Time(rec.StartTime))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	p.result.ExitCode = ExitSuccess
	return nil
}

func (p *Program) showJob(id string) error {
	if p.cfg.RecordDir == "" {
		return configErrorf("--record-dir is required")
	}
	if err := jobstore.ValidateJobID(id); err != nil {
		return invalidInvocationf("%v", err)
	}
	store, err := p.cfg.newStore()
	if err != nil {
		return err
	}
	rec, err := store.LoadJob(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return invalidInvocationf("no archived job %q", id)
		}
		return fmt.Errorf("load job: %w", err)
	}

	fmt.Fprintf(p.Stdout, "job:      %s\nstatus:   %s\nexit:     %d\nstarted:  %s (%s)\nduration: %s\nsource:   %s\n",
		rec.JobID, rec.Status, rec.ExitCode,
		rec.StartTime.Format(time.RFC3339), humanize.Time(rec.StartTime),
		rec.EndTime.Sub(rec.StartTime), rec.SourceHash)

	f, ok, err := store.LoadFailure(id)
	if err != nil {
		return fmt.Errorf("load failure: %w", err)
	}
	if ok {
		fmt.Fprintf(p.Stdout, "failure:  %s/%s: %s\n", f.Class, f.Code, f.Message)
		if f.Diagnostic != "" {
			fmt.Fprintln(p.Stdout)
			io.WriteString(p.Stdout, f.Diagnostic)
		}
	}
	p.result.ExitCode = ExitSuccess
	return nil
}
