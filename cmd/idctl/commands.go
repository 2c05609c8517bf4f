package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/automatistasidl/id-coletivo/internal/app"
	"github.com/automatistasidl/id-coletivo/internal/attendance"
	"github.com/automatistasidl/id-coletivo/internal/export"
)

type loaderFunc func(ctx context.Context, logLevel string) (*app.App, error)

type cli struct {
	load     loaderFunc
	logLevel string
	app      *app.App
	closed   int
}

func newCLI(load loaderFunc) *cli {
	return &cli{load: load}
}

// execute runs one command line and always releases the app, including when the
// command or the store provisioning fails.
func (c *cli) execute(args []string, stdout, stderr io.Writer) error {
	defer c.close()
	cmd := c.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

func (c *cli) close() {
	if c.app == nil {
		return
	}
	c.app.Close()
	c.app = nil
	c.closed++
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "idctl",
		Short:         "Administer the attendance store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.load(cmd.Context(), c.logLevel)
			if err != nil {
				return err
			}
			c.app = a
			return a.EnsureSchema(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(c.schemaCmd(), c.sectorsCmd(), c.recordsCmd(), c.summaryCmd(), c.exportCmd())
	return cmd
}

func (c *cli) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "schema", Short: "Backing store schema"}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create missing tables, header rows and the catalog seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Provisioning already ran in PersistentPreRunE.
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", c.app.Config.DataStore)
			return nil
		},
	})
	return cmd
}

func (c *cli) sectorsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sectors", Short: "Sector catalog"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List catalog sectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sectors, degraded := c.app.Service.Sectors(cmd.Context())
			if degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: catalog unavailable, showing defaults")
			}
			for _, name := range sectors {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Append a sector unless it already exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, outcome, err := c.app.Service.AddSector(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, outcome)
			return nil
		},
	})
	return cmd
}

func bindFilter(cmd *cobra.Command, f *attendance.Filter) {
	cmd.Flags().StringVar(&f.Sector, "sector", "", "Only this sector (Todos for all)")
	cmd.Flags().StringVar(&f.Leader, "leader", "", "Only this leader (Todos for all)")
	cmd.Flags().StringVar(&f.Date, "date", "", "Only this day (YYYY-MM-DD)")
}

func (c *cli) recordsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "records", Short: "Activity records"}

	var (
		filter  attendance.Filter
		asJSON  bool
		input   attendance.SubmitInput
		listCmd = &cobra.Command{
			Use:   "list",
			Short: "List records, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				report := c.app.Service.Report(cmd.Context(), filter)
				printWarnings(cmd.ErrOrStderr(), report.Warnings)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), report.Records)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATAHORA\tMATRICULA\tSETOR\tATINGIMENTO\tLIDER")
				for _, r := range report.Records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Timestamp, r.BadgeID, r.Sector, r.Tier, r.LeaderName)
				}
				return tw.Flush()
			},
		}
		submitCmd = &cobra.Command{
			Use:   "submit",
			Short: "Submit one record through the form rules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				result, err := c.app.Service.Submit(cmd.Context(), nil, input)
				if err != nil {
					return describe(err)
				}
				printWarnings(cmd.ErrOrStderr(), result.Warnings)
				r := result.Record
				fmt.Fprintf(cmd.OutOrStdout(), "registrado: matrícula %s, setor %s, %s\n", r.BadgeID, r.Sector, r.Timestamp)
				return nil
			},
		}
	)
	bindFilter(listCmd, &filter)
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	submitCmd.Flags().StringVar(&input.LeaderName, "leader", "", "Leader name")
	submitCmd.Flags().StringVar(&input.BadgeID, "badge", "", "Badge number")
	submitCmd.Flags().StringVar(&input.Sector, "sector", "", "Sector, or Outros with --other")
	submitCmd.Flags().StringVar(&input.OtherSector, "other", "", "New sector name when --sector=Outros")
	submitCmd.Flags().StringVar(&input.Tier, "tier", "", "Attainment tier")

	cmd.AddCommand(listCmd, submitCmd)
	return cmd
}

func (c *cli) summaryCmd() *cobra.Command {
	var filter attendance.Filter
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print counters and frequency tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := c.app.Service.Report(cmd.Context(), filter)
			printWarnings(cmd.ErrOrStderr(), report.Warnings)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total: %d\nsetores: %d\nlíderes: %d\n", report.Summary.Total, report.Summary.DistinctSectors, report.Summary.DistinctLeaders)
			for _, table := range []struct {
				title  string
				counts []attendance.Count
			}{
				{"por setor", report.BySector},
				{"por atingimento", report.ByTier},
				{"por líder", report.ByLeader},
			} {
				fmt.Fprintf(out, "\n%s\n", table.title)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, count := range table.counts {
					fmt.Fprintf(tw, "  %s\t%d\n", count.Label, count.Count)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	bindFilter(cmd, &filter)
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		filter attendance.Filter
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a CSV snapshot to the export bucket, or locally with --out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out != "" {
				return c.exportLocal(cmd, filter, out)
			}
			if c.app.Exporter == nil {
				return errors.New("EXPORT_BUCKET is not set; use --out for a local file")
			}
			result, err := c.app.Exporter.Export(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", result.Rows, result.Location)
			return nil
		},
	}
	bindFilter(cmd, &filter)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the CSV to this file (- for stdout)")
	return cmd
}

func (c *cli) exportLocal(cmd *cobra.Command, filter attendance.Filter, path string) error {
	records, err := c.app.Service.Records(cmd.Context())
	if err != nil {
		return err
	}
	report := attendance.BuildReport(records, filter)

	if path == "-" {
		return export.WriteCSV(cmd.OutOrStdout(), report.Records)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, report.Records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", len(report.Records), path)
	return nil
}

// describe flattens validation problems into one readable error.
func describe(err error) error {
	var verr *attendance.ValidationError
	if errors.As(err, &verr) {
		msg := "submission rejected:"
		for _, p := range verr.Problems {
			msg += "\n  - " + p
		}
		return errors.New(msg)
	}
	return err
}

func printWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
