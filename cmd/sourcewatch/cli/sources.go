package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	sourcewatch "github.com/webeye/sourcewatch"
	"github.com/webeye/sourcewatch/internal/timewindow"
)

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Browse monitored sources",
	}
	cmd.AddCommand(
		newSourcesListCmd(opts),
		newSourcesGetCmd(opts),
		newSourcesChecksCmd(opts),
		newSourcesExportURLCmd(opts),
		newSourcesDdosCmd(opts),
		newSourceListing(opts, "nodes", "List the check nodes of a source", func(ctx context.Context, s *sourcewatch.Service, id string) (any, error) {
			uid, err := parseUUID(id)
			if err != nil {
				return nil, err
			}
			return s.Nodes(ctx, uid)
		}),
		newSourceListing(opts, "reviews", "List user reviews of a source", func(ctx context.Context, s *sourcewatch.Service, id string) (any, error) {
			uid, err := parseUUID(id)
			if err != nil {
				return nil, err
			}
			return s.Reviews(ctx, uid)
		}),
		newSourceListing(opts, "reports", "List outage reports of a source", func(ctx context.Context, s *sourcewatch.Service, id string) (any, error) {
			uid, err := parseUUID(id)
			if err != nil {
				return nil, err
			}
			return s.SourceReports(ctx, uid)
		}),
		newSourceListing(opts, "social", "List social network mentions of a source", func(ctx context.Context, s *sourcewatch.Service, id string) (any, error) {
			uid, err := parseUUID(id)
			if err != nil {
				return nil, err
			}
			return s.SocialReports(ctx, uid)
		}),
	)
	return cmd
}

func newSourceListing(opts *rootOptions, use, short string, list func(context.Context, *sourcewatch.Service, string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " UUID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			out, err := list(context.Background(), e.service, args[0])
			if err != nil {
				return err
			}
			return e.printJSON(out)
		}),
	}
}

func newSourcesListCmd(opts *rootOptions) *cobra.Command {
	var filter sourcewatch.SourceFilter
	var status string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources with their status and rating",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			filter.Status = sourcewatch.SourceStatus(status)
			sources, err := e.service.Sources(context.Background(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return e.printJSON(sources)
			}
			for _, s := range sources {
				fmt.Fprintf(e.out, "%s  %-8s  %4.1f  %s\n", s.UUID, e.colorStatus(s.Status), s.Rating, s.Name)
			}
			return nil
		}),
	}
	fs := cmd.Flags()
	fs.IntVar(&filter.Skip, "skip", 0, "number of sources to skip")
	fs.IntVar(&filter.Limit, "limit", 0, "maximum number of sources (server default 100)")
	fs.StringVar(&status, "status", "", "only sources with this status (UP, DOWN, PARTIAL)")
	fs.StringVar(&filter.Name, "name", "", "only sources whose name contains this")
	fs.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSourcesGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get UUID",
		Short: "Show one source",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			src, err := e.service.Source(context.Background(), id)
			if err != nil {
				return err
			}
			return e.printJSON(src)
		}),
	}
}

func newSourcesChecksCmd(opts *rootOptions) *cobra.Command {
	var window string
	var position float64
	var count int
	cmd := &cobra.Command{
		Use:   "checks UUID",
		Short: "Show the check history of a source",
		Long: "Show the check history of a source. The window is given either in\n" +
			"seconds or as a duration (--window), or as a slider position between\n" +
			"0 and 1 on an exponential scale (--position).",
		Args: cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			seconds, err := timewindow.Parse(window)
			if err != nil {
				return err
			}
			if position >= 0 {
				seconds = timewindow.Exponential(position)
			}
			results, err := e.service.CheckResults(context.Background(), sourcewatch.CheckResultsQuery{
				SourceUUID: id,
				TimeDelta:  seconds,
				MaxCount:   timewindow.Count(count),
			})
			if err != nil {
				return err
			}
			return e.printJSON(results)
		}),
	}
	fs := cmd.Flags()
	fs.StringVar(&window, "window", "", "history window, e.g. 300 or 48h (default 48h)")
	fs.Float64Var(&position, "position", -1, "window as exponential slider position in [0,1]")
	fs.IntVar(&count, "count", timewindow.DefaultCount, "number of intervals (2-7)")
	cmd.MarkFlagsMutuallyExclusive("window", "position")
	return cmd
}

func newSourcesExportURLCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export-url UUID",
		Short: "Print the download link of a source's check report",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, e.cfg.ExportURL(id.String()))
			return nil
		}),
	}
}

func newSourcesDdosCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ddos",
		Short: "Ask whether the monitoring service is under a DDoS",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			d, err := e.service.Ddos(context.Background())
			if err != nil {
				return err
			}
			return e.printJSON(d)
		}),
	}
}
