package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/inspector"
)

var queryOpts QueryOptions

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one aggregation and print the events",
	Long: `Runs one Logs Insights query per log group across the selected regions
and prints the merged events, newest first.

  ` + AppName + ` query                                  # last 24h, every region and group
  ` + AppName + ` query --regions us-east-1 --services lambda
  ` + AppName + ` query --group-pattern '/aws/ecs/*' --q timeout -o json
  ` + AppName + ` query --filter "level == 'ERROR'" --extract requestId`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("limit") {
			queryOpts.Limit = a.cfg.Query.DefaultLimit
		}
		if err := queryOpts.Validate(a.cfg.Query.MaxLimit); err != nil {
			return err
		}
		req, err := queryOpts.Request(time.Now())
		if err != nil {
			return err
		}

		if queryOpts.Progress {
			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("querying log groups"),
				progressbar.OptionShowCount(),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionClearOnFinish(),
			)
			req.OnUnit = func(inspector.UnitResult) { _ = bar.Add(1) }
			defer func() { _ = bar.Finish() }()
		}

		report, err := a.inspector.Aggregate(ctx, req)
		if err != nil {
			return err
		}
		WriteSummary(cmd.ErrOrStderr(), report)

		out := cmd.OutOrStdout()
		if queryOpts.Extract != "" {
			return WriteExtracted(out, report.Events, queryOpts.Extract)
		}
		if len(report.Events) == 0 && queryOpts.Output == OutputText {
			fmt.Fprintf(out, "No logs found between %s and %s.\n", req.Start.UTC().Format(time.RFC3339), req.End.UTC().Format(time.RFC3339))
			return nil
		}
		return WriteEvents(out, report.Events, queryOpts.Output, queryOpts.Width)
	},
}

func init() {
	RootCmd.AddCommand(queryCmd)

	f := queryCmd.Flags()
	f.StringVar(&queryOpts.Start, "start", "", "start time (RFC3339, 'YYYY-MM-DD HH:MM:SS', date or unix seconds)")
	f.StringVar(&queryOpts.End, "end", "", "end time (same formats as --start)")
	f.IntVarP(&queryOpts.Limit, "limit", "n", 50, "maximum rows per log group")
	f.StringVar(&queryOpts.RegionsCSV, "regions", "", "comma-separated regions (default every enabled region)")
	f.StringVar(&queryOpts.GroupsCSV, "groups", "", "comma-separated log group names, queried as-is")
	f.StringVar(&queryOpts.ServicesCSV, "services", "", "comma-separated service tags to keep (lambda, ecs, ...)")
	f.StringArrayVar(&queryOpts.GroupPatterns, "group-pattern", nil, "glob on discovered log group names (repeatable)")
	f.StringVar(&queryOpts.Search, "q", "", "case-insensitive text the event must contain")
	f.StringVar(&queryOpts.Filter, "filter", "", "JMESPath expression the message must satisfy")
	f.StringVar(&queryOpts.Extract, "extract", "", "print the first value selected by this JMESPath expression")
	f.StringVarP(&queryOpts.Output, "output", "o", OutputText, "output format: text, json or yaml")
	f.IntVar(&queryOpts.Width, "width", 200, "truncate text messages to this many cells (0 disables)")
	f.BoolVar(&queryOpts.Progress, "progress", false, "show a progress spinner on stderr")
}
