// cmd/jobs.go
/*
Copyright © 2025 Campus IT <mis@campusit.tw>
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/campusit/mfpusage/internal/directory"
	"github.com/campusit/mfpusage/internal/report"
	"github.com/campusit/mfpusage/internal/store"
)

var (
	jobsPrinter  string
	jobsUser     string
	jobsMode     string
	jobsComputer string
	jobsFile     string
	jobsMonth    string
	jobsWeek     string
	jobsStart    string
	jobsEnd      string
	jobsLimit    int
	jobsTop      int
	jobsXLSX     string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List and summarize ingested print jobs",
	Long: `Queries the usage database for job log entries matching the given
filters and prints the newest ones along with per-user totals. With
--xlsx the full matching set is written to a workbook instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()
		dir := newDirectory(cfg)

		start, end, err := report.ResolveRange(jobsMonth, jobsWeek, jobsStart, jobsEnd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		f := store.JobLogFilter{
			Printer:         jobsPrinter,
			UserKeyword:     jobsUser,
			ModeKeyword:     jobsMode,
			ComputerKeyword: jobsComputer,
			FileKeyword:     jobsFile,
			Start:           start,
			End:             end,
		}
		if jobsUser != "" {
			f.UserMatches = dir.SearchUsernames(jobsUser)
		}

		records, err := st.QueryJobLogs(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Error querying jobs: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("🤷 No jobs match the given filters.")
			return
		}

		if jobsXLSX != "" {
			out, err := os.Create(jobsXLSX)
			if err != nil {
				fmt.Fprintf(os.Stderr, "❌ %v\n", err)
				os.Exit(1)
			}
			defer out.Close()
			if err := report.WriteJobsXLSX(out, records); err != nil {
				fmt.Fprintf(os.Stderr, "❌ Error writing workbook: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Wrote %d jobs to %s\n", len(records), jobsXLSX)
			return
		}

		rep := report.Build(jobsPrinter, records)

		shown := records
		if jobsLimit > 0 && len(shown) > jobsLimit {
			shown = shown[:jobsLimit]
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "START\tUSER\tMODE\tBW\tCOLOR\tPAGES\tPRINTER")
		fmt.Fprintln(w, "-----\t----\t----\t--\t-----\t-----\t-------")
		for _, rec := range shown {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				rec.Start.Format("2006-01-02 15:04"),
				directory.FormatUser(dir, rec.Login),
				rec.Mode, rec.BW, rec.Color, rec.Pages,
				cfg.Alias(rec.PrinterAddr))
		}
		w.Flush()

		headerColor := color.New(color.FgCyan, color.Bold)
		headerColor.Printf("\nTotals: %d jobs, %d BW, %d color, %d pages\n",
			rep.Totals.Jobs, rep.Totals.BW, rep.Totals.Color, rep.Totals.Pages)

		if jobsTop > 0 {
			top := rep.TopUsers
			if len(top) > jobsTop {
				top = top[:jobsTop]
			}
			fmt.Println()
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "#\tUSER\tJOBS\tPAGES")
			for i, u := range top {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", i+1, directory.FormatUser(dir, u.Login), u.Jobs, u.Pages)
			}
			tw.Flush()
		}
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().StringVar(&jobsPrinter, "printer", "", "filter by printer URL")
	jobsCmd.Flags().StringVar(&jobsUser, "user", "", "filter by user or login name keyword")
	jobsCmd.Flags().StringVar(&jobsMode, "mode", "", "filter by job mode keyword")
	jobsCmd.Flags().StringVar(&jobsComputer, "computer", "", "filter by computer name keyword")
	jobsCmd.Flags().StringVar(&jobsFile, "file", "", "filter by file name keyword")
	jobsCmd.Flags().StringVar(&jobsMonth, "month", "", "restrict to a month (YYYY-MM)")
	jobsCmd.Flags().StringVar(&jobsWeek, "week", "", "restrict to an ISO week (YYYY-Www)")
	jobsCmd.Flags().StringVar(&jobsStart, "start", "", "earliest start time")
	jobsCmd.Flags().StringVar(&jobsEnd, "end", "", "latest start time")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 30, "maximum rows to print (0 for all)")
	jobsCmd.Flags().IntVar(&jobsTop, "top", 10, "number of top users to show (0 to hide)")
	jobsCmd.Flags().StringVar(&jobsXLSX, "xlsx", "", "write matching jobs to this xlsx file")
}
