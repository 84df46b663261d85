// cmd/counts.go
/*
Copyright © 2025 Campus IT <mis@campusit.tw>
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/campusit/mfpusage/internal/directory"
	"github.com/campusit/mfpusage/internal/report"
)

var (
	countsPrinter  string
	countsUser     string
	countsLimit    int
	countsShowZero bool
	countsXLSX     string
)

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Show the latest per-user counter snapshot",
	Long: `Prints the most recent user counter snapshot ingested from each
matching printer. Counters are lifetime totals maintained by the device,
not per-period deltas.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()
		dir := newDirectory(cfg)

		records, total, err := st.LatestUserCounts(countsPrinter, countsUser, countsShowZero, countsLimit, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Error querying counters: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("🤷 No counter snapshots found. Run `mfpusage download` first.")
			return
		}

		if countsXLSX != "" {
			out, err := os.Create(countsXLSX)
			if err != nil {
				fmt.Fprintf(os.Stderr, "❌ %v\n", err)
				os.Exit(1)
			}
			defer out.Close()
			if err := report.WriteCountsXLSX(out, records); err != nil {
				fmt.Fprintf(os.Stderr, "❌ Error writing workbook: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Wrote %d counter rows to %s\n", len(records), countsXLSX)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "USER\tPRINT BW\tPRINT COLOR\tCOPY BW\tCOPY COLOR\tOTHER\tTOTAL\tPRINTER\tSNAPSHOT")
		fmt.Fprintln(w, "----\t--------\t-----------\t-------\t----------\t-----\t-----\t-------\t--------")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
				directory.FormatUser(dir, rec.User),
				rec.PrintBW, rec.PrintColor, rec.CopyBW, rec.CopyColor,
				rec.Other, rec.Total,
				cfg.Alias(rec.PrinterAddr),
				rec.SnapshotAt.Format("2006-01-02 15:04"))
		}
		w.Flush()

		if total > len(records) {
			fmt.Printf("\nShowing %d of %d users (raise --limit to see more)\n", len(records), total)
		}
	},
}

func init() {
	rootCmd.AddCommand(countsCmd)
	countsCmd.Flags().StringVar(&countsPrinter, "printer", "", "filter by printer URL")
	countsCmd.Flags().StringVar(&countsUser, "user", "", "filter by user name keyword")
	countsCmd.Flags().IntVar(&countsLimit, "limit", 50, "maximum rows to print")
	countsCmd.Flags().BoolVar(&countsShowZero, "show-zero", false, "include users with a zero total")
	countsCmd.Flags().StringVar(&countsXLSX, "xlsx", "", "write the snapshot to this xlsx file")
}
