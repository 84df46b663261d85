// cmd/runs.go
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

	"github.com/campusit/mfpusage/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the update run history",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		runs, err := st.ListRuns(runsLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Error querying runs: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Println("🤷 No runs recorded yet.")
			return
		}

		goodColor := color.New(color.FgGreen)
		warnColor := color.New(color.FgYellow)
		badColor := color.New(color.FgRed)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSTATUS\tSOURCE\tMESSAGE")
		fmt.Fprintln(w, "-------\t------\t------\t-------")
		for _, r := range runs {
			status := r.Status
			switch r.Status {
			case store.RunStatusSuccess:
				status = goodColor.Sprint(r.Status)
			case store.RunStatusWarning:
				status = warnColor.Sprint(r.Status)
			case store.RunStatusError:
				status = badColor.Sprint(r.Status)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.Start.Format("2006-01-02 15:04:05"), status, r.TriggerSource, r.Message)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to show")
}
