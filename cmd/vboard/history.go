package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/vboard/internal/store"
)

var historyRuns bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recorded compiles, or runs with --runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if historyRuns {
			runs, err := e.store.Runs()
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		}
		compiles, err := e.store.Compiles()
		if err != nil {
			return err
		}
		return printCompiles(cmd.OutOrStdout(), compiles)
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyRuns, "runs", false, "show board runs instead of compiles")
	rootCmd.AddCommand(historyCmd)
}

func printCompiles(out io.Writer, records []store.CompileRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRESULT\tFQBN\tSOURCE\tDURATION")
	for _, r := range records {
		result := "ok"
		if !r.Success {
			result = "failed: " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05"), result, r.FQBN, r.Source, r.Duration)
	}
	return w.Flush()
}

func printRuns(out io.Writer, records []store.RunRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tBOARD\tEXIT\tDURATION\tBRIDGE")
	for _, r := range records {
		exit := fmt.Sprint(r.ExitCode)
		if r.Terminated {
			exit = "stopped"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05"), r.Board, exit, r.Duration, r.Bridge)
	}
	return w.Flush()
}
