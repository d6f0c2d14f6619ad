package app

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"dense/history"
)

// PrintHistory lists the recorded runs, or the epochs of one run when id is
// positive.
func PrintHistory(store *history.Store, id int64) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	defer w.Flush()
	if id <= 0 {
		runs, err := store.Runs()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "RUN\tSTARTED\tTRAIN FILE\tMD5")
		for _, run := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", run.ID, run.Started.Format("2006-01-02 15:04:05"), run.TrainFile, run.TrainMD5)
		}
		return nil
	}
	records, err := store.Epochs(id)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no epochs recorded for run %d", id)
	}
	fmt.Fprintln(w, "EPOCH\tPHASE\tLOSS\tUAS\tLAS\tUEM\tTIME")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%.4f\t%.4f\t%v\n", rec.Epoch, rec.Phase, rec.Loss, rec.UAS, rec.LAS, rec.UEM, rec.Duration)
	}
	return nil
}

func HistoryCmdRun(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"db"}); err != nil {
		return err
	}
	if err := verifyInputs(historyDB); err != nil {
		return err
	}
	store, err := history.Open(historyDB)
	if err != nil {
		return err
	}
	defer store.Close()
	return PrintHistory(store, runID)
}

func HistoryCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       HistoryCmdRun,
		UsageLine: "history <file options> [arguments]",
		Short:     "shows recorded training runs",
		Long: `
shows recorded training runs, or the per epoch metrics of one run

	$ ./dense history -db <sqlite file> [-run <id>]

`,
		Flag: *flag.NewFlagSet("history", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&historyDB, "db", "results/history.db", "History database")
	cmd.Flag.Int64Var(&runID, "run", 0, "Run id; 0 lists all runs")
	return cmd
}
