package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Check today's spending of every user once",
	Long: `Evaluate every user with expenses dated today against the daily threshold
and publish an alert for each user over it. "Today" is taken in threshold.timezone.
Suitable for cron or an external scheduler.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.sweeper.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	return render(cmd.OutOrStdout(), format, report, func(w *tabwriter.Writer) {
		printSweep(w, report)
	})
}

func printSweep(w *tabwriter.Writer, r *model.SweepReport) {
	fmt.Fprintf(w, "%s (%s)\n", r.Message, r.Date)
	fmt.Fprintf(w, "Users checked:\t%d\n", r.UsersChecked)
	fmt.Fprintf(w, "Alerts sent:\t%d\n", r.AlertsSent)
	fmt.Fprintf(w, "Failures:\t%d\n", r.Failures)

	if len(r.Alerts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n  USER\tTOTAL\tNOTIFIED\n")
	for _, d := range r.Alerts {
		fmt.Fprintf(w, "  %s\t$%s\t%t\n", d.UserID, d.Total.StringFixed(2), d.Notified)
	}
}
