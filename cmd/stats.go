package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/saferoute/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the AI explanation call budget",
	Long:  "Shows the explanation client's call budget. --test probes the provider, which spends one call.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		if test, _ := cmd.Flags().GetBool("test"); test {
			status := env.Engine.TestConnection(ctx)
			_, _ = fmt.Fprintf(os.Stdout, "Connection: %s (%s) %s\n\n", status.Mode, status.Model, status.Message)
		}

		formatQuotaStats(os.Stdout, env.Engine.QuotaStats())
		return nil
	},
}

// formatQuotaStats writes the call budget state to w.
func formatQuotaStats(out io.Writer, s model.QuotaStats) {
	mode := "live"
	switch {
	case !s.Enabled:
		mode = "disabled"
	case s.UseMock || s.MockMode:
		mode = "mock"
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Mode:\t%s\n", mode)
	_, _ = fmt.Fprintf(w, "Model:\t%s\n", s.Model)
	_, _ = fmt.Fprintf(w, "Calls used:\t%d of %d\n", s.CallCount, s.Budget)
	_, _ = fmt.Fprintf(w, "Remaining:\t%d\n", s.Remaining)
	if s.LastCallAt != nil {
		_, _ = fmt.Fprintf(w, "Last call:\t%s\n", s.LastCallAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func init() {
	statsCmd.Flags().Bool("test", false, "probe the AI provider (spends one call)")
	rootCmd.AddCommand(statsCmd)
}
