package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/saferoute/internal/model"
)

var compareCmd = &cobra.Command{
	Use:   "compare <route-id> <route-id> [route-id...]",
	Short: "Recommend the safest of two or more routes",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		cmp, err := env.Engine.CompareRoutes(ctx, args)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSONOut(os.Stdout, cmp)
		}
		formatComparison(os.Stdout, cmp)
		return nil
	},
}

// formatComparison writes the recommendation followed by each route's score.
func formatComparison(out io.Writer, cmp model.Comparison) {
	_, _ = fmt.Fprintf(out, "Recommended: %s (%s, %d/100)\n\n", cmp.BestRouteName, cmp.BestRouteID, cmp.BestScore)
	_, _ = fmt.Fprintln(out, cmp.Narrative)
	if cmp.Analysis != "" {
		_, _ = fmt.Fprintf(out, "\n%s\n", cmp.Analysis)
	}
}

func init() {
	compareCmd.Flags().Bool("json", false, "print JSON instead of text")
	rootCmd.AddCommand(compareCmd)
}
