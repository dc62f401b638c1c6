package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/scoring"
)

var titleCaser = cases.Title(language.English)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List scored routes",
	Long:  "Scores every catalogue route and prints them safest first. --explain attaches explanations, which may spend AI call budget.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		explainFlag, _ := cmd.Flags().GetBool("explain")
		asJSON, _ := cmd.Flags().GetBool("json")
		criteriaFlag, _ := cmd.Flags().GetStringSlice("criteria")

		if len(criteriaFlag) > 0 {
			criteria, err := scoring.ParseCriteria(criteriaFlag)
			if err != nil {
				return err
			}
			ranked := env.Engine.RankRoutes(ctx, criteria)
			if asJSON {
				return writeJSONOut(os.Stdout, ranked)
			}
			formatRankedList(os.Stdout, ranked)
			return nil
		}

		var routes []model.ScoredRoute
		if explainFlag {
			routes = env.Engine.ScoreAllRoutes(ctx)
		} else {
			routes = env.Engine.ScoreCatalogue(ctx)
		}

		if asJSON {
			return writeJSONOut(os.Stdout, routes)
		}
		formatRoutesList(os.Stdout, routes)
		return nil
	},
}

var routeCmd = &cobra.Command{
	Use:   "route <route-id>",
	Short: "Score and explain a single route",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		sr, err := env.Engine.ExplainRoute(ctx, args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSONOut(os.Stdout, sr)
		}
		formatRouteDetail(os.Stdout, sr)
		return nil
	},
}

// formatRoutesList writes a tabular list of scored routes to w.
func formatRoutesList(out io.Writer, routes []model.ScoredRoute) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSCORE\tNOW\tCATEGORY\tTIME\tDISTANCE\tFEEDBACK")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t---\t--------\t----\t--------\t--------")

	for _, r := range routes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%d\n",
			r.ID,
			truncate(r.Name, 34),
			r.SafetyScore,
			r.TimeAdjustedScore,
			titleCaser.String(string(r.Category.Level)),
			dash(r.EstimatedTime),
			dash(r.Distance),
			r.FeedbackCount,
		)
	}
	_ = w.Flush()

	for _, r := range routes {
		if r.Explanation == nil {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s [%s]\n  %s\n", r.Name, r.Explanation.Provenance, r.Explanation.Text)
	}
}

// formatRankedList writes routes ordered by composite score to w.
func formatRankedList(out io.Writer, routes []model.RankedRoute) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCOMPOSITE\tSAFETY\tTIME\tDISTANCE")
	_, _ = fmt.Fprintln(w, "--\t----\t---------\t------\t----\t--------")

	for _, r := range routes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID,
			truncate(r.Name, 34),
			r.Composite,
			r.SafetyNormalized,
			r.TimeNormalized,
			r.DistanceNormalized,
		)
	}
	_ = w.Flush()
}

// formatRouteDetail writes one route with its coverage and explanation.
func formatRouteDetail(out io.Writer, r model.ScoredRoute) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Route:\t%s (%s)\n", r.Name, r.ID)
	if r.Description != "" {
		_, _ = fmt.Fprintf(w, "Description:\t%s\n", r.Description)
	}
	_, _ = fmt.Fprintf(w, "Safety score:\t%d/100 (base %d)\n", r.SafetyScore, r.BaseScore)
	_, _ = fmt.Fprintf(w, "Right now:\t%d/100\n", r.TimeAdjustedScore)
	_, _ = fmt.Fprintf(w, "Category:\t%s\n", titleCaser.String(string(r.Category.Level)))
	_, _ = fmt.Fprintf(w, "Feedback:\t%d\n", r.FeedbackCount)
	for _, kind := range model.InfrastructureKinds {
		_, _ = fmt.Fprintf(w, "  %s:\t%d (%d%% of cap)\n", kind, r.Infrastructure.Count(kind), r.Coverage[kind])
	}
	_ = w.Flush()

	if r.Explanation != nil {
		_, _ = fmt.Fprintf(out, "\n%s explanation:\n%s\n", titleCaser.String(string(r.Explanation.Provenance)), r.Explanation.Text)
	}
}

func writeJSONOut(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func init() {
	routesCmd.Flags().Bool("explain", false, "attach explanations (may spend AI call budget)")
	routesCmd.Flags().Bool("json", false, "print JSON instead of a table")
	routesCmd.Flags().StringSlice("criteria", nil, "rank by composite of criteria: safety, time, distance")
	routeCmd.Flags().Bool("json", false, "print JSON instead of text")

	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(routeCmd)
}
