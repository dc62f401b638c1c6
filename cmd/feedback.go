package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/saferoute/internal/model"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Submit and inspect route feedback",
}

// -- feedback submit --

var feedbackSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record a safety rating for a route",
	Long:  "Records a rating of 1 (safe), 0 (okay) or -2 (unsafe) for a route.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		routeID, _ := cmd.Flags().GetString("route")
		comments, _ := cmd.Flags().GetString("comments")
		issues, _ := cmd.Flags().GetStringSlice("issue")

		in := model.FeedbackInput{RouteID: routeID, Comments: comments, Issues: issues}
		if cmd.Flags().Changed("rating") {
			rating, _ := cmd.Flags().GetInt("rating")
			in.Rating = &rating
		}

		fb, err := env.Engine.SubmitFeedback(ctx, in)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Recorded %s feedback %s for %s\n", fb.Rating, fb.ID, fb.RouteID)
		return nil
	},
}

// -- feedback list --

var feedbackListCmd = &cobra.Command{
	Use:   "list <route-id>",
	Short: "List feedback for a route in submission order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.Engine.FeedbackForRoute(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "feedback list")
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No feedback found.")
			return nil
		}
		formatFeedbackList(os.Stdout, items)
		return nil
	},
}

// -- feedback summary --

var feedbackSummaryCmd = &cobra.Command{
	Use:   "summary <route-id>",
	Short: "Summarize feedback for a route",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Engine.FeedbackSummary(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "feedback summary")
		}
		formatFeedbackSummary(os.Stdout, summary)
		return nil
	},
}

// formatFeedbackList writes a tabular list of feedback to w.
func formatFeedbackList(out io.Writer, items []model.Feedback) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRATING\tSUBMITTED\tISSUES\tCOMMENTS")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t------\t--------")

	for _, fb := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(fb.ID),
			fb.Rating,
			fb.CreatedAt.Format("2006-01-02 15:04"),
			strings.Join(fb.Issues, ", "),
			truncate(fb.Comments, 40),
		)
	}
	_ = w.Flush()
}

// formatFeedbackSummary writes rating percentages and recent items to w.
func formatFeedbackSummary(out io.Writer, s model.FeedbackSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Route:\t%s\n", s.RouteID)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", s.Count)
	_, _ = fmt.Fprintf(w, "Safe:\t%d%%\n", s.SafePct)
	_, _ = fmt.Fprintf(w, "Okay:\t%d%%\n", s.NeutralPct)
	_, _ = fmt.Fprintf(w, "Unsafe:\t%d%%\n", s.UnsafePct)
	_ = w.Flush()

	if len(s.Recent) > 0 {
		_, _ = fmt.Fprintln(out, "\nMost recent:")
		formatFeedbackList(out, s.Recent)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	feedbackSubmitCmd.Flags().String("route", "", "route id")
	feedbackSubmitCmd.Flags().Int("rating", 0, "rating: 1 safe, 0 okay, -2 unsafe")
	feedbackSubmitCmd.Flags().String("comments", "", "free-text comments")
	feedbackSubmitCmd.Flags().StringSlice("issue", nil, "issue tag (repeatable)")

	feedbackCmd.AddCommand(feedbackSubmitCmd)
	feedbackCmd.AddCommand(feedbackListCmd)
	feedbackCmd.AddCommand(feedbackSummaryCmd)
	rootCmd.AddCommand(feedbackCmd)
}
