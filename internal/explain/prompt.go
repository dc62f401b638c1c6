package explain

import (
	"fmt"
	"strings"

	"github.com/sells-group/saferoute/internal/model"
)

func routePrompt(route model.ScoredRoute) string {
	inf := route.Infrastructure
	var b strings.Builder
	fmt.Fprintf(&b, "Safety analysis for a pedestrian walking alone at night.\n")
	fmt.Fprintf(&b, "Route: %s\n", route.Name)
	if route.Description != "" {
		fmt.Fprintf(&b, "Area: %s\n", route.Description)
	}
	fmt.Fprintf(&b, "Score: %d/100 (%s)\n\n", route.SafetyScore, route.Category.Label)
	fmt.Fprintf(&b, "Police stations: %d\n", inf.PoliceStation)
	fmt.Fprintf(&b, "Police booths: %d\n", inf.PoliceBooth)
	fmt.Fprintf(&b, "CCTV cameras: %d\n", inf.CCTV)
	fmt.Fprintf(&b, "Streetlights: %d\n", inf.Streetlight)
	fmt.Fprintf(&b, "ATMs/Banks: %d\n\n", inf.ATM)
	b.WriteString("Provide a brief safety assessment with 2-3 recommendations. Keep the response under 150 words.")
	return b.String()
}

func comparePrompt(routes []model.ScoredRoute) string {
	var b strings.Builder
	b.WriteString("Compare these pedestrian routes for night-time safety:\n")
	for _, r := range routes {
		fmt.Fprintf(&b, "- %s: %d/100 (%d CCTV, %d police booths, %d streetlights)\n",
			r.Name, r.SafetyScore, r.Infrastructure.CCTV, r.Infrastructure.PoliceBooth, r.Infrastructure.Streetlight)
	}
	b.WriteString("\nWhich is safest and why? Answer in under 120 words.")
	return b.String()
}
