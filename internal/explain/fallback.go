package explain

import (
	"bytes"
	"hash/fnv"
	"text/template"

	"github.com/sells-group/saferoute/internal/model"
)

// fallbackView is the data the fallback templates render.
type fallbackView struct {
	Name           string
	Score          int
	Infrastructure model.Infrastructure

	Assessment string
	Risk       string
	Police     string
	Cameras    string
	Lighting   string
	Vigilance  string
	Transit    string
	Crowd      string
	Companion  bool
	NoFeatures bool
}

var fallbackTemplates = []*template.Template{
	template.Must(template.New("assessment").Parse(
		`Safety assessment for {{.Name}}
Safety score: {{.Score}}/100

Assessment: {{.Assessment}}

Key factors:
- Police presence: {{.Police}}
- Surveillance: {{.Cameras}}
- Lighting: {{.Lighting}}

Recommendations:
{{if .Companion}}- Travel with a companion
{{end}}- Share your live location
- Stay on main roads
- {{.Transit}}
`)),
	template.Must(template.New("report").Parse(
		`Safety report for {{.Name}}

Safety features detected:
{{if .NoFeatures}}- No monitored safety features detected
{{end}}{{with .Infrastructure}}{{if .PoliceStation}}- Police stations: {{.PoliceStation}}
{{end}}{{if .PoliceBooth}}- Police booths: {{.PoliceBooth}}
{{end}}{{if .CCTV}}- CCTV cameras: {{.CCTV}}
{{end}}{{if .Streetlight}}- Streetlights: {{.Streetlight}}
{{end}}{{if .ATM}}- ATMs and banks: {{.ATM}}
{{end}}{{end}}
Risk level: {{.Risk}}

Recommendations:
1. {{.Vigilance}}
2. Use well-lit pathways
3. Stay in contact with someone during the walk
4. {{.Crowd}}

Final score: {{.Score}}/100
`)),
}

// Fallback builds the templated explanation for a route. The template is
// chosen from the route id, so a route always gets the same one.
func Fallback(route model.ScoredRoute) model.Explanation {
	return model.Explanation{
		Text:       renderFallback(route),
		Provenance: model.ProvenanceFallback,
	}
}

func renderFallback(route model.ScoredRoute) string {
	view := newFallbackView(route)

	var buf bytes.Buffer
	tmpl := fallbackTemplates[templateIndex(route.ID, len(fallbackTemplates))]
	if err := tmpl.Execute(&buf, view); err != nil {
		// Templates are static and parsed at init; this is unreachable
		// for well-formed views.
		return "Safety score for " + view.Name + " is available, but no explanation could be generated."
	}
	return buf.String()
}

func newFallbackView(route model.ScoredRoute) fallbackView {
	inf := route.Infrastructure
	score := route.SafetyScore

	v := fallbackView{
		Name:           route.Name,
		Score:          score,
		Infrastructure: inf,
		Police:         pick(inf.PoliceStation > 0, "Available", "Limited"),
		Cameras:        pick(inf.CCTV > 2, "Adequate coverage", "Needs improvement"),
		Lighting:       pick(inf.Streetlight > 3, "Well-lit", "Dark sections present"),
		Vigilance:      pick(score < 60, "Enhanced vigilance recommended", "Standard precautions advised"),
		Transit:        pick(score < 40, "Consider alternative transport", "Remain alert"),
		Crowd:          pick(inf.ATM > 2, "Commercial areas provide crowd safety", "Minimize isolated travel"),
		Companion:      score < 50,
		NoFeatures:     inf.Total() == 0,
	}
	if v.Name == "" {
		v.Name = "Unknown Route"
	}

	switch {
	case score >= 67:
		v.Assessment, v.Risk = "Route has good safety infrastructure", "Low"
	case score >= 34:
		v.Assessment, v.Risk = "Moderate safety with some concerns", "Medium"
	default:
		v.Assessment, v.Risk = "High risk areas identified", "High"
	}
	return v
}

// templateIndex maps a route id to a template: the id's trailing digits mod
// n, or an FNV-1a hash of the id when it has no trailing digits.
func templateIndex(id string, n int) int {
	end := len(id)
	start := end
	for start > 0 && id[start-1] >= '0' && id[start-1] <= '9' {
		start--
	}

	if start < end {
		idx := 0
		for i := start; i < end; i++ {
			idx = (idx*10 + int(id[i]-'0')) % n
		}
		return idx
	}

	h := fnv.New32a()
	h.Write([]byte(id)) //nolint:errcheck
	return int(h.Sum32() % uint32(n))
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
