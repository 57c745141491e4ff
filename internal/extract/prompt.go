package extract

import (
	"strings"
	"text/template"
	"time"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`You are an intelligent calendar assistant. Extract event details from the user's text and return them as a JSON object.
The current date and time is {{.Now}} ({{.Weekday}}, timezone {{.Zone}}). Resolve relative dates such as "next Tuesday" against it.

Rules:
1. title: a descriptive title. Include people's names if mentioned.
2. date: the event date as YYYY-MM-DD.
3. time: the local start time as HH:mm (24-hour), or null when the event is all day or no time is given.
   Default times when only the meal is named: dinner 18:30, brunch 11:00, lunch 12:30.
4. endTime: HH:mm only when the text states an end time or a duration ("from 2-4pm", "for 90 minutes"); otherwise null.
   If the text says "all day", set both time and endTime to null.
5. brief: true for short events such as "call with", "quick sync" or "chat"; otherwise false.
6. location: physical address if present. For keywords like "meetup" or "dinner" without an address, use an empty string.
7. description: any remaining useful detail, or an empty string.
{{- if .Hints}}

Specific rules (highest priority):
{{- range $i, $h := .Hints}}
- {{$h}}
{{- end}}
{{- end}}

Text: {{printf "%q" .Text}}
`))

type promptData struct {
	Now     string
	Weekday string
	Zone    string
	Hints   []string
	Text    string
}

// BuildPrompt renders the extraction prompt for text, anchored at ref.
func BuildPrompt(text string, ref time.Time, hints []string) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, promptData{
		Now:     ref.Format(time.RFC3339),
		Weekday: ref.Weekday().String(),
		Zone:    ref.Location().String(),
		Hints:   hints,
		Text:    text,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
