package usecase

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var digestTemplate = template.Must(template.New("digest").Parse(
	`<h2>Shared Summaries</h2>
<ul>
{{- range .}}
  <li><p>{{.}}</p></li>
{{- end}}
</ul>
`))

// digestRenderer turns summary bodies into the HTML and plain-text parts of
// one message. Bodies are plain text; the template escapes them, so text
// that looks like markup is shown as written.
type digestRenderer struct{}

func newDigestRenderer() *digestRenderer {
	return &digestRenderer{}
}

func (r *digestRenderer) HTML(bodies []string) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, bodies); err != nil {
		return "", fmt.Errorf("usecase: render digest: %w", err)
	}
	return buf.String(), nil
}

func (r *digestRenderer) Text(bodies []string) string {
	var b strings.Builder
	b.WriteString(sharedSummariesSubject)
	b.WriteString("\n")
	for i, body := range bodies {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, body)
	}
	return b.String()
}
