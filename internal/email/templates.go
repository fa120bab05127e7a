package email

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Tafsirchy/thikana/internal/models"
)

// Template ids used by saved search alerts.
const (
	TemplateSavedSearchInstant = "saved_search_instant"
	TemplateSavedSearchDigest  = "saved_search_digest"
	DefaultLocale              = "en-US"
)

// ListingView is the listing shape templates render.
type ListingView struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Area      string  `json:"area"`
	City      string  `json:"city"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Bedrooms  int     `json:"bedrooms"`
	Bathrooms int     `json:"bathrooms"`
	URL       string  `json:"url"`
}

// InstantData feeds TemplateSavedSearchInstant.
type InstantData struct {
	Name       string      `json:"name"`
	SearchName string      `json:"search_name"`
	Listing    ListingView `json:"listing"`
}

// DigestData feeds TemplateSavedSearchDigest. Total counts every match while
// Listings may be truncated; More is the remainder.
type DigestData struct {
	Name       string        `json:"name"`
	SearchName string        `json:"search_name"`
	Total      int           `json:"total"`
	More       int           `json:"more"`
	Listings   []ListingView `json:"listings"`
}

// FallbackTemplates are used when the email_templates collection has no entry.
var FallbackTemplates = map[string]models.EmailTemplate{
	TemplateSavedSearchInstant: {
		TemplateID: TemplateSavedSearchInstant,
		Locale:     DefaultLocale,
		Subject:    `New match for "{{.SearchName}}"`,
		Body: `Hi {{.Name}},

A new property matches your saved search "{{.SearchName}}":

{{with .Listing}}{{.Title}}
{{.Area}}, {{.City}} | {{.Bedrooms}} bed / {{.Bathrooms}} bath | {{printf "%.0f" .Size}} sqft
Price: {{printf "%.0f" .Price}}
{{.URL}}{{end}}

You are receiving this because instant alerts are enabled for this search.
`,
	},
	TemplateSavedSearchDigest: {
		TemplateID: TemplateSavedSearchDigest,
		Locale:     DefaultLocale,
		Subject:    `{{.Total}} new {{if eq .Total 1}}property{{else}}properties{{end}} for "{{.SearchName}}"`,
		Body: `Hi {{.Name}},

New properties matching "{{.SearchName}}":
{{range .Listings}}
- {{.Title}} ({{.Area}}, {{.City}}) {{printf "%.0f" .Price}}
  {{.URL}}{{end}}
{{if gt .More 0}}
...and {{.More}} more.{{end}}
`,
	},
}

// Render executes the subject and body of tmpl against data.
func Render(tmpl models.EmailTemplate, data interface{}) (subject, body string, err error) {
	subject, err = execute(tmpl.TemplateID+":subject", tmpl.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err = execute(tmpl.TemplateID+":body", tmpl.Body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func execute(name, text string, data interface{}) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
