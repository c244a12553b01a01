// Package views embeds the portal's HTML templates.
package views

import (
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var files embed.FS

// Funcs are available to every template.
var Funcs = template.FuncMap{
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("Mon, Jan 2 2006 15:04")
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("Jan 2, 2006")
	},
	"isodate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02")
	},
	"clock": func(t time.Time) string { return t.UTC().Format("15:04") },
	"minutes": func(m int) string {
		return time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// Load parses every embedded template. Pages reference the shared
// "header" and "footer" blocks from layout.html.
func Load() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(files, "templates/*.html")
}
