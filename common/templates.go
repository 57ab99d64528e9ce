package common

import (
	"html/template"
	"time"

	"portfolio/config"
	"portfolio/content"
)

// TemplateFuncs is the func map shared by every HTML view.
func TemplateFuncs(cfg *config.Config) template.FuncMap {
	return template.FuncMap{
		"now": func() time.Time {
			return time.Now()
		},
		"domain": func() string {
			return cfg.Domain
		},
		"siteName": func() string {
			return cfg.SiteName
		},
		"formatDate": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
		"isoDate": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"paragraph": content.RenderInline,
	}
}
