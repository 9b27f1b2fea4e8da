package ops

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/history"
	"github.com/hpungsan/aireach/internal/work"
)

// htmlExportTemplate is a standalone page; analyses are rendered from
// markdown, everything else is escaped.
var htmlExportTemplate = template.Must(template.New("export").Funcs(template.FuncMap{
	"formatTime": formatTime,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Reading history</title>
<style>
body { font-family: Georgia, serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
article { border-top: 1px solid #ddd; padding: 1rem 0; }
.meta { color: #777; font-size: 0.85rem; }
blockquote { border-left: 3px solid #ccc; margin: 0.5rem 0; padding-left: 0.75rem; color: #555; }
.manual { color: #999; font-style: italic; }
</style>
</head>
<body>
<h1>Reading history</h1>
<p class="meta">{{.Count}} record(s), exported {{formatTime .ExportedAt}}</p>
{{range .Entries}}
<article>
<h2>{{.Title}}</h2>
<p class="meta">{{.Author}} &middot; {{formatTime .CreatedAt}}</p>
{{if .Manual}}<p class="manual">{{.Excerpt}}</p>{{else}}<blockquote>{{.Excerpt}}</blockquote>
<div class="analysis">{{.Analysis}}</div>{{end}}
</article>
{{end}}
</body>
</html>
`))

type htmlExportPage struct {
	Count      int
	ExportedAt time.Time
	Entries    []htmlExportEntry
}

type htmlExportEntry struct {
	Title     string
	Author    string
	Excerpt   string
	Analysis  template.HTML
	CreatedAt time.Time
	Manual    bool
}

// writeHTML renders the whole history as one HTML page.
func writeHTML(ctx context.Context, w io.Writer, store *history.Store, now time.Time) (int, error) {
	page := htmlExportPage{ExportedAt: now}

	n, err := store.Export(ctx, func(r *work.Record) error {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled("export")
		}
		page.Entries = append(page.Entries, htmlExportEntry{
			Title:     r.Title,
			Author:    r.Author,
			Excerpt:   r.Excerpt,
			Analysis:  renderMarkdown(r.AnalysisText),
			CreatedAt: r.CreatedAt,
			Manual:    r.IsManual(),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	page.Count = n

	if err := htmlExportTemplate.Execute(w, page); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// renderMarkdown converts markdown to HTML with goldmark. Raw HTML in the
// source is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a time as "2006-01-02 15:04" UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
