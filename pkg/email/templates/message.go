package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Action is an optional call-to-action button.
type Action struct {
	Label string
	URL   string
}

// MessageData is the content of a plain notification email.
type MessageData struct {
	Title      string
	Greeting   string
	Paragraphs []string
	Action     *Action
	Footer     string
}

// Message renders a minimal, inline-styled notification layout.
// All text is escaped; Action.URL is sanitized through templ.URL.
func Message(d MessageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.raw(`<!doctype html><html><head><meta charset="utf-8"><title>`)
		ew.text(d.Title)
		ew.raw(`</title></head><body style="font-family:sans-serif;color:#222;max-width:560px;margin:0 auto;padding:24px">`)
		ew.raw(`<h1 style="font-size:20px">`)
		ew.text(d.Title)
		ew.raw(`</h1>`)
		if d.Greeting != "" {
			ew.raw(`<p>`)
			ew.text(d.Greeting)
			ew.raw(`</p>`)
		}
		for _, p := range d.Paragraphs {
			ew.raw(`<p>`)
			ew.text(p)
			ew.raw(`</p>`)
		}
		if d.Action != nil && d.Action.URL != "" {
			ew.raw(`<p><a href="`)
			ew.text(string(templ.URL(d.Action.URL)))
			ew.raw(`" style="display:inline-block;padding:10px 16px;background:#3b5bdb;color:#fff;text-decoration:none;border-radius:4px">`)
			ew.text(d.Action.Label)
			ew.raw(`</a></p>`)
		}
		if d.Footer != "" {
			ew.raw(`<p style="font-size:12px;color:#888">`)
			ew.text(d.Footer)
			ew.raw(`</p>`)
		}
		ew.raw(`</body></html>`)
		return ew.err
	})
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) raw(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

func (e *errWriter) text(s string) {
	e.raw(templ.EscapeString(s))
}
