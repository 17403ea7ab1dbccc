package html

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	sessioncontext "cuttracker/frontend/shared/context"
	"cuttracker/frontend/shared/nav"
)

// Layout renders the document shell around body.
func Layout(title string, body ...templ.Component) templ.Component {
	head := templ.Raw(`<!doctype html><html><head><meta charset="utf-8"><title>` + templ.EscapeString(title) +
		`</title><link rel="stylesheet" href="/assets/app.css"></head><body>`)
	parts := append([]templ.Component{head}, body...)
	parts = append(parts, CSRFScript(), templ.Raw(`</body></html>`))
	return templ.Join(parts...)
}

// Page wraps body in the shared layout and top nav.
func Page(title string, topNav nav.TopNavData, body templ.Component) templ.Component {
	return Layout(title,
		templ.Raw(topNav.Render()),
		templ.Raw(`<main class="container">`),
		body,
		templ.Raw(`</main>`),
	)
}

// SessionPage is Page with the top nav built from the request session.
func SessionPage(title string, body ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var topNav nav.TopNavData
		if session, ok := sessioncontext.GetSessionFromContext(ctx); ok {
			topNav = nav.BuildTopNavData(session)
		}
		return Page(title, topNav, templ.Join(body...)).Render(ctx, w)
	})
}

// Fragment renders the markup written by build. Callers escape their own
// values with templ.EscapeString.
func Fragment(build func(ctx context.Context, b *strings.Builder)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		build(ctx, &b)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Flash renders the status/error banner used after redirects.
func Flash(status, errMsg string) templ.Component {
	out := ""
	if status != "" {
		out += `<div class="alert alert-success">` + templ.EscapeString(status) + `</div>`
	}
	if errMsg != "" {
		out += `<div class="alert alert-error">` + templ.EscapeString(errMsg) + `</div>`
	}
	return templ.Raw(out)
}
