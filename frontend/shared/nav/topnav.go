package nav

import (
	"fmt"
	"html"
	"strings"

	"cuttracker/models"
)

// TopNavData is shared with page renderers.
type TopNavData struct {
	Username string
	Role     string
	Links    []Link
}

type Link struct {
	Label string
	Href  string
}

func BuildTopNavData(session models.Session) TopNavData {
	links := []Link{{Label: "Jobs", Href: "/tasker/jobs"}}
	if session.ScreenPermissions["ADMIN_USERS_LIST_VIEW"] == 1 {
		links = append(links, Link{Label: "Users", Href: "/tasker/admin/users"})
	}
	links = append(links, Link{Label: "Help", Href: "/tasker/help"})
	return TopNavData{Username: session.User.Username, Role: session.User.Role, Links: links}
}

// Render writes the top bar markup.
func (d TopNavData) Render() string {
	var b strings.Builder
	b.WriteString(`<nav class="navbar">`)
	for _, l := range d.Links {
		fmt.Fprintf(&b, `<a class="btn btn-ghost" href="%s">%s</a>`, html.EscapeString(l.Href), html.EscapeString(l.Label))
	}
	if d.Username != "" {
		fmt.Fprintf(&b, `<span class="ml-auto">%s (%s)</span><form method="post" action="/logout"><button class="btn btn-sm" type="submit">Log out</button></form>`,
			html.EscapeString(d.Username), html.EscapeString(d.Role))
	}
	b.WriteString(`</nav>`)
	return b.String()
}
