package adminusers

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	sharedhtml "cuttracker/frontend/shared/html"
)

var esc = templ.EscapeString[string]

func UsersListPage(data PageData) templ.Component {
	return sharedhtml.SessionPage("Users",
		templ.Raw(`<h1>Users</h1>`),
		sharedhtml.Flash(data.Status, data.ErrorMessage),
		usersTable(data.Users),
		createUserForm(data.Roles),
	)
}

func usersTable(users []UserView) templ.Component {
	return sharedhtml.Fragment(func(_ context.Context, b *strings.Builder) {
		b.WriteString(`<table class="table"><thead><tr><th>ID</th><th>Username</th><th>Role</th><th>Created</th></tr></thead><tbody>`)
		for _, u := range users {
			fmt.Fprintf(b, `<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				u.ID, esc(u.Username), esc(u.Role), esc(u.CreatedAt))
		}
		b.WriteString(`</tbody></table>`)
	})
}

func createUserForm(roles []string) templ.Component {
	return sharedhtml.Fragment(func(_ context.Context, b *strings.Builder) {
		b.WriteString(`<h2>Add user</h2><form method="post" action="/tasker/admin/users">`)
		b.WriteString(`<label>Username <input name="username" required></label>`)
		b.WriteString(`<label>Password <input name="password" type="password" required></label>`)
		b.WriteString(`<label>Role <select name="role">`)
		for _, role := range roles {
			fmt.Fprintf(b, `<option value="%s">%s</option>`, esc(role), esc(role))
		}
		b.WriteString(`</select></label><button class="btn btn-primary" type="submit">Create</button></form>`)
	})
}
