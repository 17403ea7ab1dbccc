package login

import (
	"github.com/a-h/templ"

	sharedhtml "cuttracker/frontend/shared/html"
)

const loginForm = `<form method="post" action="/login">
<label>Username <input name="username" autocomplete="username" required autofocus></label>
<label>Password <input name="password" type="password" autocomplete="current-password" required></label>
<button class="btn btn-primary" type="submit">Sign in</button>
</form></main>`

func GetLoginScreen(errorMessage string) templ.Component {
	return sharedhtml.Layout("Sign in",
		templ.Raw(`<main class="login"><h1>Cut Tracker</h1>`),
		sharedhtml.Flash("", errorMessage),
		templ.Raw(loginForm),
	)
}
