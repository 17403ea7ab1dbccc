package html

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	sessioncontext "cuttracker/frontend/shared/context"
	"cuttracker/models"
)

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestLayoutEscapesTitleAndOrdersParts(t *testing.T) {
	out := render(t, context.Background(), Layout("A<B", templ.Raw("<p>one</p>"), templ.Raw("<p>two</p>")))

	if !strings.Contains(out, "<title>A&lt;B</title>") {
		t.Fatalf("expected escaped title, got %s", out)
	}
	one, two, script := strings.Index(out, "<p>one</p>"), strings.Index(out, "<p>two</p>"), strings.Index(out, "X-CSRF-Token")
	if one < 0 || two < one || script < two || !strings.HasSuffix(out, "</body></html>") {
		t.Fatalf("unexpected layout order: %s", out)
	}
}

func TestFlashEscapesMessages(t *testing.T) {
	out := render(t, context.Background(), Flash("saved <ok>", ""))
	if out != `<div class="alert alert-success">saved &lt;ok&gt;</div>` {
		t.Fatalf("unexpected flash %q", out)
	}
	if out := render(t, context.Background(), Flash("", "")); out != "" {
		t.Fatalf("expected empty flash, got %q", out)
	}
}

func TestSessionPageBuildsNavFromSession(t *testing.T) {
	session := models.Session{User: models.User{Username: "op1", Role: "operator"}}
	ctx := sessioncontext.NewContextWithSession(context.Background(), session)

	out := render(t, ctx, SessionPage("Jobs", templ.Raw("<h1>Jobs</h1>")))
	if !strings.Contains(out, "op1 (operator)") || !strings.Contains(out, `<main class="container"><h1>Jobs</h1></main>`) {
		t.Fatalf("unexpected page %s", out)
	}
	if strings.Contains(out, "/tasker/admin/users") {
		t.Fatalf("operator nav must not link to users")
	}

	anon := render(t, context.Background(), SessionPage("Jobs"))
	if strings.Contains(anon, "Log out") {
		t.Fatalf("expected no user block without a session")
	}
}
