package adminusers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"cuttracker/frontend/shared/context"
	"cuttracker/infrastructure/audit"
	"cuttracker/infrastructure/cache"
	"cuttracker/infrastructure/sqlite"
)

// UsersPageQueryHandler renders the admin users list page.
func UsersPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := context.GetSessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		data, err := LoadUsersPageData(r.Context(), db)
		if err != nil {
			slog.Error("admin users: failed to load data", slog.Any("err", err))
			http.Error(w, "failed to load users", http.StatusInternalServerError)
			return
		}

		data.Status = r.URL.Query().Get("status")
		data.ErrorMessage = r.URL.Query().Get("error")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := UsersListPage(data).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render users page", http.StatusInternalServerError)
			return
		}
	}
}

func CreateUserCommandHandler(db *sqlite.DB, auditSvc *audit.Service, userCache *cache.UserCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := context.GetSessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/tasker/admin/users?error="+url.QueryEscape("invalid form data"), http.StatusSeeOther)
			return
		}

		username := r.FormValue("username")
		err := CreateUser(r.Context(), db, auditSvc, session.UserID, username, r.FormValue("password"), r.FormValue("role"))
		if err != nil {
			if !errors.Is(err, ErrUsernameExists) {
				slog.Warn("admin users: create rejected", slog.String("username", username), slog.Any("err", err))
			}
			// validation and password policy messages are safe to show
			http.Redirect(w, r, "/tasker/admin/users?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
			return
		}
		if userCache != nil {
			userCache.Delete(username)
		}

		http.Redirect(w, r, "/tasker/admin/users?status="+url.QueryEscape("user created"), http.StatusSeeOther)
	}
}
