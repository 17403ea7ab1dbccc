package http

import (
	"net/http"

	adminusers "cuttracker/frontend/adminUsers"
	"cuttracker/frontend/help"
	"cuttracker/frontend/jobs"
	"cuttracker/frontend/login"
	"cuttracker/frontend/materials"
	"cuttracker/frontend/recuts"
	sessioncontext "cuttracker/frontend/shared/context"
	"cuttracker/infrastructure/rbac"

	"github.com/go-chi/chi/v5"
)

var (
	allRoles    = []string{rbac.RoleAdmin, rbac.RoleOperator, rbac.RoleViewer}
	editorRoles = []string{rbac.RoleAdmin, rbac.RoleOperator}
)

// RegisterLoginRoutes registers login/logout routes.
func (s *Server) RegisterLoginRoutes() {
	s.router.Get("/login", login.GetLoginScreenHandler)
	s.router.Post("/login", login.CreateLoginHandler(s.DB, s.SessionCache, s.UserCache, s.opts.SessionTTL))
	s.router.Post("/logout", login.LogoutHandler(s.DB, s.SessionCache))
}

// RegisterAdminRoutes registers admin-only routes.
func (s *Server) RegisterAdminRoutes(r chi.Router) chi.Router {
	s.Rbac.Add(rbac.RoleAdmin, "ADMIN_USERS_LIST_VIEW", http.MethodGet, "/tasker/admin/users")
	r.Get("/admin/users", adminusers.UsersPageQueryHandler(s.DB))
	s.Rbac.Add(rbac.RoleAdmin, "ADMIN_USERS_CREATE", http.MethodPost, "/tasker/admin/users")
	r.Post("/admin/users", adminusers.CreateUserCommandHandler(s.DB, s.Audit, s.UserCache))
	return r
}

// RegisterFrontendRoutes registers the HTML pages and downloads.
func (s *Server) RegisterFrontendRoutes(r chi.Router) chi.Router {
	s.Rbac.Grant(allRoles, "JOBS_LIST_VIEW", http.MethodGet, "/tasker/jobs")
	r.Get("/jobs", jobs.JobsPageQueryHandler(s.DB))
	s.Rbac.Grant(editorRoles, "JOBS_CREATE", http.MethodPost, "/tasker/jobs")
	r.Post("/jobs", jobs.CreateJobCommandHandler(s.DB, s.Audit, s.Hub))
	s.Rbac.Grant(allRoles, "JOB_DETAIL_VIEW", http.MethodGet, "/tasker/jobs/*")
	r.Get("/jobs/{id}", jobs.JobDetailPageQueryHandler(s.DB))
	s.Rbac.Grant(editorRoles, "JOB_STATUS_EDIT", http.MethodPost, "/tasker/jobs/*/status")
	r.Post("/jobs/{id}/status", jobs.UpdateJobStatusCommandHandler(s.DB, s.Audit, s.Hub))
	s.Rbac.Add(rbac.RoleAdmin, "JOB_DELETE", http.MethodPost, "/tasker/jobs/*/delete")
	r.Post("/jobs/{id}/delete", jobs.DeleteJobCommandHandler(s.DB, s.Audit, s.Hub))
	s.Rbac.Grant(allRoles, "JOB_TRAVELER_PRINT", http.MethodGet, "/tasker/jobs/*/traveler.pdf")
	r.Get("/jobs/{id}/traveler.pdf", jobs.TravelerPDFQueryHandler(s.DB))

	s.Rbac.Grant(allRoles, "HELP_VIEW", http.MethodGet, "/tasker/help")
	r.Get("/help", help.HelpPageQueryHandler())

	s.Rbac.Grant(allRoles, "EXPORT_JOB_XLSX", http.MethodGet, "/tasker/exports/jobs/*")
	r.Get("/exports/jobs/{id}.xlsx", jobs.JobExportXLSXHandler(s.DB))
	s.Rbac.Grant(allRoles, "EXPORT_JOBS_CSV", http.MethodGet, "/tasker/exports/jobs.csv")
	r.Get("/exports/jobs.csv", jobs.JobsExportCSVHandler(s.DB))
	return r
}

// RegisterAPIRoutes registers the JSON endpoints used by the sheet grid and
// the Go client.
func (s *Server) RegisterAPIRoutes(r chi.Router) chi.Router {
	s.Rbac.Grant(allRoles, "API_JOB_VIEW", http.MethodGet, "/tasker/api/jobs/*")
	r.Get("/api/jobs/{id}", jobs.JobDetailQueryHandler(s.DB))
	s.Rbac.Grant(editorRoles, "API_CUTLIST_CREATE", http.MethodPost, "/tasker/api/jobs/*/cutlists")
	r.Post("/api/jobs/{id}/cutlists", jobs.CreateCutlistCommandHandler(s.DB, s.Audit, s.Hub))

	s.Rbac.Grant(editorRoles, "API_MATERIAL_CREATE", http.MethodPost, "/tasker/api/cutlists/*/materials")
	r.Post("/api/cutlists/{id}/materials", materials.CreateMaterialCommandHandler(s.Sheets, s.Hub))
	s.Rbac.Grant(editorRoles, "API_MATERIAL_EDIT", http.MethodPut, "/tasker/api/materials/*")
	r.Put("/api/materials/{id}", materials.UpdateMaterialCommandHandler(s.Sheets, s.Hub))
	s.Rbac.Add(rbac.RoleAdmin, "API_MATERIAL_DELETE", http.MethodDelete, "/tasker/api/materials/*")
	r.Delete("/api/materials/{id}", materials.DeleteMaterialCommandHandler(s.Sheets, s.Hub))

	s.Rbac.Grant(editorRoles, "SHEET_STATUS_EDIT", http.MethodPost, "/tasker/api/materials/*/sheets/*/status")
	r.Post("/api/materials/{id}/sheets/{index}/status", materials.SetSheetStatusCommandHandler(s.Sheets, s.Hub))
	s.Rbac.Grant(editorRoles, "SHEETS_ADD", http.MethodPost, "/tasker/api/materials/*/sheets")
	r.Post("/api/materials/{id}/sheets", materials.AddSheetsCommandHandler(s.Sheets, s.Hub))
	s.Rbac.Grant(editorRoles, "SHEET_DELETE", http.MethodDelete, "/tasker/api/materials/*/sheets/*")
	r.Delete("/api/materials/{id}/sheets/{index}", materials.DeleteSheetCommandHandler(s.Sheets, s.Hub))

	s.Rbac.Grant(allRoles, "RECUTS_LIST_VIEW", http.MethodGet, "/tasker/api/materials/*/recuts")
	r.Get("/api/materials/{id}/recuts", recuts.ListRecutsQueryHandler(s.Sheets))
	s.Rbac.Grant(editorRoles, "RECUT_CREATE", http.MethodPost, "/tasker/api/materials/*/recuts")
	r.Post("/api/materials/{id}/recuts", recuts.CreateRecutCommandHandler(s.Sheets, s.Hub))
	s.Rbac.Grant(editorRoles, "RECUT_SHEET_STATUS_EDIT", http.MethodPost, "/tasker/api/recuts/*/sheets/*/status")
	r.Post("/api/recuts/{id}/sheets/{index}/status", recuts.SetRecutSheetStatusCommandHandler(s.Sheets, s.Hub))
	s.Rbac.Grant(editorRoles, "RECUT_DELETE", http.MethodDelete, "/tasker/api/recuts/*")
	r.Delete("/api/recuts/{id}", recuts.DeleteRecutCommandHandler(s.Sheets, s.Hub))
	return r
}

// RegisterRealtimeRoutes registers the websocket and SSE event streams.
func (s *Server) RegisterRealtimeRoutes(r chi.Router) chi.Router {
	s.Rbac.Grant(allRoles, "REALTIME_WS", http.MethodGet, "/tasker/ws")
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.Hub.ServeWebsocket(w, r, sessioncontext.UserID(r.Context()))
	})
	s.Rbac.Grant(allRoles, "REALTIME_SSE", http.MethodGet, "/tasker/events")
	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		s.Hub.ServeSSE(w, r, sessioncontext.UserID(r.Context()))
	})
	return r
}
