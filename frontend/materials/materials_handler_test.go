package materials

import (
	stdcontext "context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	sessioncontext "cuttracker/frontend/shared/context"
	"cuttracker/infrastructure/audit"
	"cuttracker/infrastructure/broadcast"
	"cuttracker/infrastructure/sheets"
	"cuttracker/infrastructure/sqlite"
	"cuttracker/models"
)

type testEnv struct {
	db     *sqlite.DB
	store  *sheets.Store
	hub    *broadcast.Hub
	router chi.Router
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "materials-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(stdcontext.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	err = db.WithWriteTx(stdcontext.Background(), func(ctx stdcontext.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, role) VALUES (1, 'op', 'hash', 'operator')`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO jobs (id, name, customer, status, created_by_user_id) VALUES (4, 'Wardrobe', 'Acme', 'open', 1)`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO cutlists (id, job_id, name) VALUES (2, 4, 'Doors')`)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := sheets.NewStore(db, audit.NewService())
	hub := broadcast.NewHub(broadcast.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			session := models.Session{ID: "s1", UserID: 1, UserRoles: []string{"operator"}}
			next.ServeHTTP(w, req.WithContext(sessioncontext.NewContextWithSession(req.Context(), session)))
		})
	})
	r.Post("/cutlists/{id}/materials", CreateMaterialCommandHandler(store, hub))
	r.Put("/materials/{id}", UpdateMaterialCommandHandler(store, hub))
	r.Delete("/materials/{id}", DeleteMaterialCommandHandler(store, hub))
	r.Post("/materials/{id}/sheets/{index}/status", SetSheetStatusCommandHandler(store, hub))
	r.Post("/materials/{id}/sheets", AddSheetsCommandHandler(store, hub))
	r.Delete("/materials/{id}/sheets/{index}", DeleteSheetCommandHandler(store, hub))

	return testEnv{db: db, store: store, hub: hub, router: r}
}

func (e testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	out := map[string]any{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return rr, out
}

func (e testEnv) material(t *testing.T, total int) models.Material {
	t.Helper()
	change, err := e.store.CreateMaterial(stdcontext.Background(), 1, sheets.MaterialInput{CutlistID: 2, Color: "White", TotalSheets: total})
	if err != nil {
		t.Fatalf("create material: %v", err)
	}
	return change.Material
}

func nextEvent(t *testing.T, c *broadcast.Conn) (string, map[string]any) {
	t.Helper()
	select {
	case frame := <-c.Frames():
		var env struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		if err := json.Unmarshal(frame.Data, &env); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return env.Type, env.Payload
	default:
		t.Fatalf("expected a queued event")
	}
	return "", nil
}

func TestCreateMaterialCommandHandler_CreatesAllPending(t *testing.T) {
	env := newTestEnv(t)
	conn := env.hub.Register(1, broadcast.TransportWebsocket)

	rr, body := env.do(t, http.MethodPost, "/cutlists/2/materials", `{"color":"Walnut","thickness":"18mm","totalSheets":3}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	material := body["material"].(map[string]any)
	statuses := material["sheetStatuses"].([]any)
	if len(statuses) != 3 || statuses[0] != "pending" {
		t.Fatalf("unexpected statuses %v", statuses)
	}

	typ, payload := nextEvent(t, conn)
	if typ != broadcast.EventMaterialCreated || payload["jobId"] != float64(4) || payload["cutlistId"] != float64(2) {
		t.Fatalf("unexpected event %s %v", typ, payload)
	}
}

func TestCreateMaterialCommandHandler_UnknownCutlistIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	rr, body := env.do(t, http.MethodPost, "/cutlists/99/materials", `{"color":"Walnut","totalSheets":3}`)
	if rr.Code != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %v", rr.Code, body)
	}
}

func TestSetSheetStatusCommandHandler_PersistsAndBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	m := env.material(t, 6)
	conn := env.hub.Register(1, broadcast.TransportSSE)

	rr, body := env.do(t, http.MethodPost, "/materials/"+itoa(m.ID)+"/sheets/2/status", `{"status":"cut"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body["ok"] != true || body["completedSheets"] != float64(1) {
		t.Fatalf("unexpected body %v", body)
	}

	typ, payload := nextEvent(t, conn)
	if typ != broadcast.EventSheetStatusUpdated {
		t.Fatalf("expected %s, got %s", broadcast.EventSheetStatusUpdated, typ)
	}
	if payload["materialId"] != float64(m.ID) || payload["sheetIndex"] != float64(2) || payload["status"] != "cut" || payload["jobId"] != float64(4) {
		t.Fatalf("unexpected payload %v", payload)
	}

	got, err := env.store.LoadMaterial(stdcontext.Background(), m.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SheetStatuses[2] != models.SheetCut || got.CompletedSheets != 1 {
		t.Fatalf("unexpected stored material %v completed=%d", got.SheetStatuses, got.CompletedSheets)
	}
}

func TestSetSheetStatusCommandHandler_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	m := env.material(t, 6)
	conn := env.hub.Register(1, broadcast.TransportWebsocket)
	id := itoa(m.ID)

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		kind   string
	}{
		{"index past end", "/materials/" + id + "/sheets/6/status", `{"status":"cut"}`, http.StatusUnprocessableEntity, "out_of_range"},
		{"negative index", "/materials/" + id + "/sheets/-1/status", `{"status":"cut"}`, http.StatusUnprocessableEntity, "out_of_range"},
		{"unknown status", "/materials/" + id + "/sheets/0/status", `{"status":"done"}`, http.StatusBadRequest, "invalid_argument"},
		{"status wrong case", "/materials/" + id + "/sheets/0/status", `{"status":"CUT"}`, http.StatusBadRequest, "invalid_argument"},
		{"missing material", "/materials/999/sheets/0/status", `{"status":"cut"}`, http.StatusNotFound, "not_found"},
		{"bad index", "/materials/" + id + "/sheets/x/status", `{"status":"cut"}`, http.StatusBadRequest, "invalid_argument"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, body := env.do(t, http.MethodPost, tc.path, tc.body)
			if rr.Code != tc.status || body["error"] != tc.kind {
				t.Fatalf("expected %d %s, got %d %v", tc.status, tc.kind, rr.Code, body)
			}
		})
	}

	select {
	case frame := <-conn.Frames():
		t.Fatalf("failed mutations must not broadcast, got %s", frame.Type)
	default:
	}
}

func TestAddSheetsCommandHandler(t *testing.T) {
	env := newTestEnv(t)
	m := env.material(t, 6)
	conn := env.hub.Register(1, broadcast.TransportWebsocket)
	path := "/materials/" + itoa(m.ID) + "/sheets"

	rr, body := env.do(t, http.MethodPost, path, `{"count":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if total := body["material"].(map[string]any)["totalSheets"]; total != float64(9) {
		t.Fatalf("expected totalSheets=9, got %v", total)
	}
	typ, payload := nextEvent(t, conn)
	if typ != broadcast.EventSheetsAdded || payload["count"] != float64(3) || payload["totalSheets"] != float64(9) {
		t.Fatalf("unexpected event %s %v", typ, payload)
	}

	rr, body = env.do(t, http.MethodPost, path, `{"count":2,"isRecut":true,"reason":"chipped"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	recut := body["recut"].(map[string]any)
	if recut["quantity"] != float64(2) || recut["reason"] != "chipped" {
		t.Fatalf("unexpected recut %v", recut)
	}
	typ, _ = nextEvent(t, conn)
	if typ != broadcast.EventRecutAdded {
		t.Fatalf("expected %s, got %s", broadcast.EventRecutAdded, typ)
	}

	rr, body = env.do(t, http.MethodPost, path, `{"count":0}`)
	if rr.Code != http.StatusBadRequest || body["error"] != "invalid_argument" {
		t.Fatalf("expected 400 invalid_argument, got %d %v", rr.Code, body)
	}
}

func TestDeleteSheetCommandHandler_ShiftsAndBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	m := env.material(t, 4)
	ctx := stdcontext.Background()
	if _, err := env.store.SetSheetStatus(ctx, 1, m.ID, 3, models.SheetCut); err != nil {
		t.Fatalf("seed cut: %v", err)
	}
	conn := env.hub.Register(1, broadcast.TransportWebsocket)

	rr, _ := env.do(t, http.MethodDelete, "/materials/"+itoa(m.ID)+"/sheets/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got, _ := env.store.LoadMaterial(ctx, m.ID)
	if got.TotalSheets != 3 || got.SheetStatuses[2] != models.SheetCut {
		t.Fatalf("expected shift left, got %v total=%d", got.SheetStatuses, got.TotalSheets)
	}
	typ, payload := nextEvent(t, conn)
	if typ != broadcast.EventSheetDeleted || payload["totalSheets"] != float64(3) {
		t.Fatalf("unexpected event %s %v", typ, payload)
	}
}

func TestUpdateAndDeleteMaterialCommandHandlers(t *testing.T) {
	env := newTestEnv(t)
	m := env.material(t, 4)
	path := "/materials/" + itoa(m.ID)

	rr, body := env.do(t, http.MethodPut, path, `{"totalSheets":7,"sheetSize":"2440x1220"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	updated := body["material"].(map[string]any)
	if updated["totalSheets"] != float64(7) || updated["sheetSize"] != "2440x1220" {
		t.Fatalf("unexpected material %v", updated)
	}

	rr, _ = env.do(t, http.MethodDelete, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr, body = env.do(t, http.MethodDelete, path, "")
	if rr.Code != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("expected 404 on second delete, got %d %v", rr.Code, body)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestSheetCountHandlers_RejectOversizedCounts(t *testing.T) {
	env := newTestEnv(t)
	m := env.material(t, 6)
	ctx := stdcontext.Background()
	if _, err := env.store.SetSheetStatus(ctx, 1, m.ID, 2, models.SheetCut); err != nil {
		t.Fatalf("seed cut: %v", err)
	}
	conn := env.hub.Register(1, broadcast.TransportWebsocket)
	path := "/materials/" + itoa(m.ID)

	cases := []struct {
		method, path, body string
	}{
		{http.MethodPost, path + "/sheets", `{"count":9223372036854775807}`},
		{http.MethodPost, path + "/sheets", `{"count":` + strconv.Itoa(sheets.MaxSheets) + `}`},
		{http.MethodPost, path + "/sheets", `{"count":9223372036854775807,"isRecut":true}`},
		{http.MethodPut, path, `{"totalSheets":1152921504606846976}`},
		{http.MethodPut, path, `{"totalSheets":` + strconv.Itoa(sheets.MaxSheets+1) + `}`},
		{http.MethodPost, "/cutlists/2/materials", `{"color":"Oak","totalSheets":` + strconv.Itoa(sheets.MaxSheets+1) + `}`},
	}
	for _, tc := range cases {
		rr, body := env.do(t, tc.method, tc.path, tc.body)
		if rr.Code != http.StatusBadRequest || body["error"] != "invalid_argument" {
			t.Fatalf("%s %s %s: expected 400 invalid_argument, got %d %v", tc.method, tc.path, tc.body, rr.Code, body)
		}
	}

	got, err := env.store.LoadMaterial(ctx, m.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TotalSheets != 6 || len(got.SheetStatuses) != 6 || got.SheetStatuses[2] != models.SheetCut {
		t.Fatalf("expected sheets unchanged, got %v total=%d", got.SheetStatuses, got.TotalSheets)
	}
	select {
	case frame := <-conn.Frames():
		t.Fatalf("rejected counts must not broadcast, got %s", frame.Type)
	default:
	}
}
