package recuts

import (
	"net/http"

	sessioncontext "cuttracker/frontend/shared/context"
	"cuttracker/frontend/shared/respond"
	"cuttracker/infrastructure/broadcast"
	"cuttracker/infrastructure/sheets"
	"cuttracker/models"
)

type CreateRecutRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type SheetStatusRequest struct {
	Status string `json:"status"`
}

// ListRecutsQueryHandler returns a material's recut entries, oldest first.
func ListRecutsQueryHandler(store *sheets.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid material id")
			return
		}
		recuts, err := store.ListRecuts(r.Context(), materialID)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}
		respond.OK(w, map[string]any{"materialId": materialID, "recuts": recuts})
	}
}

func CreateRecutCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid material id")
			return
		}
		var req CreateRecutRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}

		change, err := store.AddRecutEntry(r.Context(), sessioncontext.UserID(r.Context()), materialID, req.Quantity, req.Reason)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}

		hub.Notify(broadcast.EventRecutAdded, broadcast.RecutPayload{
			JobID:      change.JobID,
			MaterialID: materialID,
			RecutID:    change.Recut.ID,
			Quantity:   change.Recut.Quantity,
		})
		respond.JSON(w, http.StatusCreated, map[string]any{"ok": true, "recut": change.Recut})
	}
}

func SetRecutSheetStatusCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recutID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid recut id")
			return
		}
		index, ok := respond.IndexParam(r, "index")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid sheet index")
			return
		}
		var req SheetStatusRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}
		status, err := models.ParseSheetStatus(req.Status)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", err.Error())
			return
		}

		change, err := store.SetRecutSheetStatus(r.Context(), sessioncontext.UserID(r.Context()), recutID, index, status)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}

		hub.Notify(broadcast.EventRecutSheetStatusUpdated, broadcast.RecutSheetStatusPayload{
			JobID:      change.JobID,
			MaterialID: change.Recut.MaterialID,
			RecutID:    recutID,
			SheetIndex: index,
			Status:     string(status),
		})
		respond.OK(w, map[string]any{
			"recutId":         recutID,
			"sheetIndex":      index,
			"status":          status,
			"completedSheets": change.Recut.CompletedSheets,
			"quantity":        change.Recut.Quantity,
		})
	}
}

func DeleteRecutCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recutID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid recut id")
			return
		}
		change, err := store.DeleteRecutEntry(r.Context(), sessioncontext.UserID(r.Context()), recutID)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}
		hub.Notify(broadcast.EventRecutDeleted, broadcast.RecutPayload{
			JobID:      change.JobID,
			MaterialID: change.Recut.MaterialID,
			RecutID:    recutID,
		})
		respond.OK(w, nil)
	}
}
