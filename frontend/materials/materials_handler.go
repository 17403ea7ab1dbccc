package materials

import (
	"net/http"

	sessioncontext "cuttracker/frontend/shared/context"
	"cuttracker/frontend/shared/respond"
	"cuttracker/infrastructure/broadcast"
	"cuttracker/infrastructure/sheets"
	"cuttracker/models"
)

func CreateMaterialCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cutlistID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid cutlist id")
			return
		}
		var req CreateMaterialRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}

		change, err := store.CreateMaterial(r.Context(), sessioncontext.UserID(r.Context()), sheets.MaterialInput{
			CutlistID:   cutlistID,
			Color:       req.Color,
			Thickness:   req.Thickness,
			SheetSize:   req.SheetSize,
			TotalSheets: req.TotalSheets,
		})
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}

		hub.Notify(broadcast.EventMaterialCreated, materialPayload(change))
		respond.JSON(w, http.StatusCreated, map[string]any{"ok": true, "material": change.Material})
	}
}

func UpdateMaterialCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid material id")
			return
		}
		var req UpdateMaterialRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}

		change, err := store.UpdateMaterial(r.Context(), sessioncontext.UserID(r.Context()), materialID, sheets.MaterialUpdate{
			Color:       req.Color,
			Thickness:   req.Thickness,
			SheetSize:   req.SheetSize,
			TotalSheets: req.TotalSheets,
		})
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}

		hub.Notify(broadcast.EventMaterialUpdated, materialPayload(change))
		respond.OK(w, map[string]any{"material": change.Material})
	}
}

func DeleteMaterialCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid material id")
			return
		}
		change, err := store.DeleteMaterial(r.Context(), sessioncontext.UserID(r.Context()), materialID)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}
		hub.Notify(broadcast.EventMaterialDeleted, materialPayload(change))
		respond.OK(w, nil)
	}
}

// SetSheetStatusCommandHandler writes one sheet's status and broadcasts it.
func SetSheetStatusCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid material id")
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

		change, err := store.SetSheetStatus(r.Context(), sessioncontext.UserID(r.Context()), materialID, index, status)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}

		hub.Notify(broadcast.EventSheetStatusUpdated, broadcast.SheetStatusPayload{
			JobID:      change.JobID,
			MaterialID: materialID,
			SheetIndex: index,
			Status:     string(status),
		})
		respond.OK(w, map[string]any{
			"materialId":      materialID,
			"sheetIndex":      index,
			"status":          status,
			"completedSheets": change.Material.CompletedSheets,
			"totalSheets":     change.Material.TotalSheets,
		})
	}
}

func AddSheetsCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid material id")
			return
		}
		var req AddSheetsRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}

		res, err := store.AddSheets(r.Context(), sessioncontext.UserID(r.Context()), materialID, req.Count, req.IsRecut, req.Reason)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}

		if res.Recut != nil {
			hub.Notify(broadcast.EventRecutAdded, broadcast.RecutPayload{
				JobID:      res.JobID,
				MaterialID: materialID,
				RecutID:    res.Recut.ID,
				Quantity:   res.Recut.Quantity,
			})
			respond.OK(w, map[string]any{"material": res.Material, "recut": res.Recut})
			return
		}
		hub.Notify(broadcast.EventSheetsAdded, broadcast.SheetsAddedPayload{
			JobID:       res.JobID,
			MaterialID:  materialID,
			Count:       req.Count,
			TotalSheets: res.Material.TotalSheets,
		})
		respond.OK(w, map[string]any{"material": res.Material})
	}
}

func DeleteSheetCommandHandler(store *sheets.Store, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid material id")
			return
		}
		index, ok := respond.IndexParam(r, "index")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid sheet index")
			return
		}

		change, err := store.DeleteSheet(r.Context(), sessioncontext.UserID(r.Context()), materialID, index)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}

		hub.Notify(broadcast.EventSheetDeleted, broadcast.SheetDeletedPayload{
			JobID:       change.JobID,
			MaterialID:  materialID,
			SheetIndex:  index,
			TotalSheets: change.Material.TotalSheets,
		})
		respond.OK(w, map[string]any{"material": change.Material})
	}
}

func materialPayload(change sheets.MaterialChange) broadcast.MaterialPayload {
	return broadcast.MaterialPayload{
		JobID:       change.JobID,
		CutlistID:   change.Material.CutlistID,
		MaterialID:  change.Material.ID,
		TotalSheets: change.Material.TotalSheets,
	}
}
