package broadcast

// Payloads carry ids only; listeners refetch what they have open.

type SheetStatusPayload struct {
	JobID      int64  `json:"jobId"`
	MaterialID int64  `json:"materialId"`
	SheetIndex int    `json:"sheetIndex"`
	Status     string `json:"status"`
}

type RecutSheetStatusPayload struct {
	JobID      int64  `json:"jobId"`
	MaterialID int64  `json:"materialId"`
	RecutID    int64  `json:"recutId"`
	SheetIndex int    `json:"sheetIndex"`
	Status     string `json:"status"`
}

type SheetsAddedPayload struct {
	JobID       int64 `json:"jobId"`
	MaterialID  int64 `json:"materialId"`
	Count       int   `json:"count"`
	TotalSheets int   `json:"totalSheets"`
}

type SheetDeletedPayload struct {
	JobID       int64 `json:"jobId"`
	MaterialID  int64 `json:"materialId"`
	SheetIndex  int   `json:"sheetIndex"`
	TotalSheets int   `json:"totalSheets"`
}

type RecutPayload struct {
	JobID      int64 `json:"jobId"`
	MaterialID int64 `json:"materialId"`
	RecutID    int64 `json:"recutId"`
	Quantity   int   `json:"quantity,omitempty"`
}

type JobPayload struct {
	JobID  int64  `json:"jobId"`
	Status string `json:"status,omitempty"`
}

type CutlistPayload struct {
	JobID     int64 `json:"jobId"`
	CutlistID int64 `json:"cutlistId"`
}

type MaterialPayload struct {
	JobID       int64 `json:"jobId"`
	CutlistID   int64 `json:"cutlistId"`
	MaterialID  int64 `json:"materialId"`
	TotalSheets int   `json:"totalSheets"`
}

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
}
