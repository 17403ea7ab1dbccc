package materials

type CreateMaterialRequest struct {
	Color       string `json:"color"`
	Thickness   string `json:"thickness"`
	SheetSize   string `json:"sheetSize"`
	TotalSheets int    `json:"totalSheets"`
}

type UpdateMaterialRequest struct {
	Color       *string `json:"color"`
	Thickness   *string `json:"thickness"`
	SheetSize   *string `json:"sheetSize"`
	TotalSheets *int    `json:"totalSheets"`
}

type SheetStatusRequest struct {
	Status string `json:"status"`
}

type AddSheetsRequest struct {
	Count   int    `json:"count"`
	IsRecut bool   `json:"isRecut"`
	Reason  string `json:"reason"`
}
