package store

// EquipmentSummary is the aggregated view of one equipment definition across
// its clinic assignments.
type EquipmentSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	IsActive          bool   `json:"isActive"`
	TotalAssignments  int64  `json:"totalAssignments"`
	ActiveAssignments int64  `json:"activeAssignments"`
}
