package persistence

// BoardSnapshot is one canvas's full scene, stored as a JSON blob. Saves
// always replace the whole row; there is no partial persistence.
type BoardSnapshot struct {
	CanvasID    string `gorm:"column:canvas_id;primaryKey;size:190"`
	PayloadJSON string `gorm:"column:payload_json;not null"`
	SavedBy     string `gorm:"column:saved_by;size:190"`
	UpdatedAtS  int64  `gorm:"column:updated_at_s;not null"`
}

// TableName pins the snapshot table name.
func (BoardSnapshot) TableName() string {
	return "board_snapshots"
}
