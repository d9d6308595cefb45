package library

// The browser builds of the app kept the whole collection under one
// localStorage key. The SQLite snapshot mirrors that shape: a single JSON
// document per key, replaced wholesale on every write.
const snapshotKey = "vinyl-vision-library"

// Snapshot is the persisted collection blob.
type Snapshot struct {
	Key             string `gorm:"column:key;primaryKey;size:190;not null"`
	Payload         string `gorm:"column:payload;type:text;not null"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Snapshot) TableName() string {
	return "library_snapshots"
}

// ChangeKind enumerates collection change notifications.
type ChangeKind string

const (
	ChangeSaved    ChangeKind = "record_saved"
	ChangeDeleted  ChangeKind = "record_deleted"
	ChangeReloaded ChangeKind = "collection_reloaded"
)

// ChangeEvent describes a collection change for interested listeners.
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	RecordID string     `json:"recordId,omitempty"`
}
