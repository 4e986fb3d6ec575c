package model

type SyncStatus struct {
	SyncID       string  `gorm:"column:sync_id;primaryKey;type:text"`
	EntityType   string  `gorm:"column:entity_type;type:text;not null"`
	EntityID     string  `gorm:"column:entity_id;type:text;not null;index"`
	TrackerKey   *string `gorm:"column:tracker_key;type:text"`
	Direction    string  `gorm:"column:direction;type:text;not null"`
	Status       string  `gorm:"column:status;type:text;not null"`
	ErrorMessage string  `gorm:"column:error_message;type:text"`
	RetryCount   int     `gorm:"column:retry_count;not null;default:0"`
	CreatedAt    string  `gorm:"column:created_at;type:text;not null;index"`
	CompletedAt  *string `gorm:"column:completed_at;type:text"`
}

func (SyncStatus) TableName() string {
	return "sync_status"
}
