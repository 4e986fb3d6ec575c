package model

type Issue struct {
	IssueID       string  `gorm:"column:issue_id;primaryKey;type:text"`
	IssueType     string  `gorm:"column:issue_type;type:text;not null"`
	Title         string  `gorm:"column:title;type:text;not null"`
	Description   string  `gorm:"column:description;type:text"`
	Priority      string  `gorm:"column:priority;type:text"`
	Status        string  `gorm:"column:status;type:text"`
	Assignee      *string `gorm:"column:assignee;type:text"`
	CreatedAt     string  `gorm:"column:created_at;type:text"`
	UpdatedAt     string  `gorm:"column:updated_at;type:text;index"`
	SyncTimestamp string  `gorm:"column:sync_timestamp;type:text;not null"`
}

func (Issue) TableName() string {
	return "issues"
}
