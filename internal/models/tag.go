package models

type Tag struct {
	Base
	Name        string `gorm:"uniqueIndex;size:50;not null" json:"name"`
	Color       string `gorm:"size:20" json:"color"`
	Description string `json:"description"`
}

// QuestionTag is the join row between questions and tags.
type QuestionTag struct {
	QuestionID string `gorm:"primaryKey;type:varchar(36)"`
	TagID      string `gorm:"primaryKey;type:varchar(36);index"`
}

type TagUsage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
	UsageCount  int64  `json:"usage_count"`
}
