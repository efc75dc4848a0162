package models

import "time"

type Answer struct {
	Base
	Content    string     `gorm:"type:text;not null" json:"content"`
	QuestionID string     `gorm:"type:varchar(36);not null;index" json:"question_id"`
	Question   *Question  `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID   string     `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author     User       `gorm:"foreignKey:AuthorID" json:"author"`
	Votes      int        `gorm:"not null;default:0" json:"votes"`
	IsAccepted bool       `gorm:"not null;default:false" json:"is_accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

type CreateAnswerRequest struct {
	Content    string `json:"content" binding:"required"`
	QuestionID string `json:"question_id" binding:"required"`
}

type UpdateAnswerRequest struct {
	Content string `json:"content" binding:"required"`
}
