package models

type Question struct {
	Base
	Title    string `gorm:"size:300;not null" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	AuthorID string `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author"`
	Views    int    `gorm:"not null;default:0" json:"views"`
	Votes    int    `gorm:"not null;default:0" json:"votes"`
	Tags     []Tag  `gorm:"many2many:question_tags" json:"tags"`
}

type QuestionRequest struct {
	Title   string   `json:"title" binding:"required,max=300"`
	Content string   `json:"content" binding:"required"`
	Tags    []string `json:"tags" binding:"required"`
}

type Pagination struct {
	TotalCount  int64 `json:"total_count"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	Limit       int   `json:"limit"`
}

type QuestionPage struct {
	Pagination Pagination `json:"pagination"`
	Questions  []Question `json:"questions"`
}

type Stats struct {
	Total      int64 `json:"total"`
	Resolved   int64 `json:"resolved"`
	Resolution int   `json:"resolution"`
	ActiveTags int64 `json:"active_tags"`
}
