package models

// AnswerType describes what a submission for this assignment must carry
type AnswerType string

const (
	AnswerTypeText AnswerType = "text"
	AnswerTypeFile AnswerType = "file"
	AnswerTypeBoth AnswerType = "both"
)

// Assignment is a task worth points, completed by submitting an answer.
// Assignments have no fixed location of their own; the runtime attaches
// them to points per user via PointAssignment records.
type Assignment struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	GameID string `gorm:"index;not null" json:"game_id"`
	Title  string `gorm:"not null" json:"title"`
	Text   string `gorm:"type:text" json:"text"`

	Points     int        `gorm:"default:0" json:"points"`
	AnswerType AnswerType `gorm:"type:varchar(8);default:'text'" json:"answer_type"`

	// Retry lets a user answer again after a rejection
	Retry bool `gorm:"default:false" json:"retry"`

	Timestamps
}
