package models

// ApprovalState is the review state of a submission. The legacy client
// also speaks of a "pending" state; it is the same thing as StateNone
// (submitted, not yet reviewed) and is not modeled separately.
type ApprovalState string

const (
	StateNone     ApprovalState = "none"
	StateApproved ApprovalState = "approved"
	StateRejected ApprovalState = "rejected"
)

// Submission is one user's answer to one assignment.
type Submission struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AssignmentID string `gorm:"index;not null" json:"assignment_id"`
	GameID       string `gorm:"index;not null" json:"game_id"` // denormalized for score queries
	UserID       string `gorm:"index;not null" json:"user_id"`

	AnswerText string `gorm:"type:text" json:"answer_text"`
	AnswerFile string `gorm:"type:text" json:"answer_file"` // URL, upload handled elsewhere

	State ApprovalState `gorm:"type:varchar(16);default:'none';index" json:"state"`

	// EarnedPoints is fixed at submit time from the assignment's value so
	// later edits to the assignment never rewrite history.
	EarnedPoints int `gorm:"default:0" json:"earned_points"`

	Timestamps
}

// Counts reports whether the submission contributes to the user's score.
// Only rejected submissions contribute zero.
func (s *Submission) Counts() bool {
	return s.State != StateRejected
}

// ScoreOf sums the earned points a list of submissions is worth in one
// game. Mirrors the store's SQL aggregation; the rule lives here once.
func ScoreOf(gameID string, subs []Submission) int {
	total := 0
	for _, s := range subs {
		if s.GameID != gameID || !s.Counts() {
			continue
		}
		total += s.EarnedPoints
	}
	return total
}

// LeaderboardEntry is one row of a game's standings.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}
