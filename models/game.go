// models/game.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Game stages. Stage 0 is setup/draft; the runtime never loads it.
// Any nonzero stage counts as active for loading purposes.
const (
	StageSetup  = 0
	StageActive = 1
	StageEnded  = 2
)

type Game struct {
	ID   string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"uniqueIndex" json:"slug"` // URL handle, generated from Name

	Stage int `gorm:"default:0;index" json:"stage"`

	// 🎛️ Per-game runtime knobs (0 = use service-wide defaults)
	MinCleanPoints         int `json:"min_clean_points" gorm:"default:0"`
	MaxAssignmentsPerPoint int `json:"max_assignments_per_point" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Active reports whether the game is in a stage the runtime should load.
func (g *Game) Active() bool {
	return g.Stage != StageSetup
}
