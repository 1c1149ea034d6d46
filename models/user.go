package models

import (
	"time"

	"gorm.io/gorm"
)

// GameUser is the membership record tying a user to a game.
// User identity/profile lives in the profile service; we keep the
// display name locally so location broadcasts don't need a remote call.
type GameUser struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	GameID   string `gorm:"index:idx_game_user,unique;not null" json:"game_id"`
	UserID   string `gorm:"index:idx_game_user,unique;not null" json:"user_id"` // profile service UUID
	UserName string `gorm:"not null" json:"user_name"`

	// Spectators see everything but are invisible to players and never
	// receive assignment allocations. Read from this record on use; the
	// runtime must not cache it on the live entity.
	Spectator bool `gorm:"default:false" json:"spectator"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
