package models

// PointKind splits points into the two flavors the client renders
// differently. Factories produce work (assignments get attached there),
// shops are fixed service locations.
type PointKind string

const (
	PointKindFactory PointKind = "factory"
	PointKindShop    PointKind = "shop"
)

// Point is a physical location inside one game's play area.
type Point struct {
	ID     string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	GameID string    `gorm:"index;not null" json:"game_id"`
	Name   string    `gorm:"not null" json:"name"`
	Kind   PointKind `gorm:"type:varchar(16);default:'factory'" json:"kind"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	Timestamps
}

// PointAssignment is the persisted per-user attachment of an assignment
// to a point: "assignment A is live on point P for user U". Written only
// through the point manager's allocation pass.
type PointAssignment struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	GameID       string `gorm:"index;not null" json:"game_id"` // denormalized for per-game lookups
	PointID      string `gorm:"index:idx_point_user_assignment,unique;not null" json:"point_id"`
	UserID       string `gorm:"index:idx_point_user_assignment,unique;not null" json:"user_id"`
	AssignmentID string `gorm:"index:idx_point_user_assignment,unique;not null" json:"assignment_id"`

	Timestamps
}
