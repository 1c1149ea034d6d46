package transport

import "game-live-system/models"

// Outbound message types.
const (
	TypeGameLocations = "GAME_LOCATIONS_UPDATE"
	TypeGameData      = "GAME_DATA"
)

// UserLocation is one visible user inside a locations update.
type UserLocation struct {
	User     string          `json:"user"`
	UserName string          `json:"userName"`
	Location models.Location `json:"location"`
}

// PointSummary is the client-facing shape of a point.
type PointSummary struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	Kind models.PointKind `json:"kind"`
	Lat  float64          `json:"lat"`
	Lng  float64          `json:"lng"`
}

// GameLocationsUpdate carries the per-user view of everyone (and every
// point) they can currently see.
type GameLocationsUpdate struct {
	Type   string         `json:"type"`
	Game   string         `json:"game"`
	Users  []UserLocation `json:"users"`
	Points []PointSummary `json:"points"`
}

func NewGameLocationsUpdate(gameID string) GameLocationsUpdate {
	return GameLocationsUpdate{
		Type:   TypeGameLocations,
		Game:   gameID,
		Users:  []UserLocation{},
		Points: []PointSummary{},
	}
}

// GameData is the full game snapshot pushed on connect and on demand.
type GameData struct {
	Type string       `json:"type"`
	Game string       `json:"game"`
	Data GameDataBody `json:"data"`
}

type GameDataBody struct {
	Stage     int                       `json:"stage"`
	Factories []PointSummary            `json:"factories"`
	Shops     []PointSummary            `json:"shops"`
	Strength  map[string]int            `json:"strength"`
	Standings []models.LeaderboardEntry `json:"standings"`
	Pings     []any                     `json:"pings"`
}

func NewGameData(gameID string, stage int) GameData {
	return GameData{
		Type: TypeGameData,
		Game: gameID,
		Data: GameDataBody{
			Stage:     stage,
			Factories: []PointSummary{},
			Shops:     []PointSummary{},
			Strength:  map[string]int{},
			Standings: []models.LeaderboardEntry{},
			Pings:     []any{},
		},
	}
}

// ClientMessage is what we accept from a socket. Only location reports
// for now; unknown types are ignored.
type ClientMessage struct {
	Type     string  `json:"type"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Altitude float64 `json:"altitude,omitempty"`
}

const ClientTypeLocation = "location"
