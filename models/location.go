package models

// Location is a reported device position. Ephemeral: lives only in the
// runtime and on the wire, never in the database.
type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"` // meters, 0 = unknown
	Altitude float64 `json:"altitude,omitempty"`
}
