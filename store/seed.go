package store

import (
	"context"

	"game-live-system/models"
)

// SeedDemo inserts a small playable game for local development: one
// active game, a handful of points and assignments, and two members.
// Idempotent by slug; a second run is a no-op.
func (s *Store) SeedDemo(ctx context.Context) error {
	existing, err := s.GameBySlug(ctx, "demo-game")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	game := &models.Game{
		Name:  "Demo Game",
		Stage: models.StageActive,
	}
	if err := s.CreateGame(ctx, game); err != nil {
		return err
	}

	points := []models.Point{
		{GameID: game.ID, Name: "Old Mill", Kind: models.PointKindFactory, Lat: 52.3702, Lng: 4.8952},
		{GameID: game.ID, Name: "Harbor Crane", Kind: models.PointKindFactory, Lat: 52.3731, Lng: 4.9003},
		{GameID: game.ID, Name: "Glassworks", Kind: models.PointKindFactory, Lat: 52.3667, Lng: 4.8901},
		{GameID: game.ID, Name: "Market Square", Kind: models.PointKindShop, Lat: 52.3721, Lng: 4.8936},
	}
	for i := range points {
		if err := s.CreatePoint(ctx, &points[i]); err != nil {
			return err
		}
	}

	assignments := []models.Assignment{
		{GameID: game.ID, Title: "Sketch the waterwheel", Points: 10, AnswerType: models.AnswerTypeFile},
		{GameID: game.ID, Title: "Count the crane's rivets", Points: 5, AnswerType: models.AnswerTypeText, Retry: true},
		{GameID: game.ID, Title: "Photograph the kiln", Points: 10, AnswerType: models.AnswerTypeFile},
		{GameID: game.ID, Title: "Name three glass colors", Points: 5, AnswerType: models.AnswerTypeText, Retry: true},
		{GameID: game.ID, Title: "Interview a stallholder", Points: 15, AnswerType: models.AnswerTypeBoth},
		{GameID: game.ID, Title: "Find the oldest cobblestone", Points: 5, AnswerType: models.AnswerTypeText},
	}
	for i := range assignments {
		if err := s.CreateAssignment(ctx, &assignments[i]); err != nil {
			return err
		}
	}

	members := []models.GameUser{
		{GameID: game.ID, UserID: "demo-player", UserName: "Demo Player"},
		{GameID: game.ID, UserID: "demo-watcher", UserName: "Demo Watcher", Spectator: true},
	}
	for i := range members {
		if err := s.AddMember(ctx, &members[i]); err != nil {
			return err
		}
	}

	return nil
}
