package store

import (
	"context"
	"fmt"
	"sort"

	"game-live-system/models"

	"github.com/google/uuid"
)

// SubmissionsByUser returns every submission a user made in a game.
func (s *Store) SubmissionsByUser(ctx context.Context, gameID, userID string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := s.DB.WithContext(ctx).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Find(&submissions).Error
	if err != nil {
		return nil, fmt.Errorf("submissions %s/%s: %w", gameID, userID, err)
	}
	return submissions, nil
}

// CreateSubmission stores a new answer. EarnedPoints is stamped from the
// assignment's current value; the score cache for the user is dropped.
func (s *Store) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.State == "" {
		sub.State = models.StateNone
	}
	if sub.EarnedPoints == 0 {
		var assignment models.Assignment
		if err := s.DB.WithContext(ctx).First(&assignment, "id = ?", sub.AssignmentID).Error; err != nil {
			return fmt.Errorf("submission assignment %s: %w", sub.AssignmentID, err)
		}
		sub.EarnedPoints = assignment.Points
		if sub.GameID == "" {
			sub.GameID = assignment.GameID
		}
	}
	if err := s.DB.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	s.cache.Delete("score:" + sub.GameID + ":" + sub.UserID)
	return nil
}

// Score sums the user's earned points in a game, skipping rejected
// submissions. Cached briefly; invalidated whenever the user submits.
func (s *Store) Score(ctx context.Context, gameID, userID string) (int, error) {
	key := "score:" + gameID + ":" + userID
	if v, ok := s.cache.Get(key); ok {
		if score, ok := v.(int); ok {
			return score, nil
		}
	}

	var score int64
	err := s.DB.WithContext(ctx).
		Model(&models.Submission{}).
		Select("COALESCE(SUM(earned_points), 0)").
		Where("game_id = ? AND user_id = ? AND state <> ?", gameID, userID, models.StateRejected).
		Scan(&score).Error
	if err != nil {
		return 0, fmt.Errorf("score %s/%s: %w", gameID, userID, err)
	}

	s.cache.Set(key, int(score), scoreTTL)
	return int(score), nil
}

// Standings computes the ranked leaderboard for a game. Every member
// appears, including those with no submissions yet.
func (s *Store) Standings(ctx context.Context, gameID string) ([]models.LeaderboardEntry, error) {
	members, err := s.MembersOfGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(members))
	for _, member := range members {
		if member.Spectator {
			continue
		}
		score, err := s.Score(ctx, gameID, member.UserID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:   member.UserID,
			UserName: member.UserName,
			Score:    score,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
