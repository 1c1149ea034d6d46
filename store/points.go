package store

import (
	"context"
	"errors"
	"fmt"

	"game-live-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointByID returns a point, or (nil, nil) when absent.
func (s *Store) PointByID(ctx context.Context, id string) (*models.Point, error) {
	var point models.Point
	err := s.DB.WithContext(ctx).First(&point, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("point lookup %s: %w", id, err)
	}
	return &point, nil
}

// PointsByGame returns every point belonging to the game.
func (s *Store) PointsByGame(ctx context.Context, gameID string) ([]models.Point, error) {
	var points []models.Point
	if err := s.DB.WithContext(ctx).Where("game_id = ?", gameID).Find(&points).Error; err != nil {
		return nil, fmt.Errorf("points of game %s: %w", gameID, err)
	}
	return points, nil
}

// CreatePoint stores a new point.
func (s *Store) CreatePoint(ctx context.Context, point *models.Point) error {
	if point.ID == "" {
		point.ID = uuid.NewString()
	}
	if point.Kind == "" {
		point.Kind = models.PointKindFactory
	}
	if err := s.DB.WithContext(ctx).Create(point).Error; err != nil {
		return fmt.Errorf("create point: %w", err)
	}
	return nil
}

// CreateAssignment stores a new assignment.
func (s *Store) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AnswerType == "" {
		assignment.AnswerType = models.AnswerTypeText
	}
	if err := s.DB.WithContext(ctx).Create(assignment).Error; err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// AssignmentsByGame returns every assignment belonging to the game.
func (s *Store) AssignmentsByGame(ctx context.Context, gameID string) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := s.DB.WithContext(ctx).Where("game_id = ?", gameID).Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("assignments of game %s: %w", gameID, err)
	}
	return assignments, nil
}

// AttachmentsByUser returns every point-assignment attachment a user has
// in a game, across all points.
func (s *Store) AttachmentsByUser(ctx context.Context, gameID, userID string) ([]models.PointAssignment, error) {
	var attachments []models.PointAssignment
	err := s.DB.WithContext(ctx).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Find(&attachments).Error
	if err != nil {
		return nil, fmt.Errorf("attachments %s/%s: %w", gameID, userID, err)
	}
	return attachments, nil
}

// AttachAssignments persists a batch of new attachments of assignments
// to one point for one user. Called only by the allocation pass.
func (s *Store) AttachAssignments(ctx context.Context, gameID, pointID, userID string, assignmentIDs []string) error {
	if len(assignmentIDs) == 0 {
		return nil
	}
	rows := make([]models.PointAssignment, 0, len(assignmentIDs))
	for _, assignmentID := range assignmentIDs {
		rows = append(rows, models.PointAssignment{
			ID:           uuid.NewString(),
			GameID:       gameID,
			PointID:      pointID,
			UserID:       userID,
			AssignmentID: assignmentID,
		})
	}
	if err := s.DB.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("attach %d assignments to point %s: %w", len(rows), pointID, err)
	}
	return nil
}
