package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"game-live-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	cache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// Side-cache TTLs. The cache is a pure read optimization: every write
// path invalidates the affected keys, and a miss always falls through to
// the database.
const (
	membershipTTL = 30 * time.Second
	scoreTTL      = 15 * time.Second
)

// Store is the single persistence gateway for the live runtime.
type Store struct {
	DB    *gorm.DB
	cache *cache.Cache
}

func New(db *gorm.DB) *Store {
	return &Store{
		DB:    db,
		cache: cache.New(membershipTTL, 2*time.Minute),
	}
}

// GameByID returns the game, or (nil, nil) when no such game exists.
func (s *Store) GameByID(ctx context.Context, id string) (*models.Game, error) {
	var game models.Game
	err := s.DB.WithContext(ctx).First(&game, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("game lookup %s: %w", id, err)
	}
	return &game, nil
}

// GameBySlug returns the game by its URL slug, or (nil, nil) when absent.
func (s *Store) GameBySlug(ctx context.Context, gameSlug string) (*models.Game, error) {
	var game models.Game
	err := s.DB.WithContext(ctx).First(&game, "slug = ?", gameSlug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("game lookup by slug %s: %w", gameSlug, err)
	}
	return &game, nil
}

// ActiveGames returns every game in a nonzero stage.
func (s *Store) ActiveGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	if err := s.DB.WithContext(ctx).Where("stage <> ?", models.StageSetup).Find(&games).Error; err != nil {
		return nil, fmt.Errorf("active games: %w", err)
	}
	return games, nil
}

// CreateGame stores a new game with a slug derived from its name.
func (s *Store) CreateGame(ctx context.Context, game *models.Game) error {
	if game.ID == "" {
		game.ID = uuid.NewString()
	}
	if game.Slug == "" {
		game.Slug = slug.Make(game.Name)
	}
	if err := s.DB.WithContext(ctx).Create(game).Error; err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	return nil
}

// Membership returns the game-membership record for (gameID, userID),
// or (nil, nil) when the user is not a member. Reads go through the
// side-cache; the role flag changes rarely but is re-read on every use
// by design, so keep the TTL short.
func (s *Store) Membership(ctx context.Context, gameID, userID string) (*models.GameUser, error) {
	key := "membership:" + gameID + ":" + userID
	if v, ok := s.cache.Get(key); ok {
		if member, ok := v.(*models.GameUser); ok {
			return member, nil
		}
	}

	var member models.GameUser
	err := s.DB.WithContext(ctx).First(&member, "game_id = ? AND user_id = ?", gameID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("membership %s/%s: %w", gameID, userID, err)
	}

	s.cache.Set(key, &member, membershipTTL)
	return &member, nil
}

// MembersOfGame returns every membership record of a game.
func (s *Store) MembersOfGame(ctx context.Context, gameID string) ([]models.GameUser, error) {
	var members []models.GameUser
	if err := s.DB.WithContext(ctx).Where("game_id = ?", gameID).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("members of game %s: %w", gameID, err)
	}
	return members, nil
}

// AddMember registers a user in a game.
func (s *Store) AddMember(ctx context.Context, member *models.GameUser) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	if err := s.DB.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	s.cache.Delete("membership:" + member.GameID + ":" + member.UserID)
	return nil
}
