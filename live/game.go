package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"game-live-system/models"

	"go.uber.org/zap"
)

// ErrNotMember marks a user id with no membership in the game.
var ErrNotMember = errors.New("user is not a member of this game")

// LiveGame is the in-memory runtime instance of one active game. It
// owns its point manager and its live users; the game manager owns it.
type LiveGame struct {
	Game models.Game

	store Store
	log   *zap.SugaredLogger

	Points *PointManager

	staleAfter time.Duration

	mu    sync.RWMutex
	users map[string]*LiveUser
}

func newLiveGame(store Store, log *zap.SugaredLogger, game models.Game, opts Options) *LiveGame {
	minClean := opts.MinCleanPoints
	if game.MinCleanPoints > 0 {
		minClean = game.MinCleanPoints
	}
	maxPerPoint := opts.MaxAssignmentsPerPoint
	if game.MaxAssignmentsPerPoint > 0 {
		maxPerPoint = game.MaxAssignmentsPerPoint
	}
	return &LiveGame{
		Game:       game,
		store:      store,
		log:        log,
		Points:     newPointManager(store, log, game.ID, minClean, maxPerPoint),
		staleAfter: opts.LocationStaleAfter,
		users:      make(map[string]*LiveUser),
	}
}

// ID returns the persisted game id.
func (g *LiveGame) ID() string {
	return g.Game.ID
}

// Load pulls the game's points into memory.
func (g *LiveGame) Load(ctx context.Context) error {
	return g.Points.Load(ctx)
}

// Unload drops all runtime state. Persisted state is untouched; live
// locations are lost on purpose.
func (g *LiveGame) Unload() {
	g.mu.Lock()
	g.users = make(map[string]*LiveUser)
	g.mu.Unlock()
	g.Points.unload()
}

// User returns the live projection for a member, creating it on first
// reference. Non-members get ErrNotMember.
func (g *LiveGame) User(ctx context.Context, userID string) (*LiveUser, error) {
	g.mu.RLock()
	u := g.users[userID]
	g.mu.RUnlock()
	if u != nil {
		return u, nil
	}

	member, err := g.store.Membership(ctx, g.Game.ID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: %s in game %s", ErrNotMember, userID, g.Game.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing := g.users[userID]; existing != nil {
		return existing, nil
	}
	u = newLiveUser(g.store, g.Game.ID, member, g.staleAfter)
	g.users[userID] = u
	return u, nil
}

// Users returns a snapshot of the currently materialized live users.
func (g *LiveGame) Users() []*LiveUser {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*LiveUser, 0, len(g.users))
	for _, u := range g.users {
		out = append(out, u)
	}
	return out
}

// UpdateLocation is the inbound "user location updated" event.
func (g *LiveGame) UpdateLocation(ctx context.Context, userID string, loc models.Location) error {
	u, err := g.User(ctx, userID)
	if err != nil {
		return err
	}
	u.UpdateLocation(loc)
	return nil
}
