package live

import (
	"context"
	"sync"
	"time"

	"game-live-system/models"
)

// LiveUser is the runtime projection of one member of one live game. It
// carries only what the persisted membership can't: the last reported
// location. The spectator role is NOT cached here; it is re-read from
// the membership record on every use so role changes take effect without
// a reconnect.
type LiveUser struct {
	GameID string
	ID     string
	Name   string

	store Store

	mu        sync.RWMutex
	loc       models.Location
	locKnown  bool
	locAt     time.Time
	staleTime time.Duration
}

func newLiveUser(store Store, gameID string, member *models.GameUser, staleTime time.Duration) *LiveUser {
	return &LiveUser{
		GameID:    gameID,
		ID:        member.UserID,
		Name:      member.UserName,
		store:     store,
		staleTime: staleTime,
	}
}

// UpdateLocation records a fresh coordinate from the user's device.
func (u *LiveUser) UpdateLocation(loc models.Location) {
	u.mu.Lock()
	u.loc = loc
	u.locKnown = true
	u.locAt = time.Now()
	u.mu.Unlock()
}

// Location returns the last known coordinate and whether one exists.
func (u *LiveUser) Location() (models.Location, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.loc, u.locKnown
}

// Visible reports whether other players should currently see this user:
// a location is known and it has not gone stale.
func (u *LiveUser) Visible() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if !u.locKnown {
		return false
	}
	if u.staleTime <= 0 {
		return true
	}
	return time.Since(u.locAt) <= u.staleTime
}

// Spectator reads the role flag from the persisted membership record.
// A vanished membership counts as spectator: the user keeps watching but
// no longer plays.
func (u *LiveUser) Spectator(ctx context.Context) (bool, error) {
	member, err := u.store.Membership(ctx, u.GameID, u.ID)
	if err != nil {
		return false, err
	}
	if member == nil {
		return true, nil
	}
	return member.Spectator, nil
}
