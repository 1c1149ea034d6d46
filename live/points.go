package live

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrBadPointID marks a reference that is not even a well-formed id.
	ErrBadPointID = errors.New("malformed point id")
	// ErrWrongGame marks a cross-game point reference.
	ErrWrongGame = errors.New("point belongs to a different game")
	// ErrUnknownPoint marks a well-formed id with no persisted point.
	ErrUnknownPoint = errors.New("no such point")
)

// VisibilityFunc decides whether a point shows up for a user. The
// default delegates to LivePoint.VisibleFor.
type VisibilityFunc func(p *LivePoint, u *LiveUser, spectator bool) bool

// PointManager owns the loaded points of one live game: lookup, lazy
// loading, per-user visibility, and the dynamic allocation pass that
// keeps every participant supplied with open work.
type PointManager struct {
	gameID string
	store  Store
	log    *zap.SugaredLogger

	minClean    int
	maxPerPoint int

	visible VisibilityFunc

	// onAllocated fires after an allocation changed a user's
	// attachments; the game manager hooks the rebroadcast here.
	onAllocated func(u *LiveUser)

	mu     sync.RWMutex
	points []*LivePoint

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newPointManager(store Store, log *zap.SugaredLogger, gameID string, minClean, maxPerPoint int) *PointManager {
	return &PointManager{
		gameID:      gameID,
		store:       store,
		log:         log,
		minClean:    minClean,
		maxPerPoint: maxPerPoint,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load bulk-loads every persisted point of the game, discarding any
// previously loaded set.
func (m *PointManager) Load(ctx context.Context) error {
	points, err := m.store.PointsByGame(ctx, m.gameID)
	if err != nil {
		return err
	}
	loaded := make([]*LivePoint, 0, len(points))
	for _, p := range points {
		loaded = append(loaded, newLivePoint(p))
	}
	m.mu.Lock()
	m.points = loaded
	m.mu.Unlock()
	return nil
}

// unload drops the loaded set.
func (m *PointManager) unload() {
	m.mu.Lock()
	m.points = nil
	m.mu.Unlock()
}

// Points returns a snapshot of the loaded points in load order.
func (m *PointManager) Points() []*LivePoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*LivePoint(nil), m.points...)
}

// GetPoint returns the already-loaded point with the id, or nil.
func (m *PointManager) GetPoint(id string) *LivePoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.points {
		if p.Point.ID == id {
			return p
		}
	}
	return nil
}

// LoadPoint materializes a point lazily. The id must be well-formed and
// the point must belong to this manager's game; a point is never loaded
// twice.
func (m *PointManager) LoadPoint(ctx context.Context, id string) (*LivePoint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadPointID, id)
	}
	if p := m.GetPoint(id); p != nil {
		return p, nil
	}
	persisted, err := m.store.PointByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if persisted == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPoint, id)
	}
	if persisted.GameID != m.gameID {
		return nil, fmt.Errorf("%w: %s", ErrWrongGame, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Someone may have loaded it while we were fetching.
	for _, p := range m.points {
		if p.Point.ID == id {
			return p, nil
		}
	}
	p := newLivePoint(*persisted)
	m.points = append(m.points, p)
	return p, nil
}

// SetVisibility replaces the point visibility rule.
func (m *PointManager) SetVisibility(fn VisibilityFunc) {
	m.mu.Lock()
	m.visible = fn
	m.mu.Unlock()
}

// VisiblePoints returns the subset of loaded points the user can see.
func (m *PointManager) VisiblePoints(ctx context.Context, u *LiveUser) ([]*LivePoint, error) {
	spectator, err := u.Spectator(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	visible := m.visible
	m.mu.RUnlock()
	var out []*LivePoint
	for _, p := range m.Points() {
		ok := false
		if visible != nil {
			ok = visible(p, u, spectator)
		} else {
			ok = p.VisibleFor(u, spectator)
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// UpdateUserPoints is the allocation pass. It re-syncs the user's
// attachment projection from the store, counts clean points, and when
// the user has fewer than the configured minimum it attaches unused
// assignments to randomly chosen unused points until the shortfall is
// covered or a pool runs dry. Best-effort: empty pools end the pass
// without error.
func (m *PointManager) UpdateUserPoints(ctx context.Context, u *LiveUser) error {
	attachments, err := m.store.AttachmentsByUser(ctx, m.gameID, u.ID)
	if err != nil {
		return err
	}
	submissions, err := m.store.SubmissionsByUser(ctx, m.gameID, u.ID)
	if err != nil {
		return err
	}
	assignments, err := m.store.AssignmentsByGame(ctx, m.gameID)
	if err != nil {
		return err
	}

	subsByAssignment := groupSubmissions(submissions)
	retryable := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		retryable[a.ID] = a.Retry
	}

	attachedByPoint := make(map[string][]attachment)
	attachedAnywhere := make(map[string]bool)
	for _, att := range attachments {
		open := assignmentOpen(retryable[att.AssignmentID], subsByAssignment[att.AssignmentID])
		attachedByPoint[att.PointID] = append(attachedByPoint[att.PointID], attachment{
			AssignmentID: att.AssignmentID,
			Open:         open,
		})
		attachedAnywhere[att.AssignmentID] = true
	}

	cleanCount := 0
	var unusedPoints []*LivePoint
	for _, p := range m.Points() {
		list := attachedByPoint[p.Point.ID]
		p.setAttachments(u.ID, list)
		switch {
		case len(list) == 0:
			unusedPoints = append(unusedPoints, p)
		case p.Clean(u.ID):
			cleanCount++
		}
	}

	missing := m.minClean - cleanCount
	if missing <= 0 {
		return nil
	}

	// Unused assignments: never submitted to and not attached to any
	// point for this user, deduplicated by id.
	seen := make(map[string]bool, len(assignments))
	var pool []string
	for _, a := range assignments {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		if len(subsByAssignment[a.ID]) > 0 || attachedAnywhere[a.ID] {
			continue
		}
		pool = append(pool, a.ID)
	}

	if len(unusedPoints) == 0 || len(pool) == 0 {
		return nil
	}

	pickCount := missing
	if pickCount > len(unusedPoints) {
		pickCount = len(unusedPoints)
	}
	chosen := m.samplePoints(unusedPoints, pickCount)

	// Per-point target is fixed up front; the shared pool shrinks as
	// each point draws, so points served later can come up short. Known
	// fairness gap, kept as-is.
	target := (len(pool) + pickCount - 1) / pickCount
	if target > m.maxPerPoint {
		target = m.maxPerPoint
	}

	for _, p := range chosen {
		take := target
		if take > len(pool) {
			take = len(pool)
		}
		if take == 0 {
			break
		}
		ids := m.drawAssignments(&pool, take)
		if err := m.store.AttachAssignments(ctx, m.gameID, p.Point.ID, u.ID, ids); err != nil {
			return err
		}
		p.attach(u.ID, ids)
	}

	if m.onAllocated != nil {
		m.onAllocated(u)
	}
	return nil
}

// samplePoints draws n points uniformly without replacement.
func (m *PointManager) samplePoints(candidates []*LivePoint, n int) []*LivePoint {
	pool := append([]*LivePoint(nil), candidates...)
	chosen := make([]*LivePoint, 0, n)
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	for len(chosen) < n && len(pool) > 0 {
		i := m.rng.Intn(len(pool))
		chosen = append(chosen, pool[i])
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return chosen
}

// drawAssignments removes and returns n random ids from the shared pool.
func (m *PointManager) drawAssignments(pool *[]string, n int) []string {
	ids := make([]string, 0, n)
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	for len(ids) < n && len(*pool) > 0 {
		i := m.rng.Intn(len(*pool))
		ids = append(ids, (*pool)[i])
		(*pool)[i] = (*pool)[len(*pool)-1]
		*pool = (*pool)[:len(*pool)-1]
	}
	return ids
}
