package live

import (
	"context"
	"sync"

	"game-live-system/models"
)

// attachment is one assignment currently attached to a point for one
// user, with its open/answered state.
type attachment struct {
	AssignmentID string
	Open         bool
}

// LivePoint is the runtime wrapper around one persisted point. It owns
// the per-user attachment projection; only the point manager writes it.
type LivePoint struct {
	models.Point

	mu          sync.RWMutex
	attachments map[string][]attachment // by user id
}

func newLivePoint(p models.Point) *LivePoint {
	return &LivePoint{
		Point:       p,
		attachments: make(map[string][]attachment),
	}
}

// setAttachments replaces the user's attachment projection wholesale,
// used when re-syncing from the store.
func (p *LivePoint) setAttachments(userID string, list []attachment) {
	p.mu.Lock()
	if len(list) == 0 {
		delete(p.attachments, userID)
	} else {
		p.attachments[userID] = list
	}
	p.mu.Unlock()
}

// attach appends freshly allocated (hence open) assignments.
func (p *LivePoint) attach(userID string, assignmentIDs []string) {
	p.mu.Lock()
	for _, id := range assignmentIDs {
		p.attachments[userID] = append(p.attachments[userID], attachment{AssignmentID: id, Open: true})
	}
	p.mu.Unlock()
}

// Counts returns how many assignments were ever attached to this point
// for the user, and how many of those are still open.
func (p *LivePoint) Counts(userID string) (all, clean int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := p.attachments[userID]
	all = len(list)
	for _, att := range list {
		if att.Open {
			clean++
		}
	}
	return all, clean
}

// Clean reports the invariant the allocator maintains: the point has
// work attached for the user and none of it has been answered yet.
func (p *LivePoint) Clean(userID string) bool {
	all, clean := p.Counts(userID)
	return all > 0 && all == clean
}

// VisibleFor is the default point visibility rule: shops are public,
// factories show up once they carry open work for the user, spectators
// see everything. Game-specific rules replace this via the manager's
// visibility hook.
func (p *LivePoint) VisibleFor(u *LiveUser, spectator bool) bool {
	if spectator {
		return true
	}
	if p.Kind == models.PointKindShop {
		return true
	}
	_, clean := p.Counts(u.ID)
	return clean > 0
}

// Tick is the periodic per-point update: re-derives the open flag of
// every attachment from the persisted submissions so answered work stops
// counting as clean even when the submission arrived through another
// instance.
func (p *LivePoint) Tick(ctx context.Context, store Store) error {
	p.mu.RLock()
	userIDs := make([]string, 0, len(p.attachments))
	for userID := range p.attachments {
		userIDs = append(userIDs, userID)
	}
	p.mu.RUnlock()

	if len(userIDs) == 0 {
		return nil
	}

	assignments, err := store.AssignmentsByGame(ctx, p.GameID)
	if err != nil {
		return err
	}
	retryable := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		retryable[a.ID] = a.Retry
	}

	for _, userID := range userIDs {
		subs, err := store.SubmissionsByUser(ctx, p.GameID, userID)
		if err != nil {
			return err
		}
		byAssignment := groupSubmissions(subs)

		p.mu.Lock()
		list := p.attachments[userID]
		for i := range list {
			list[i].Open = assignmentOpen(retryable[list[i].AssignmentID], byAssignment[list[i].AssignmentID])
		}
		p.mu.Unlock()
	}
	return nil
}

func groupSubmissions(subs []models.Submission) map[string][]models.Submission {
	byAssignment := make(map[string][]models.Submission, len(subs))
	for _, s := range subs {
		byAssignment[s.AssignmentID] = append(byAssignment[s.AssignmentID], s)
	}
	return byAssignment
}

// assignmentOpen: no submission means untouched; any submission that is
// not rejected answers the assignment for good; a fully rejected history
// reopens it only when the assignment allows retries.
func assignmentOpen(retryable bool, subs []models.Submission) bool {
	if len(subs) == 0 {
		return true
	}
	for _, s := range subs {
		if s.State != models.StateRejected {
			return false
		}
	}
	return retryable
}
