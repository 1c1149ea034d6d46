package live

import (
	"context"
	"sort"
	"sync"

	"game-live-system/models"
	"game-live-system/transport"
)

// fakeStore is an in-memory Store for tests. Individual lookups can be
// made to fail by putting an error in failures, keyed per method (and
// optionally per game for point loads).
type fakeStore struct {
	mu sync.Mutex

	games       map[string]models.Game
	members     map[string][]models.GameUser       // by game id
	points      map[string][]models.Point          // by game id
	assignments map[string][]models.Assignment     // by game id
	submissions map[string][]models.Submission     // by game/user
	attachments map[string][]models.PointAssignment // by game/user

	failPointsByGame map[string]error
	failSubmissions  error
	failMembership   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games:            make(map[string]models.Game),
		members:          make(map[string][]models.GameUser),
		points:           make(map[string][]models.Point),
		assignments:      make(map[string][]models.Assignment),
		submissions:      make(map[string][]models.Submission),
		attachments:      make(map[string][]models.PointAssignment),
		failPointsByGame: make(map[string]error),
	}
}

func key(gameID, userID string) string { return gameID + "/" + userID }

func (f *fakeStore) addGame(g models.Game) {
	f.mu.Lock()
	f.games[g.ID] = g
	f.mu.Unlock()
}

func (f *fakeStore) addMember(m models.GameUser) {
	f.mu.Lock()
	f.members[m.GameID] = append(f.members[m.GameID], m)
	f.mu.Unlock()
}

func (f *fakeStore) addPoint(p models.Point) {
	f.mu.Lock()
	f.points[p.GameID] = append(f.points[p.GameID], p)
	f.mu.Unlock()
}

func (f *fakeStore) addAssignment(a models.Assignment) {
	f.mu.Lock()
	f.assignments[a.GameID] = append(f.assignments[a.GameID], a)
	f.mu.Unlock()
}

func (f *fakeStore) addSubmission(s models.Submission) {
	f.mu.Lock()
	f.submissions[key(s.GameID, s.UserID)] = append(f.submissions[key(s.GameID, s.UserID)], s)
	f.mu.Unlock()
}

func (f *fakeStore) GameByID(_ context.Context, id string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (f *fakeStore) ActiveGames(_ context.Context) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Game
	for _, g := range f.games {
		if g.Active() {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) Membership(_ context.Context, gameID, userID string) (*models.GameUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMembership != nil {
		return nil, f.failMembership
	}
	for _, m := range f.members[gameID] {
		if m.UserID == userID {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MembersOfGame(_ context.Context, gameID string) ([]models.GameUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GameUser(nil), f.members[gameID]...), nil
}

func (f *fakeStore) PointByID(_ context.Context, id string) (*models.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, points := range f.points {
		for _, p := range points {
			if p.ID == id {
				p := p
				return &p, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeStore) PointsByGame(_ context.Context, gameID string) ([]models.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failPointsByGame[gameID]; err != nil {
		return nil, err
	}
	return append([]models.Point(nil), f.points[gameID]...), nil
}

func (f *fakeStore) AssignmentsByGame(_ context.Context, gameID string) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Assignment(nil), f.assignments[gameID]...), nil
}

func (f *fakeStore) SubmissionsByUser(_ context.Context, gameID, userID string) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubmissions != nil {
		return nil, f.failSubmissions
	}
	return append([]models.Submission(nil), f.submissions[key(gameID, userID)]...), nil
}

func (f *fakeStore) AttachmentsByUser(_ context.Context, gameID, userID string) ([]models.PointAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PointAssignment(nil), f.attachments[key(gameID, userID)]...), nil
}

func (f *fakeStore) AttachAssignments(_ context.Context, gameID, pointID, userID string, assignmentIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range assignmentIDs {
		f.attachments[key(gameID, userID)] = append(f.attachments[key(gameID, userID)], models.PointAssignment{
			GameID:       gameID,
			PointID:      pointID,
			UserID:       userID,
			AssignmentID: id,
		})
	}
	return nil
}

func (f *fakeStore) Standings(_ context.Context, gameID string) ([]models.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.LeaderboardEntry
	for _, m := range f.members[gameID] {
		if m.Spectator {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:   m.UserID,
			UserName: m.UserName,
			Score:    models.ScoreOf(gameID, f.submissions[key(gameID, m.UserID)]),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// sentMessage is one recorded publish.
type sentMessage struct {
	UserID  string
	Sockets []*transport.Socket
	Msg     any
}

// fakePublisher records everything the runtime pushes out.
type fakePublisher struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (p *fakePublisher) SendToUser(userID string, v any) {
	p.mu.Lock()
	p.sent = append(p.sent, sentMessage{UserID: userID, Msg: v})
	p.mu.Unlock()
}

func (p *fakePublisher) SendToSockets(sockets []*transport.Socket, v any) {
	p.mu.Lock()
	p.sent = append(p.sent, sentMessage{Sockets: sockets, Msg: v})
	p.mu.Unlock()
}

func (p *fakePublisher) messages() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.sent...)
}
