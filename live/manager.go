package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"game-live-system/models"
	"game-live-system/transport"

	"go.uber.org/zap"
)

// ErrUnknownGame marks a game id with no persisted game behind it.
var ErrUnknownGame = errors.New("no such game")

// GameManager is the process-wide owner of every loaded live game and
// the entry point for the periodic sweeps. One instance per process.
type GameManager struct {
	store Store
	pub   Publisher
	log   *zap.SugaredLogger
	opts  Options

	mu    sync.RWMutex
	games map[string]*LiveGame
}

func NewGameManager(store Store, pub Publisher, log *zap.SugaredLogger, opts Options) *GameManager {
	return &GameManager{
		store: store,
		pub:   pub,
		log:   log,
		opts:  opts,
		games: make(map[string]*LiveGame),
	}
}

// Options returns the manager's runtime configuration.
func (m *GameManager) Options() Options {
	return m.opts
}

// Games returns a snapshot of the loaded games, ordered by id so sweeps
// visit them deterministically.
func (m *GameManager) Games() []*LiveGame {
	m.mu.RLock()
	out := make([]*LiveGame, 0, len(m.games))
	for _, g := range m.games {
		out = append(out, g)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Game.ID < out[j].Game.ID })
	return out
}

// GetGame returns the loaded live game for the id, lazily loading it on
// first request. A game in the setup stage yields (nil, nil): there is
// no live game, and that is not an error. A missing game is an error.
func (m *GameManager) GetGame(ctx context.Context, id string) (*LiveGame, error) {
	m.mu.RLock()
	g := m.games[id]
	m.mu.RUnlock()
	if g != nil {
		return g, nil
	}

	game, err := m.store.GameByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	if !game.Active() {
		return nil, nil
	}

	g = m.newGame(*game)
	if err := g.Load(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing := m.games[id]; existing != nil {
		// Lost the load race; keep the instance that won so the
		// one-live-game-per-id invariant holds.
		m.mu.Unlock()
		g.Unload()
		return existing, nil
	}
	m.games[id] = g
	m.mu.Unlock()

	m.log.Infow("game loaded", "game", id, "points", len(g.Points.Points()))
	return g, nil
}

// LoadAll unloads everything and loads every active-stage game in
// parallel. The first load failure is returned; failures of sibling
// loads after the first are logged and swallowed.
func (m *GameManager) LoadAll(ctx context.Context) error {
	games, err := m.store.ActiveGames(ctx)
	if err != nil {
		return err
	}

	m.UnloadAll()
	if len(games) == 0 {
		return nil
	}

	latch := NewJoinLatch()
	errc := make(chan error, 1)
	latch.Then(func() { errc <- nil })
	latch.OnError(func(err error) { errc <- err })
	latch.Add(len(games))

	for _, game := range games {
		go func(game models.Game) {
			g := m.newGame(game)
			if err := g.Load(ctx); err != nil {
				m.log.Errorw("game load failed", "game", game.ID, "err", err)
				latch.Fail(err)
				return
			}
			m.mu.Lock()
			m.games[game.ID] = g
			m.mu.Unlock()
			latch.Done()
		}(game)
	}

	if err := <-errc; err != nil {
		return err
	}
	m.log.Infof("loaded %d active games", len(games))
	return nil
}

// UnloadGame drops one live game. Already-scheduled sweep work for it
// still runs to completion against the detached instance.
func (m *GameManager) UnloadGame(id string) {
	m.mu.Lock()
	g := m.games[id]
	delete(m.games, id)
	m.mu.Unlock()
	if g != nil {
		g.Unload()
		m.log.Infow("game unloaded", "game", id)
	}
}

// UnloadAll drops every live game.
func (m *GameManager) UnloadAll() {
	m.mu.Lock()
	games := m.games
	m.games = make(map[string]*LiveGame)
	m.mu.Unlock()
	for _, g := range games {
		g.Unload()
	}
}

// newGame constructs a LiveGame and wires the allocation rebroadcast:
// when a user's attachments change their visible world changed too, so
// push them a fresh locations update. Failures there are logged only.
func (m *GameManager) newGame(game models.Game) *LiveGame {
	g := newLiveGame(m.store, m.log, game, m.opts)
	g.Points.onAllocated = func(u *LiveUser) {
		if err := m.BroadcastLocations(context.Background(), 0, &BroadcastFilter{Game: g, User: u}); err != nil {
			m.log.Warnw("post-allocation rebroadcast failed", "game", g.Game.ID, "user", u.ID, "err", err)
		}
	}
	return g
}

// spreadDelays computes the linear ramp: item k fires k*window/count
// into the window, so a sweep over many points never bursts at a single
// instant. Disabled spreading (or a zero window) fires everything now.
func spreadDelays(count int, window time.Duration, spread bool) []time.Duration {
	delays := make([]time.Duration, count)
	if !spread || count == 0 || window <= 0 {
		return delays
	}
	step := window / time.Duration(count)
	for k := range delays {
		delays[k] = time.Duration(k) * step
	}
	return delays
}

// Tick sweeps every point of every loaded game once, spread across the
// window, and returns when the whole sweep finished. First failure wins;
// later failures are logged and swallowed.
func (m *GameManager) Tick(ctx context.Context, window time.Duration) error {
	var points []*LivePoint
	for _, g := range m.Games() {
		points = append(points, g.Points.Points()...)
	}
	if len(points) == 0 {
		return nil
	}

	delays := spreadDelays(len(points), window, m.opts.SpreadTicks)
	latch := NewJoinLatch()
	errc := make(chan error, 1)
	latch.Then(func() { errc <- nil })
	latch.OnError(func(err error) { errc <- err })
	latch.Add(len(points))

	for k, p := range points {
		p := p
		time.AfterFunc(delays[k], func() {
			if err := p.Tick(ctx, m.store); err != nil {
				m.log.Errorw("point tick failed", "point", p.Point.ID, "err", err)
				latch.Fail(err)
				return
			}
			latch.Done()
		})
	}

	return <-errc
}

// BroadcastFilter narrows a location broadcast to one game, one user,
// or an explicit socket list (which implies a single user target).
type BroadcastFilter struct {
	Game    *LiveGame
	User    *LiveUser
	Sockets []*transport.Socket
}

// BroadcastLocations computes a locations payload for every matching
// (game, user) pair and pushes it out, spread across the window like a
// tick sweep. Payload errors surface once per sweep; delivery itself is
// fire-and-forget.
func (m *GameManager) BroadcastLocations(ctx context.Context, window time.Duration, filter *BroadcastFilter) error {
	if filter == nil {
		filter = &BroadcastFilter{}
	}

	games := m.Games()
	if filter.Game != nil {
		games = []*LiveGame{filter.Game}
	}

	type target struct {
		game *LiveGame
		user *LiveUser
	}
	var targets []target
	for _, g := range games {
		users := g.Users()
		if filter.User != nil {
			// A user filter pins the target to the user's own game even
			// when no game filter was given.
			if g.Game.ID != filter.User.GameID {
				continue
			}
			users = []*LiveUser{filter.User}
		}
		for _, u := range users {
			targets = append(targets, target{game: g, user: u})
		}
	}
	if len(targets) == 0 {
		return nil
	}

	delays := spreadDelays(len(targets), window, m.opts.SpreadTicks)
	latch := NewJoinLatch()
	errc := make(chan error, 1)
	latch.Then(func() { errc <- nil })
	latch.OnError(func(err error) { errc <- err })
	latch.Add(len(targets))

	for k, tgt := range targets {
		tgt := tgt
		time.AfterFunc(delays[k], func() {
			msg, err := m.locationsPayload(ctx, tgt.game, tgt.user)
			if err != nil {
				m.log.Errorw("location payload failed", "game", tgt.game.Game.ID, "user", tgt.user.ID, "err", err)
				latch.Fail(err)
				return
			}
			if len(filter.Sockets) > 0 {
				m.pub.SendToSockets(filter.Sockets, msg)
			} else {
				m.pub.SendToUser(tgt.user.ID, msg)
			}
			latch.Done()
		})
	}

	return <-errc
}

// locationsPayload builds one user's view: every other visible player
// plus their visible points. Spectators get every player regardless of
// staleness; players never see spectators.
func (m *GameManager) locationsPayload(ctx context.Context, g *LiveGame, u *LiveUser) (transport.GameLocationsUpdate, error) {
	msg := transport.NewGameLocationsUpdate(g.Game.ID)

	spectator, err := u.Spectator(ctx)
	if err != nil {
		return msg, err
	}

	for _, other := range g.Users() {
		if other.ID == u.ID {
			continue
		}
		loc, known := other.Location()
		if !known {
			continue
		}
		otherSpectator, err := other.Spectator(ctx)
		if err != nil {
			return msg, err
		}
		if otherSpectator {
			continue
		}
		if !spectator && !other.Visible() {
			continue
		}
		msg.Users = append(msg.Users, transport.UserLocation{
			User:     other.ID,
			UserName: other.Name,
			Location: loc,
		})
	}

	visible, err := g.Points.VisiblePoints(ctx, u)
	if err != nil {
		return msg, err
	}
	for _, p := range visible {
		msg.Points = append(msg.Points, pointSummary(p))
	}
	return msg, nil
}

func pointSummary(p *LivePoint) transport.PointSummary {
	return transport.PointSummary{
		ID:   p.Point.ID,
		Name: p.Point.Name,
		Kind: p.Point.Kind,
		Lat:  p.Point.Lat,
		Lng:  p.Point.Lng,
	}
}

// SendGameData pushes the full game snapshot to one user, or to an
// explicit socket list when given.
func (m *GameManager) SendGameData(ctx context.Context, g *LiveGame, userID string, sockets []*transport.Socket) error {
	msg, err := m.gameData(ctx, g)
	if err != nil {
		return err
	}
	if len(sockets) > 0 {
		m.pub.SendToSockets(sockets, msg)
	} else {
		m.pub.SendToUser(userID, msg)
	}
	return nil
}

// SendGameDataToAll pushes the snapshot to every member of the game.
func (m *GameManager) SendGameDataToAll(ctx context.Context, g *LiveGame) error {
	msg, err := m.gameData(ctx, g)
	if err != nil {
		return err
	}
	members, err := m.store.MembersOfGame(ctx, g.Game.ID)
	if err != nil {
		return err
	}
	for _, member := range members {
		m.pub.SendToUser(member.UserID, msg)
	}
	return nil
}

func (m *GameManager) gameData(ctx context.Context, g *LiveGame) (transport.GameData, error) {
	msg := transport.NewGameData(g.Game.ID, g.Game.Stage)
	for _, p := range g.Points.Points() {
		summary := pointSummary(p)
		if p.Point.Kind == models.PointKindShop {
			msg.Data.Shops = append(msg.Data.Shops, summary)
		} else {
			msg.Data.Factories = append(msg.Data.Factories, summary)
		}
	}
	standings, err := m.store.Standings(ctx, g.Game.ID)
	if err != nil {
		return msg, err
	}
	if standings != nil {
		msg.Data.Standings = standings
	}
	return msg, nil
}
