package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"game-live-system/models"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func testUser(st Store, gameID, userID string) *LiveUser {
	member := &models.GameUser{GameID: gameID, UserID: userID, UserName: "name-" + userID}
	return newLiveUser(st, gameID, member, 0)
}

func seedGameWorld(st *fakeStore, gameID string, pointCount, assignmentCount int, retry bool) {
	st.addGame(models.Game{ID: gameID, Name: gameID, Stage: models.StageActive})
	for i := 0; i < pointCount; i++ {
		st.addPoint(models.Point{
			ID:     fmt.Sprintf("point-%d", i),
			GameID: gameID,
			Name:   fmt.Sprintf("Point %d", i),
			Kind:   models.PointKindFactory,
		})
	}
	for i := 0; i < assignmentCount; i++ {
		st.addAssignment(models.Assignment{
			ID:     fmt.Sprintf("assignment-%d", i),
			GameID: gameID,
			Title:  fmt.Sprintf("Assignment %d", i),
			Points: 5,
			Retry:  retry,
		})
	}
}

func loadedManager(t *testing.T, st *fakeStore, gameID string, minClean, maxPerPoint int) *PointManager {
	t.Helper()
	m := newPointManager(st, testLogger(), gameID, minClean, maxPerPoint)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func TestUpdateUserPointsAllocatesMinimumCleanPoints(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 5, 10, false)
	st.addMember(models.GameUser{GameID: "g1", UserID: "u1", UserName: "Alice"})

	m := loadedManager(t, st, "g1", 3, 2)
	u := testUser(st, "g1", "u1")

	if err := m.UpdateUserPoints(context.Background(), u); err != nil {
		t.Fatalf("UpdateUserPoints: %v", err)
	}

	cleanPoints := 0
	usedAssignments := make(map[string]string)
	for _, p := range m.Points() {
		all, clean := p.Counts("u1")
		if all == 0 {
			continue
		}
		if all != 2 {
			t.Errorf("point %s got %d assignments, want 2", p.Point.ID, all)
		}
		if all != clean {
			t.Errorf("point %s has %d of %d attachments open after a fresh allocation", p.Point.ID, clean, all)
		}
		if p.Clean("u1") {
			cleanPoints++
		}
		p.mu.RLock()
		for _, att := range p.attachments["u1"] {
			if prev, dup := usedAssignments[att.AssignmentID]; dup {
				t.Errorf("assignment %s attached to both %s and %s", att.AssignmentID, prev, p.Point.ID)
			}
			usedAssignments[att.AssignmentID] = p.Point.ID
		}
		p.mu.RUnlock()
	}
	if cleanPoints != 3 {
		t.Fatalf("got %d clean points, want 3", cleanPoints)
	}

	rows, err := st.AttachmentsByUser(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("AttachmentsByUser: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("persisted %d attachment rows, want 6", len(rows))
	}
}

func TestUpdateUserPointsIsIdempotentOnceSatisfied(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 5, 10, false)
	m := loadedManager(t, st, "g1", 3, 2)
	u := testUser(st, "g1", "u1")

	ctx := context.Background()
	if err := m.UpdateUserPoints(ctx, u); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if err := m.UpdateUserPoints(ctx, u); err != nil {
		t.Fatalf("second pass: %v", err)
	}

	rows, _ := st.AttachmentsByUser(ctx, "g1", "u1")
	if len(rows) != 6 {
		t.Fatalf("second pass changed attachments: got %d rows, want 6", len(rows))
	}
}

func TestUpdateUserPointsBoundedByUnusedPoints(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 2, 10, false)
	m := loadedManager(t, st, "g1", 3, 2)
	u := testUser(st, "g1", "u1")

	if err := m.UpdateUserPoints(context.Background(), u); err != nil {
		t.Fatalf("UpdateUserPoints: %v", err)
	}

	cleanPoints := 0
	for _, p := range m.Points() {
		if p.Clean("u1") {
			cleanPoints++
		}
	}
	if cleanPoints != 2 {
		t.Fatalf("got %d clean points with only 2 points loaded, want 2", cleanPoints)
	}
}

func TestUpdateUserPointsShrinkingPoolShortsLaterPoints(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 2, 3, false)
	m := loadedManager(t, st, "g1", 2, 10)
	u := testUser(st, "g1", "u1")

	if err := m.UpdateUserPoints(context.Background(), u); err != nil {
		t.Fatalf("UpdateUserPoints: %v", err)
	}

	// Target is ceil(3/2)=2 per point but the shared pool only covers
	// the first point fully: counts come out as 2 and 1.
	var counts []int
	for _, p := range m.Points() {
		all, _ := p.Counts("u1")
		counts = append(counts, all)
	}
	total := counts[0] + counts[1]
	if total != 3 {
		t.Fatalf("attached %d assignments in total, want all 3", total)
	}
	if !(counts[0] == 2 && counts[1] == 1) && !(counts[0] == 1 && counts[1] == 2) {
		t.Fatalf("per-point counts %v, want a 2/1 split", counts)
	}
}

func TestUpdateUserPointsEmptyPoolsAreNotAnError(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 3, 0, false)
	m := loadedManager(t, st, "g1", 3, 2)
	u := testUser(st, "g1", "u1")

	if err := m.UpdateUserPoints(context.Background(), u); err != nil {
		t.Fatalf("empty assignment pool: %v", err)
	}
	rows, _ := st.AttachmentsByUser(context.Background(), "g1", "u1")
	if len(rows) != 0 {
		t.Fatalf("attached %d rows without any assignments", len(rows))
	}
}

func TestUpdateUserPointsNoUnusedPointsIsANoOp(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 2, 10, false)
	ctx := context.Background()
	// Every point already carries an answered assignment for the user.
	st.AttachAssignments(ctx, "g1", "point-0", "u1", []string{"assignment-0"})
	st.AttachAssignments(ctx, "g1", "point-1", "u1", []string{"assignment-1"})
	st.addSubmission(models.Submission{GameID: "g1", UserID: "u1", AssignmentID: "assignment-0", State: models.StateApproved})
	st.addSubmission(models.Submission{GameID: "g1", UserID: "u1", AssignmentID: "assignment-1", State: models.StateApproved})

	m := loadedManager(t, st, "g1", 3, 2)
	u := testUser(st, "g1", "u1")

	if err := m.UpdateUserPoints(ctx, u); err != nil {
		t.Fatalf("UpdateUserPoints: %v", err)
	}
	rows, _ := st.AttachmentsByUser(ctx, "g1", "u1")
	if len(rows) != 2 {
		t.Fatalf("allocation ran with no unused points: %d rows, want the seeded 2", len(rows))
	}
}

func TestUpdateUserPointsRejectedRetryableStaysClean(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 1, 1, true)
	ctx := context.Background()
	st.AttachAssignments(ctx, "g1", "point-0", "u1", []string{"assignment-0"})
	st.addSubmission(models.Submission{GameID: "g1", UserID: "u1", AssignmentID: "assignment-0", State: models.StateRejected})

	m := loadedManager(t, st, "g1", 1, 2)
	u := testUser(st, "g1", "u1")

	if err := m.UpdateUserPoints(ctx, u); err != nil {
		t.Fatalf("UpdateUserPoints: %v", err)
	}
	if !m.Points()[0].Clean("u1") {
		t.Fatalf("rejected submission on a retryable assignment should leave the point clean")
	}
	rows, _ := st.AttachmentsByUser(ctx, "g1", "u1")
	if len(rows) != 1 {
		t.Fatalf("allocation attached more work while the point was still clean: %d rows", len(rows))
	}
}

func TestUpdateUserPointsSubmittedAssignmentsLeaveThePool(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 1, 2, false)
	ctx := context.Background()
	// assignment-0 was answered without ever being attached; it must not
	// be handed out.
	st.addSubmission(models.Submission{GameID: "g1", UserID: "u1", AssignmentID: "assignment-0", State: models.StateApproved})

	m := loadedManager(t, st, "g1", 1, 2)
	u := testUser(st, "g1", "u1")

	if err := m.UpdateUserPoints(ctx, u); err != nil {
		t.Fatalf("UpdateUserPoints: %v", err)
	}
	rows, _ := st.AttachmentsByUser(ctx, "g1", "u1")
	if len(rows) != 1 || rows[0].AssignmentID != "assignment-1" {
		t.Fatalf("got attachments %+v, want only assignment-1", rows)
	}
}

func TestUpdateUserPointsPropagatesStoreErrors(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 2, 2, false)
	boom := errors.New("submissions unavailable")
	st.failSubmissions = boom

	m := loadedManager(t, st, "g1", 1, 2)
	u := testUser(st, "g1", "u1")

	if err := m.UpdateUserPoints(context.Background(), u); !errors.Is(err, boom) {
		t.Fatalf("got %v, want the injected store error", err)
	}
}

func TestUpdateUserPointsFiresAllocationHook(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 3, 3, false)
	m := loadedManager(t, st, "g1", 1, 2)
	u := testUser(st, "g1", "u1")

	var hookUser *LiveUser
	m.onAllocated = func(u *LiveUser) { hookUser = u }

	if err := m.UpdateUserPoints(context.Background(), u); err != nil {
		t.Fatalf("UpdateUserPoints: %v", err)
	}
	if hookUser != u {
		t.Fatalf("allocation hook did not fire for the allocated user")
	}

	// A satisfied pass must not fire the hook again.
	hookUser = nil
	if err := m.UpdateUserPoints(context.Background(), u); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if hookUser != nil {
		t.Fatalf("allocation hook fired on a pass that changed nothing")
	}
}

func TestLoadPointValidation(t *testing.T) {
	st := newFakeStore()
	st.addPoint(models.Point{ID: "7b0d2e6e-1111-4a7a-9a63-09c6d9a1f001", GameID: "g1", Name: "Mill", Kind: models.PointKindFactory})
	st.addPoint(models.Point{ID: "7b0d2e6e-2222-4a7a-9a63-09c6d9a1f002", GameID: "g2", Name: "Foreign", Kind: models.PointKindShop})

	m := newPointManager(st, testLogger(), "g1", 3, 2)
	ctx := context.Background()

	if _, err := m.LoadPoint(ctx, "not-a-uuid"); !errors.Is(err, ErrBadPointID) {
		t.Errorf("malformed id: got %v, want ErrBadPointID", err)
	}
	if _, err := m.LoadPoint(ctx, "7b0d2e6e-9999-4a7a-9a63-09c6d9a1f999"); !errors.Is(err, ErrUnknownPoint) {
		t.Errorf("unknown id: got %v, want ErrUnknownPoint", err)
	}
	if _, err := m.LoadPoint(ctx, "7b0d2e6e-2222-4a7a-9a63-09c6d9a1f002"); !errors.Is(err, ErrWrongGame) {
		t.Errorf("cross-game id: got %v, want ErrWrongGame", err)
	}

	p, err := m.LoadPoint(ctx, "7b0d2e6e-1111-4a7a-9a63-09c6d9a1f001")
	if err != nil {
		t.Fatalf("LoadPoint: %v", err)
	}
	again, err := m.LoadPoint(ctx, "7b0d2e6e-1111-4a7a-9a63-09c6d9a1f001")
	if err != nil {
		t.Fatalf("second LoadPoint: %v", err)
	}
	if p != again {
		t.Fatalf("point loaded twice")
	}
	if got := len(m.Points()); got != 1 {
		t.Fatalf("manager holds %d points, want 1", got)
	}
}

func TestTickClosesAnsweredAttachments(t *testing.T) {
	st := newFakeStore()
	seedGameWorld(st, "g1", 1, 2, false)
	ctx := context.Background()
	st.AttachAssignments(ctx, "g1", "point-0", "u1", []string{"assignment-0", "assignment-1"})

	m := loadedManager(t, st, "g1", 1, 2)
	u := testUser(st, "g1", "u1")
	if err := m.UpdateUserPoints(ctx, u); err != nil {
		t.Fatalf("UpdateUserPoints: %v", err)
	}
	p := m.Points()[0]
	if !p.Clean("u1") {
		t.Fatalf("point should start clean")
	}

	// Answer arrives out of band; only the tick notices.
	st.addSubmission(models.Submission{GameID: "g1", UserID: "u1", AssignmentID: "assignment-0", State: models.StateApproved})
	if err := p.Tick(ctx, st); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	all, clean := p.Counts("u1")
	if all != 2 || clean != 1 {
		t.Fatalf("after tick got all=%d clean=%d, want all=2 clean=1", all, clean)
	}
	if p.Clean("u1") {
		t.Fatalf("point with an answered attachment still reads clean")
	}
}

func TestVisiblePointsDefaultRule(t *testing.T) {
	st := newFakeStore()
	st.addGame(models.Game{ID: "g1", Stage: models.StageActive})
	st.addPoint(models.Point{ID: "shop-1", GameID: "g1", Name: "Shop", Kind: models.PointKindShop})
	st.addPoint(models.Point{ID: "factory-1", GameID: "g1", Name: "Factory", Kind: models.PointKindFactory})
	st.addMember(models.GameUser{GameID: "g1", UserID: "player", UserName: "Player"})
	st.addMember(models.GameUser{GameID: "g1", UserID: "watcher", UserName: "Watcher", Spectator: true})

	m := loadedManager(t, st, "g1", 1, 2)
	ctx := context.Background()

	player := testUser(st, "g1", "player")
	visible, err := m.VisiblePoints(ctx, player)
	if err != nil {
		t.Fatalf("VisiblePoints: %v", err)
	}
	if len(visible) != 1 || visible[0].Point.ID != "shop-1" {
		t.Fatalf("player with no open work sees %d points, want only the shop", len(visible))
	}

	// Open work on the factory makes it visible to the player.
	m.GetPoint("factory-1").attach("player", []string{"assignment-x"})
	visible, err = m.VisiblePoints(ctx, player)
	if err != nil {
		t.Fatalf("VisiblePoints: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("player with open factory work sees %d points, want 2", len(visible))
	}

	watcher := testUser(st, "g1", "watcher")
	visible, err = m.VisiblePoints(ctx, watcher)
	if err != nil {
		t.Fatalf("VisiblePoints: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("spectator sees %d points, want all 2", len(visible))
	}
}

func TestSetVisibilityConcurrentWithSweep(t *testing.T) {
	st := newFakeStore()
	st.addGame(models.Game{ID: "g1", Stage: models.StageActive})
	st.addPoint(models.Point{ID: "factory-1", GameID: "g1", Kind: models.PointKindFactory})
	st.addMember(models.GameUser{GameID: "g1", UserID: "player", UserName: "Player"})

	m := loadedManager(t, st, "g1", 1, 2)
	u := testUser(st, "g1", "player")
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			m.SetVisibility(func(*LivePoint, *LiveUser, bool) bool { return true })
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if _, err := m.VisiblePoints(ctx, u); err != nil {
				t.Errorf("VisiblePoints: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestSetVisibilityOverridesDefaultRule(t *testing.T) {
	st := newFakeStore()
	st.addGame(models.Game{ID: "g1", Stage: models.StageActive})
	st.addPoint(models.Point{ID: "factory-1", GameID: "g1", Kind: models.PointKindFactory})
	st.addMember(models.GameUser{GameID: "g1", UserID: "player", UserName: "Player"})

	m := loadedManager(t, st, "g1", 1, 2)
	m.SetVisibility(func(*LivePoint, *LiveUser, bool) bool { return true })

	visible, err := m.VisiblePoints(context.Background(), testUser(st, "g1", "player"))
	if err != nil {
		t.Fatalf("VisiblePoints: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("override rule ignored: %d visible points, want 1", len(visible))
	}
}
