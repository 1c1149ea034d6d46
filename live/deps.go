package live

import (
	"context"

	"game-live-system/models"
	"game-live-system/transport"
)

// Store is the slice of the persistence layer the runtime consumes.
// *store.Store satisfies it; tests plug in an in-memory fake. Lookup
// methods return (nil, nil) for "no such record"; absence is not an
// error at this layer.
type Store interface {
	GameByID(ctx context.Context, id string) (*models.Game, error)
	ActiveGames(ctx context.Context) ([]models.Game, error)

	Membership(ctx context.Context, gameID, userID string) (*models.GameUser, error)
	MembersOfGame(ctx context.Context, gameID string) ([]models.GameUser, error)

	PointByID(ctx context.Context, id string) (*models.Point, error)
	PointsByGame(ctx context.Context, gameID string) ([]models.Point, error)

	AssignmentsByGame(ctx context.Context, gameID string) ([]models.Assignment, error)
	SubmissionsByUser(ctx context.Context, gameID, userID string) ([]models.Submission, error)

	AttachmentsByUser(ctx context.Context, gameID, userID string) ([]models.PointAssignment, error)
	AttachAssignments(ctx context.Context, gameID, pointID, userID string, assignmentIDs []string) error

	Standings(ctx context.Context, gameID string) ([]models.LeaderboardEntry, error)
}

// Publisher pushes a typed message to a user's registered sockets or to
// an explicit socket list. The transport hub implements it; the runtime
// never manages connections itself.
type Publisher interface {
	SendToUser(userID string, v any)
	SendToSockets(sockets []*transport.Socket, v any)
}
