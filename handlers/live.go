// handlers/live_routes.go
package handlers

import (
	"context"
	"encoding/json"

	"game-live-system/live"
	"game-live-system/middleware"
	"game-live-system/models"
	"game-live-system/store"
	"game-live-system/transport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// SetupLiveRoutes wires the gameplay surface: the websocket, the
// lifecycle controls, and submission intake (the allocation trigger).
func SetupLiveRoutes(app *fiber.App, manager *live.GameManager, hub *transport.Hub, st *store.Store, log *zap.SugaredLogger) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		gameID := conn.Query("game")
		userID := conn.Query("user")
		ctx := context.Background()

		g, err := manager.GetGame(ctx, gameID)
		if err != nil {
			log.Warnw("ws rejected", "game", gameID, "err", err)
			_ = conn.Close()
			return
		}
		if g == nil {
			// Game exists but is not in an active stage — nothing to join.
			_ = conn.Close()
			return
		}
		if _, err := g.User(ctx, userID); err != nil {
			log.Warnw("ws rejected", "game", gameID, "user", userID, "err", err)
			_ = conn.Close()
			return
		}

		sock := hub.Register(userID, conn)
		defer hub.Unregister(sock)

		if err := manager.SendGameData(ctx, g, userID, []*transport.Socket{sock}); err != nil {
			log.Warnw("initial game data push failed", "game", gameID, "user", userID, "err", err)
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg transport.ClientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			if msg.Type != transport.ClientTypeLocation {
				continue
			}
			err = g.UpdateLocation(ctx, userID, models.Location{
				Lat:      msg.Lat,
				Lng:      msg.Lng,
				Accuracy: msg.Accuracy,
				Altitude: msg.Altitude,
			})
			if err != nil {
				log.Warnw("location update failed", "game", gameID, "user", userID, "err", err)
			}
		}
	}))

	// 🔐 Runtime lifecycle + gameplay writes need user context
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/games/:id/load", func(c *fiber.Ctx) error {
		g, err := manager.GetGame(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if g == nil {
			return c.JSON(fiber.Map{"live": false})
		}
		return c.JSON(fiber.Map{"live": true, "game": g.Game.ID})
	})

	secured.Post("/games/:id/unload", func(c *fiber.Ctx) error {
		manager.UnloadGame(c.Params("id"))
		return c.JSON(fiber.Map{"ok": true})
	})

	secured.Post("/load-all", func(c *fiber.Ctx) error {
		if err := manager.LoadAll(c.Context()); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"loaded": len(manager.Games())})
	})

	secured.Post("/games/:id/submissions", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		gameID := c.Params("id")

		var body struct {
			AssignmentID string `json:"assignment_id"`
			AnswerText   string `json:"answer_text"`
			AnswerFile   string `json:"answer_file"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		if body.AssignmentID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "assignment_id is required"})
		}

		sub := &models.Submission{
			AssignmentID: body.AssignmentID,
			GameID:       gameID,
			UserID:       userID,
			AnswerText:   body.AnswerText,
			AnswerFile:   body.AnswerFile,
		}
		if err := st.CreateSubmission(c.Context(), sub); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		// A submission may have cost the user a clean point; run the
		// allocation pass right away. Allocation trouble doesn't fail
		// the submission itself.
		g, err := manager.GetGame(c.Context(), gameID)
		if err == nil && g != nil {
			if u, uerr := g.User(c.Context(), userID); uerr == nil {
				if aerr := g.Points.UpdateUserPoints(c.Context(), u); aerr != nil {
					log.Warnw("allocation after submission failed", "game", gameID, "user", userID, "err", aerr)
				}
			}
		}

		return c.Status(fiber.StatusCreated).JSON(sub)
	})
}
