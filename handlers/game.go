// handlers/game_routes.go
package handlers

import (
	"game-live-system/middleware"
	"game-live-system/models"
	"game-live-system/store"

	"github.com/gofiber/fiber/v2"
)

// SetupGameRoutes wires the setup/admin surface: creating games and
// their content. Gameplay itself happens over the live routes.
func SetupGameRoutes(app *fiber.App, st *store.Store) {
	app.Get("/games/:id", func(c *fiber.Ctx) error {
		game, err := st.GameByID(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		if game == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return c.JSON(game)
	})

	app.Get("/games/:id/standings", func(c *fiber.Ctx) error {
		standings, err := st.Standings(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute standings"})
		}
		return c.JSON(standings)
	})

	// 🔐 Secured routes — require user context from the Gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/games", func(c *fiber.Ctx) error {
		var game models.Game
		if err := c.BodyParser(&game); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		if game.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		if err := st.CreateGame(c.Context(), &game); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(game)
	})

	secured.Post("/games/:id/members", func(c *fiber.Ctx) error {
		var member models.GameUser
		if err := c.BodyParser(&member); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		member.GameID = c.Params("id")
		if member.UserID == "" || member.UserName == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and user_name are required"})
		}
		if err := st.AddMember(c.Context(), &member); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(member)
	})

	secured.Post("/games/:id/points", func(c *fiber.Ctx) error {
		var point models.Point
		if err := c.BodyParser(&point); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		point.GameID = c.Params("id")
		if point.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		if err := st.CreatePoint(c.Context(), &point); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(point)
	})

	secured.Post("/games/:id/assignments", func(c *fiber.Ctx) error {
		var assignment models.Assignment
		if err := c.BodyParser(&assignment); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		assignment.GameID = c.Params("id")
		if assignment.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
		}
		if err := st.CreateAssignment(c.Context(), &assignment); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(assignment)
	})
}
