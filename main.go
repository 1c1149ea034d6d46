package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"game-live-system/handlers"
	"game-live-system/live"
	"game-live-system/middleware"
	"game-live-system/models"
	"game-live-system/store"
	"game-live-system/transport"
	"game-live-system/utils"
	"game-live-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	logger, err := utils.NewLogger("live.log")
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Game{},
		&models.GameUser{},
		&models.Point{},
		&models.Assignment{},
		&models.Submission{},
		&models.PointAssignment{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	st := store.New(db)

	if os.Getenv("SEED_DEMO") == "true" {
		if err := st.SeedDemo(context.Background()); err != nil {
			log.Fatal("failed to seed demo data:", err)
		}
		log.Println("✅ Demo game seeded")
	}

	hub := transport.NewHub(logger)
	opts := live.OptionsFromEnv()
	manager := live.NewGameManager(st, hub, logger, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bring every active-stage game up before accepting traffic.
	if err := manager.LoadAll(ctx); err != nil {
		log.Fatal("failed to load active games:", err)
	}

	runtimeWorker := workers.NewRuntimeWorker(manager, logger)
	if err := runtimeWorker.Start(ctx); err != nil {
		log.Fatal("failed to start runtime worker:", err)
	}

	handlers.SetupGameRoutes(app, st)
	handlers.SetupLiveRoutes(app, manager, hub, st, logger)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":5300"
	}

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", addr)
	log.Printf("✅ Live runtime: %d games loaded", len(manager.Games()))
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	runtimeWorker.Stop()
	manager.UnloadAll()
	_ = app.Shutdown()
}
