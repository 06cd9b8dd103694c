package main // Entry point package

import (
	"context"
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/feastfriends/feastfriends/internal/config"
	"github.com/feastfriends/feastfriends/internal/database"
	"github.com/feastfriends/feastfriends/internal/handler"
	"github.com/feastfriends/feastfriends/internal/logging"
	"github.com/feastfriends/feastfriends/internal/queue"
	"github.com/feastfriends/feastfriends/internal/repository"
	"github.com/feastfriends/feastfriends/internal/router"
	"github.com/feastfriends/feastfriends/internal/service"
)

func main() {
	_ = godotenv.Load() // load .env when present; real env wins
	logging.Setup()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		slog.Warn("redis unavailable, rate limiting disabled")
	}

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	roomRepo := repository.NewRoomRepo(db)
	groupRepo := repository.NewGroupRepo(db)

	notifier := queue.NewPublisher()

	matching := service.NewMatchingService(roomRepo, groupRepo, userRepo, notifier, service.MatchingConfig{
		RoomWindow:    cfg.RoomWindow,
		VotingWindow:  cfg.VotingWindow,
		MaxMembers:    cfg.MaxRoomMembers,
		MinGroupSize:  cfg.MinGroupSize,
		MinMatchScore: cfg.MinMatchScore,
	})
	voting := service.NewVotingService(groupRepo, userRepo, notifier)

	sweeper := service.NewSweeper(matching, voting, cfg.RoomSweepInterval, cfg.GroupSweepInterval)
	go sweeper.Run(context.Background())

	go func() {
		if err := queue.StartEventConsumer(); err != nil {
			slog.Error("event consumer stopped", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo, tokenRepo), cfg.JWTSecret)
	router.RegisterMatching(e,
		handler.NewMatchingHandler(matching),
		handler.NewGroupHandler(voting),
		cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	slog.Info("listening", "addr", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
