package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"seatwatch/internal/config"
	"seatwatch/internal/database"
	"seatwatch/internal/engine"
	"seatwatch/internal/handler"
	"seatwatch/internal/notifier"
	"seatwatch/internal/queue"
	"seatwatch/internal/repository"
	"seatwatch/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	seats := repository.NewSeatRepo(db)
	reservations := repository.NewReservationRepo(db)
	holders := repository.NewHolderRepo(db)
	store := repository.NewStore(db, seats, reservations)

	hub := notifier.NewHub()
	bridge := notifier.StartBrokerBridge(hub, cfg.BrokerURL)
	defer bridge.Stop()

	eng := engine.New(store, hub, cfg.ReservationDuration)

	sweeper := engine.NewSweeper(eng, cfg.SweepSchedule, cfg.SweepTimeout)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer sweeper.Stop()

	go queue.StartDetectionConsumer(cfg.BrokerURL, eng)
	go queue.StartTransitionLogger(cfg.BrokerURL)

	rdb := config.NewRedisClient() // nil when Redis is unreachable; cache and limiter fail open
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true

	seatHandler := handler.NewSeatHandler(seats)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(holders, cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost))
	router.RegisterSeats(e, seatHandler, &handler.StreamHandler{Hub: hub}, cacheCfg, rdb)
	router.RegisterProtected(e, &cfg, rdb,
		handler.NewReservationHandler(eng, cacheCfg, rdb),
		seatHandler,
		&handler.DetectionHandler{Engine: eng},
		&handler.SweepHandler{Engine: eng},
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
