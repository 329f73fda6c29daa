// Command sweep runs a single expiry sweep and exits. It exists for
// deployments that drive the sweep from an external scheduler instead
// of the in-process one.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"seatwatch/internal/config"
	"seatwatch/internal/database"
	"seatwatch/internal/engine"
	"seatwatch/internal/repository"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	store := repository.NewStore(db, repository.NewSeatRepo(db), repository.NewReservationRepo(db))
	eng := engine.New(store, nil, cfg.ReservationDuration)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
	defer cancel()

	report, err := eng.RunExpirySweep(ctx)
	if err != nil {
		log.Fatalf("sweep: %v", err)
	}
	log.Printf("sweep: expired=%d released=%d left_occupied=%d failed=%d",
		report.Expired, report.Released, report.LeftOccupied, report.Failed)
}
