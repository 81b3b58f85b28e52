package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/limit"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/platform"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/application"
	stallgrpc "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/grpc"
	stallhttp "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/http"
	stallkafka "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/kafka"
	stallpg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/postgres"
	stallredis "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/redis"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/migrations"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/httpapi"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/shutdown"
)

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	app, err := platform.Boot(ctx, "stall-service", migrations.Stall)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stall-service: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	log, cfg := app.Log, app.Config

	repo := stallpg.NewRepository(log, app.Pool)
	guard := limit.New(limit.CounterFunc(repo.CountReserved), cfg.Limits.MaxStallsPerUser, "stalls")
	tombs := stallredis.NewTombstones(app.Idempotency("stall"))
	allocator := application.NewAllocator(log, repo, guard, clock.NewSystem(), tombs)

	gs, err := stallgrpc.Run(log, cfg.GRPCAddr, stallgrpc.NewServer(log, allocator))
	if err != nil {
		log.Error("grpc server failed", "err", err)
		os.Exit(1)
	}
	defer gs.GracefulStop()

	app.Go(ctx, cancel, "relay", app.Relay().Run)

	consumer := app.Consumer("stall-reservation-events", events.ReservationTopics, stallkafka.NewHandler(log, allocator).Handle)
	app.Go(ctx, cancel, "consumer", consumer.Run)

	router := httpapi.NewRouter(cfg.RequestTimeout)
	stallhttp.NewHandler(log, allocator).Mount(router)

	if err := shutdown.ServeHTTP(ctx, log, app.HTTPServer(router), shutdown.DefaultGrace); err != nil {
		log.Error("http server error", "err", err)
	}
	log.Info("stall-service shutdown complete")
}
