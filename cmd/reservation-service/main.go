package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/limit"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/platform"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/application"
	resgrpc "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/infrastructure/grpc"
	reshttp "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/infrastructure/http"
	reskafka "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/infrastructure/kafka"
	respg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/infrastructure/postgres"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/migrations"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/httpapi"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/qr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/shutdown"
)

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	app, err := platform.Boot(ctx, "reservation-service", migrations.Reservation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reservation-service: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	log, cfg := app.Log, app.Config

	repo := respg.NewRepository(log, app.Pool)
	guard := limit.New(repo, cfg.Limits.MaxReservationsPerUser, "reservations")

	var opts []application.Option
	if cfg.StallServiceAddr != "" {
		stalls, err := resgrpc.NewStallClient(log, cfg.StallServiceAddr, cfg.RequestTimeout/2)
		if err != nil {
			log.Error("stall client init failed", "err", err)
			os.Exit(1)
		}
		defer stalls.Close()
		opts = append(opts, application.WithStallClient(stalls))
	}
	svc := application.NewService(log, repo, guard, clock.NewSystem(), opts...)

	app.Go(ctx, cancel, "relay", app.Relay().Run)

	consumer := app.Consumer("reservation-stall-events", events.StallTopics, reskafka.NewHandler(log, svc).Handle)
	app.Go(ctx, cancel, "consumer", consumer.Run)

	router := httpapi.NewRouter(cfg.RequestTimeout)
	reshttp.NewHandler(log, svc, qr.NewRenderer(qr.DefaultSize)).Mount(router)

	if err := shutdown.ServeHTTP(ctx, log, app.HTTPServer(router), shutdown.DefaultGrace); err != nil {
		log.Error("http server error", "err", err)
	}
	log.Info("reservation-service shutdown complete")
}
