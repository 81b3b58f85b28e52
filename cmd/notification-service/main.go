package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/application"
	notifykafka "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/infrastructure/kafka"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/infrastructure/mail"
	notifypg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/infrastructure/postgres"
	notifyredis "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/infrastructure/redis"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/platform"
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

	app, err := platform.Boot(ctx, "notification-service", migrations.Notification)
	if err != nil {
		fmt.Fprintf(os.Stderr, "notification-service: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	log, cfg := app.Log, app.Config

	notifier := application.NewNotifier(log,
		mail.NewSender(log, cfg.SMTP),
		qr.NewRenderer(qr.DefaultSize),
		notifyredis.NewDeliveryStore(app.Idempotency("notification"), notifyredis.DefaultClaimLease),
		notifypg.NewReceiptRepository(log, app.Pool),
		clock.NewSystem(),
	)

	consumer := app.Consumer("notifier", events.ReservationTopics, notifykafka.NewHandler(log, notifier).Handle)
	app.Go(ctx, cancel, "consumer", consumer.Run)

	// Health and metrics only.
	router := httpapi.NewRouter(cfg.RequestTimeout)
	if err := shutdown.ServeHTTP(ctx, log, app.HTTPServer(router), shutdown.DefaultGrace); err != nil {
		log.Error("http server error", "err", err)
	}
	log.Info("notification-service shutdown complete")
}
