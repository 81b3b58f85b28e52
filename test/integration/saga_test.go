//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/limit"
	notifyapp "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/application"
	notifydomain "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/domain"
	notifykafka "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/infrastructure/kafka"
	notifypg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/infrastructure/postgres"
	notifyredis "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/infrastructure/redis"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/platform"
	resapp "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/application"
	resgrpc "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/infrastructure/grpc"
	reskafka "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/infrastructure/kafka"
	respg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/infrastructure/postgres"
	stallapp "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/application"
	stalldomain "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/domain"
	stallgrpc "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/grpc"
	stallkafka "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/kafka"
	stallpg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/postgres"
	stallredis "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/infrastructure/redis"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/migrations"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/config"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/idempotency"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/messaging"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/outbox"
	pg "github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/postgres"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/qr"
)

type inbox struct {
	mu       sync.Mutex
	subjects []string
}

func (b *inbox) Send(_ context.Context, _, subject, _ string, _ []notifydomain.Attachment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *inbox) Subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.subjects...)
}

func TestReservationSaga(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(context.Background())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := pg.Connect(ctx, log, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()
	for _, set := range migrations.Sets() {
		require.NoError(t, migrations.Apply(ctx, pool, set))
	}

	writer := messaging.NewWriter(env.KAddr)
	defer writer.Close()
	relay := outbox.NewRelay(log, outbox.NewPgStore(log, pool, 5), outbox.NewDispatcher(log, writer, "cibf.dead-letter"), "it-relay",
		outbox.WithInterval(100*time.Millisecond))
	go func() { _ = relay.Run(ctx) }()

	// stall service
	stallRepo := stallpg.NewRepository(log, pool)
	allocator := stallapp.NewAllocator(log, stallRepo,
		limit.New(limit.CounterFunc(stallRepo.CountReserved), 3, "stalls"), clock.NewSystem(),
		stallredis.NewTombstones(idempotency.NewStore(env.RDB, "stall", time.Hour)))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := stallgrpc.NewGRPCServer(log, stallgrpc.NewServer(log, allocator))
	go func() { _ = gs.Serve(lis) }()
	defer gs.Stop()

	// reservation service
	stalls, err := resgrpc.NewStallClient(log, lis.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer stalls.Close()
	resRepo := respg.NewRepository(log, pool)
	svc := resapp.NewService(log, resRepo, limit.New(resRepo, 3, "reservations"), clock.NewSystem(), resapp.WithStallClient(stalls))

	// notifier
	mail := &inbox{}
	notifier := notifyapp.NewNotifier(log, mail, qr.NewRenderer(128),
		notifyredis.NewDeliveryStore(idempotency.NewStore(env.RDB, "notification", time.Hour), time.Minute),
		notifypg.NewReceiptRepository(log, pool), clock.NewSystem())

	// Every service shares one Redis, as in the default deployment.
	consume := func(service string, topics []string, h messaging.Handler) {
		cfg := config.Default(service)
		cfg.KafkaBrokers = env.KAddr
		cfg.IdempotencyTTL = time.Hour
		cfg.Consumer.MaxAttempts = 3
		cfg.Consumer.InitialBackoff = 50 * time.Millisecond
		app := &platform.App{Config: cfg, Log: log, Redis: env.RDB, Writer: writer}
		c := app.Consumer(service, topics, h)
		go func() { _ = c.Run(ctx) }()
	}
	consume("stall-service", events.ReservationTopics, stallkafka.NewHandler(log, allocator).Handle)
	consume("reservation-service", events.StallTopics, reskafka.NewHandler(log, svc).Handle)
	consume("notification-service", events.ReservationTopics, notifykafka.NewHandler(log, notifier).Handle)

	stall, err := allocator.Create(ctx, stallapp.CreateInput{Name: "IT-A1", Size: stalldomain.SizeSmall, Dimension: 4, Price: 900})
	require.NoError(t, err)

	res, err := svc.Create(ctx, resapp.CreateInput{UserID: "u-it", Email: "vendor@example.lk", StallID: stall.ID, Amount: 900})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := allocator.Get(ctx, stall.ID)
		return err == nil && st.Status == stalldomain.StatusReserved && st.ReservationID == res.ID
	}, time.Minute, 200*time.Millisecond, "stall should be reserved for the reservation")

	_, err = svc.Confirm(ctx, res.ID)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, res.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := allocator.Get(ctx, stall.ID)
		return err == nil && st.Status == stalldomain.StatusAvailable && st.ReservedBy == ""
	}, time.Minute, 200*time.Millisecond, "stall should be released after cancel")

	require.Eventually(t, func() bool { return len(mail.Subjects()) == 3 }, time.Minute, 200*time.Millisecond)
	assert.ElementsMatch(t, []string{
		"CIBF stall reservation received",
		"CIBF stall reservation confirmed",
		"CIBF stall reservation cancelled",
	}, mail.Subjects())

	// A second reservation for the released stall still works.
	again, err := svc.Create(ctx, resapp.CreateInput{UserID: "u-it-2", StallID: stall.ID, Amount: 900})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, err := allocator.Get(ctx, stall.ID)
		return err == nil && st.ReservationID == again.ID
	}, time.Minute, 200*time.Millisecond)
}
