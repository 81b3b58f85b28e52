package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/metrics"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/tracing"
)

var errInFlight = errors.New("notification in flight on another worker")

// Notifier turns reservation events into mail. Each idempotency key is mailed
// at most once after a successful send.
type Notifier struct {
	log      *slog.Logger
	mailer   Mailer
	qr       QRRenderer
	store    DeliveryStore
	receipts ReceiptRepository
	clock    clock.Clock
	tracer   trace.Tracer
}

func NewNotifier(log *slog.Logger, mailer Mailer, qr QRRenderer, store DeliveryStore, receipts ReceiptRepository, clk clock.Clock) *Notifier {
	return &Notifier{
		log:      log,
		mailer:   mailer,
		qr:       qr,
		store:    store,
		receipts: receipts,
		clock:    clk,
		tracer:   tracing.Tracer("notifier"),
	}
}

func (n *Notifier) Handle(ctx context.Context, ev events.Event) error {
	r, ok := reservationOf(ev)
	if !ok {
		n.log.Debug("event ignored by notifier", "kind", ev.Kind())
		return nil
	}
	key := ev.IdempotencyKey()
	kind := ev.Kind()

	ctx, span := n.tracer.Start(ctx, "notification.handle", trace.WithAttributes(
		attribute.String("idempotency_key", key),
		attribute.String("event", string(kind)),
	))
	defer span.End()

	done, err := n.delivered(ctx, key)
	if err != nil {
		return err
	}
	if done {
		n.log.Info("notification already delivered", "key", key)
		record(kind, "duplicate")
		return nil
	}

	claimed, err := n.store.Claim(ctx, key)
	if err != nil {
		return apperr.Transient(err)
	}
	if !claimed {
		return apperr.Transient(fmt.Errorf("%s: %w", key, errInFlight))
	}

	// Bookkeeping after the claim must survive a cancelled ctx, or a shutdown
	// mid-send would leave a delivered mail unrecorded.
	bg := context.WithoutCancel(ctx)

	// Another worker may have finished between the first check and the claim.
	done, err = n.delivered(ctx, key)
	if err != nil || done {
		n.release(bg, key)
		if done {
			n.log.Info("notification delivered by another worker", "key", key)
			record(kind, "duplicate")
		}
		return err
	}

	outcome, subject, attachment, err := n.deliver(ctx, r, kind)
	if errors.Is(err, domain.ErrDeliveryUnknown) {
		// The mail may be out. Record it so nothing resends it, then let the
		// error dead-letter the message for an operator to look at.
		n.log.Error("notification outcome unknown", "key", key, "err", err)
		n.finish(bg, r, kind, key, domain.OutcomeUnknown, "", "")
		return err
	}
	if err != nil {
		n.release(bg, key)
		record(kind, "failed")
		return err
	}

	n.finish(bg, r, kind, key, outcome, subject, attachment)
	n.log.Info("notification handled", "key", key, "outcome", outcome, "reservation_id", r.ReservationID)
	return nil
}

// delivered reports whether key was handled before. The Redis marker expires,
// so a miss falls back to the durable receipt and restores the marker.
func (n *Notifier) delivered(ctx context.Context, key string) (bool, error) {
	done, err := n.store.Delivered(ctx, key)
	if err != nil {
		return false, apperr.Transient(err)
	}
	if done {
		return true, nil
	}

	rc, err := n.receipts.Get(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Transient(err)
	}
	if err := n.store.MarkDelivered(ctx, key, rc.Outcome); err != nil {
		n.log.Warn("restore delivery marker failed", "key", key, "err", err)
	}
	return true, nil
}

func (n *Notifier) release(ctx context.Context, key string) {
	if err := n.store.Release(ctx, key); err != nil {
		n.log.Warn("release delivery claim failed", "key", key, "err", err)
	}
}

// finish records a handled notification. The mail is out, so failures here are
// logged, never retried, and a redelivery cannot send it twice.
func (n *Notifier) finish(ctx context.Context, r events.Reservation, kind events.Kind, key string, outcome domain.Outcome, subject, attachment string) {
	if err := n.store.MarkDelivered(ctx, key, outcome); err != nil {
		n.log.Error("mark delivered failed", "key", key, "err", err)
	}
	receipt := domain.Receipt{
		Key:           key,
		ReservationID: r.ReservationID,
		Event:         string(kind),
		Recipient:     r.Email,
		Subject:       subject,
		Attachment:    attachment,
		QRSeed:        seedOf(r),
		Outcome:       outcome,
		SentAt:        n.clock.Now(),
	}
	if err := n.receipts.Save(ctx, receipt); err != nil {
		n.log.Error("save receipt failed", "key", key, "err", err)
	}
	record(kind, string(outcome))
}

// deliver sends the mail for r. It returns the outcome, the subject and the
// attachment name that went out.
func (n *Notifier) deliver(ctx context.Context, r events.Reservation, kind events.Kind) (domain.Outcome, string, string, error) {
	if r.Email == "" {
		n.log.Info("no recipient, notification skipped", "reservation_id", r.ReservationID, "event", kind)
		return domain.OutcomeSkipped, "", "", nil
	}

	outcome := domain.OutcomeSent
	var attachments []domain.Attachment
	if wantsPass(kind) {
		png, err := n.qr.Render(seedOf(r))
		if err != nil {
			n.log.Warn("qr render failed, sending without pass", "reservation_id", r.ReservationID, "err", err)
			outcome = domain.OutcomeDegraded
		} else {
			attachments = append(attachments, domain.Attachment{
				Name:        domain.QRAttachmentName,
				ContentType: "image/png",
				Data:        png,
			})
		}
	}

	msg, err := compose(r, kind, len(attachments) > 0)
	if err != nil {
		return "", "", "", err
	}
	if err := n.mailer.Send(ctx, r.Email, msg.Subject, msg.Body, attachments); err != nil {
		// Unclassified send failures are retried; the mailer marks rejections
		// that can never succeed as invalid.
		if apperr.KindOf(err) == apperr.KindInternal && !errors.Is(err, domain.ErrDeliveryUnknown) {
			err = apperr.Transient(err)
		}
		return "", "", "", fmt.Errorf("send %s to %s: %w", kind, r.Email, err)
	}

	var name string
	if len(attachments) > 0 {
		name = attachments[0].Name
	}
	return outcome, msg.Subject, name, nil
}

func reservationOf(ev events.Event) (events.Reservation, bool) {
	switch e := ev.(type) {
	case events.ReservationCreated:
		return e.Reservation, true
	case events.ReservationConfirmed:
		return e.Reservation, true
	case events.ReservationCancelled:
		return e.Reservation, true
	}
	return events.Reservation{}, false
}

func seedOf(r events.Reservation) string {
	if r.QRSeed != "" {
		return r.QRSeed
	}
	return events.QRSeed(r.ReservationID, r.StallID, r.UserID)
}

func record(kind events.Kind, outcome string) {
	metrics.NotificationsTotal.WithLabelValues(string(kind), outcome).Inc()
}
