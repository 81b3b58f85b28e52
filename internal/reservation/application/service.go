package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/limit"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/metrics"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/tracing"
)

type Service struct {
	log    *slog.Logger
	repo   ReservationRepository
	guard  *limit.Guard
	clock  clock.Clock
	stalls StallClient
	tracer trace.Tracer
}

type Option func(*Service)

// WithStallClient enables the advisory availability check on Create and the
// compensating release of stalls reserved for cancelled reservations.
func WithStallClient(c StallClient) Option {
	return func(s *Service) {
		s.stalls = c
	}
}

func NewService(log *slog.Logger, repo ReservationRepository, guard *limit.Guard, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		log:    log,
		repo:   repo,
		guard:  guard,
		clock:  clk,
		tracer: tracing.Tracer("reservation-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	// ID is optional. Supplying one makes retries after a timeout safe.
	ID      string
	UserID  string
	Email   string
	StallID string
	Amount  float64
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.create", trace.WithAttributes(
		attribute.String("user_id", in.UserID),
		attribute.String("stall_id", in.StallID),
	))
	defer span.End()

	if in.ID != "" {
		existing, err := s.repo.Get(ctx, in.ID)
		switch {
		case err == nil:
			return s.sameRequest(existing, in)
		case !errors.Is(err, apperr.ErrNotFound):
			return domain.Reservation{}, err
		}
	} else {
		in.ID = uuid.NewString()
	}

	r, err := domain.New(in.ID, in.UserID, in.Email, in.StallID, in.Amount, s.clock.Now())
	if err != nil {
		return domain.Reservation{}, err
	}

	if err := s.guard.AssertWithinLimit(ctx, in.UserID); err != nil {
		reject("create", err)
		return domain.Reservation{}, err
	}
	if err := s.precheckStall(ctx, in.StallID); err != nil {
		reject("create", err)
		return domain.Reservation{}, err
	}

	if err := s.repo.Create(ctx, r, events.ReservationCreated{Reservation: r.Snapshot()}); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			existing, getErr := s.repo.Get(ctx, in.ID)
			if getErr != nil {
				return domain.Reservation{}, err
			}
			return s.sameRequest(existing, in)
		}
		return domain.Reservation{}, err
	}
	metrics.ReservationTransitionsTotal.WithLabelValues(string(domain.StatusPending)).Inc()
	s.log.Info("reservation created", "reservation_id", r.ID, "user_id", r.UserID, "stall_id", r.StallID)

	if err := s.backstop(ctx, r); err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}

// backstop catches creates that raced past the guard. The newest active
// reservations beyond the quota are cancelled again.
func (s *Service) backstop(ctx context.Context, r domain.Reservation) error {
	rank, err := s.repo.ActiveRank(ctx, r.UserID, r.ID)
	if err != nil {
		s.log.Warn("quota backstop skipped", "reservation_id", r.ID, "err", err)
		return nil
	}
	if rank <= s.guard.Max() {
		return nil
	}

	if _, err := s.cancel(ctx, "backstop", r.ID, domain.Reservation.CancelOverQuota); err != nil && !errors.Is(err, apperr.ErrInvalidTransition) {
		s.log.Error("quota backstop cancel failed", "reservation_id", r.ID, "err", err)
		return err
	}
	metrics.QuotaBackstopCancellationsTotal.Inc()
	s.log.Warn("reservation over quota cancelled", "reservation_id", r.ID, "user_id", r.UserID, "rank", rank)
	err = quotaExceeded(r.UserID, s.guard.Max())
	reject("create", err)
	return err
}

func quotaExceeded(userID string, quota int) error {
	return fmt.Errorf("user %s exceeded %d active reservations: %w", userID, quota, apperr.ErrQuotaExceeded)
}

func (s *Service) precheckStall(ctx context.Context, stallID string) error {
	if s.stalls == nil {
		return nil
	}
	av, err := s.stalls.CheckAvailability(ctx, stallID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return err
	case err != nil:
		s.log.Warn("stall availability check failed, continuing", "stall_id", stallID, "err", err)
		return nil
	case !av.Available:
		return fmt.Errorf("stall %s: %s: %w", stallID, av.Message, apperr.ErrNotAvailable)
	}
	return nil
}

func (s *Service) Confirm(ctx context.Context, id string) (domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.confirm", trace.WithAttributes(attribute.String("reservation_id", id)))
	defer span.End()

	return s.transition(ctx, "confirm", id, func(r domain.Reservation, now time.Time) (domain.Reservation, events.Event, error) {
		next, err := r.Confirm(now)
		if err != nil {
			return domain.Reservation{}, nil, err
		}
		return next, events.ReservationConfirmed{Reservation: next.Snapshot()}, nil
	})
}

// Cancel moves a PENDING or CONFIRMED reservation to CANCELLED. The emitted
// event is what makes the stall service release the stall.
func (s *Service) Cancel(ctx context.Context, id string) (domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.cancel", trace.WithAttributes(attribute.String("reservation_id", id)))
	defer span.End()

	return s.cancel(ctx, "cancel", id, domain.Reservation.Cancel)
}

func (s *Service) cancel(ctx context.Context, op, id string, cancel func(domain.Reservation, time.Time) (domain.Reservation, error)) (domain.Reservation, error) {
	return s.transition(ctx, op, id, func(r domain.Reservation, now time.Time) (domain.Reservation, events.Event, error) {
		next, err := cancel(r, now)
		if err != nil {
			return domain.Reservation{}, nil, err
		}
		return next, events.ReservationCancelled{Reservation: next.Snapshot()}, nil
	})
}

type transitionFunc func(r domain.Reservation, now time.Time) (domain.Reservation, events.Event, error)

// transition applies fn to a fresh read and stores it conditionally on the
// status that was read. A lost race is retried once.
func (s *Service) transition(ctx context.Context, op, id string, fn transitionFunc) (domain.Reservation, error) {
	for attempt := 1; attempt <= 2; attempt++ {
		cur, err := s.repo.Get(ctx, id)
		if err != nil {
			reject(op, err)
			return domain.Reservation{}, err
		}
		next, ev, err := fn(cur, s.clock.Now())
		if err != nil {
			reject(op, err)
			return domain.Reservation{}, err
		}

		err = s.repo.Transition(ctx, next, cur.Status, ev)
		if errors.Is(err, apperr.ErrConflict) {
			s.log.Info("reservation changed concurrently, re-reading", "reservation_id", id, "attempt", attempt)
			continue
		}
		if err != nil {
			return domain.Reservation{}, err
		}
		metrics.ReservationTransitionsTotal.WithLabelValues(string(next.Status)).Inc()
		s.log.Info("reservation transitioned", "op", op, "reservation_id", id, "from", cur.Status, "to", next.Status)
		return next, nil
	}
	return domain.Reservation{}, apperr.Transient(fmt.Errorf("reservation %s kept changing during %s", id, op))
}

func (s *Service) Get(ctx context.Context, id string) (domain.Reservation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Reservation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id required: %w", apperr.ErrInvalid)
	}
	return s.repo.List(ctx, Filter{UserID: userID})
}

func (s *Service) List(ctx context.Context, f Filter) ([]domain.Reservation, error) {
	return s.repo.List(ctx, f)
}

type Summary struct {
	UserID       string
	Total        int
	Active       int
	Remaining    int
	Max          int
	CanCreateNew bool
	Reservations []domain.Reservation
}

func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	all, err := s.ListByUser(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	active, err := s.guard.Count(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	quota := s.guard.Max()
	return Summary{
		UserID:       userID,
		Total:        len(all),
		Active:       active,
		Remaining:    max(quota-active, 0),
		Max:          quota,
		CanCreateNew: active < quota,
		Reservations: all,
	}, nil
}

// sameRequest answers a create retried with an id that is already stored. A
// create the quota backstop undid fails again the way it first did.
func (s *Service) sameRequest(existing domain.Reservation, in CreateInput) (domain.Reservation, error) {
	if existing.UserID != in.UserID || existing.StallID != in.StallID {
		return domain.Reservation{}, fmt.Errorf("reservation %s already exists for another request: %w", in.ID, apperr.ErrConflict)
	}
	if existing.CancelReason == domain.CancelReasonQuota {
		return domain.Reservation{}, quotaExceeded(existing.UserID, s.guard.Max())
	}
	return existing, nil
}

func reject(op string, err error) {
	metrics.ReservationRejectionsTotal.WithLabelValues(op, string(apperr.KindOf(err))).Inc()
}
