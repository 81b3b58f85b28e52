package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/limit"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/clock"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/metrics"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/tracing"
)

// Allocator owns the stall state machine. It is the only writer of the
// reservedBy/reservationId pair.
type Allocator struct {
	log    *slog.Logger
	repo   StallRepository
	guard  *limit.Guard
	clock  clock.Clock
	tombs  Tombstones
	tracer trace.Tracer
}

func NewAllocator(log *slog.Logger, repo StallRepository, guard *limit.Guard, clk clock.Clock, tombs Tombstones) *Allocator {
	return &Allocator{
		log:    log,
		repo:   repo,
		guard:  guard,
		clock:  clk,
		tombs:  tombs,
		tracer: tracing.Tracer("stall-allocator"),
	}
}

func (a *Allocator) Reserve(ctx context.Context, stallID, userID, reservationID string) (domain.Stall, error) {
	ctx, span := a.tracer.Start(ctx, "stall.reserve", trace.WithAttributes(
		attribute.String("stall_id", stallID),
		attribute.String("reservation_id", reservationID),
	))
	defer span.End()

	if stallID == "" || userID == "" || reservationID == "" {
		return domain.Stall{}, fmt.Errorf("stall, user and reservation ids are required: %w", apperr.ErrInvalid)
	}
	st, err := a.repo.Get(ctx, stallID)
	if err != nil {
		return domain.Stall{}, err
	}
	if st.LinkedTo(reservationID) {
		return st, nil
	}
	if !st.Available() {
		outcome("reserve", apperr.ErrNotAvailable)
		return domain.Stall{}, fmt.Errorf("stall %s is %s: %w", stallID, st.Status, apperr.ErrNotAvailable)
	}
	if err := a.guard.AssertWithinLimit(ctx, userID); err != nil {
		outcome("reserve", err)
		return domain.Stall{}, err
	}

	now := a.clock.Now()
	ev := events.StallReserved{
		StallID:       stallID,
		UserID:        userID,
		ReservationID: reservationID,
		Price:         st.Price,
		ReservedAt:    now,
	}
	reserved, err := a.repo.Reserve(ctx, stallID, userID, reservationID, now, ev)
	if err != nil {
		outcome("reserve", err)
		return domain.Stall{}, err
	}
	outcome("reserve", nil)
	a.log.Info("stall reserved", "stall_id", stallID, "user_id", userID, "reservation_id", reservationID)
	return reserved, nil
}

// Release frees a RESERVED stall whoever holds it.
func (a *Allocator) Release(ctx context.Context, stallID string) (domain.Stall, error) {
	st, err := a.repo.Get(ctx, stallID)
	if err != nil {
		return domain.Stall{}, err
	}
	if st.Status != domain.StatusReserved {
		outcome("release", apperr.ErrNotReserved)
		return domain.Stall{}, fmt.Errorf("stall %s is %s: %w", stallID, st.Status, apperr.ErrNotReserved)
	}
	return a.release(ctx, st)
}

// ReleaseFor frees the stall only while it is linked to reservationID.
func (a *Allocator) ReleaseFor(ctx context.Context, stallID, reservationID string) (domain.Stall, error) {
	st, err := a.repo.Get(ctx, stallID)
	if err != nil {
		return domain.Stall{}, err
	}
	if !st.LinkedTo(reservationID) {
		outcome("release", apperr.ErrNotReserved)
		return domain.Stall{}, fmt.Errorf("stall %s is not reserved for %s: %w", stallID, reservationID, apperr.ErrNotReserved)
	}
	return a.release(ctx, st)
}

func (a *Allocator) release(ctx context.Context, st domain.Stall) (domain.Stall, error) {
	ctx, span := a.tracer.Start(ctx, "stall.release", trace.WithAttributes(attribute.String("stall_id", st.ID)))
	defer span.End()

	now := a.clock.Now()
	ev := events.StallReleased{
		StallID:       st.ID,
		UserID:        st.ReservedBy,
		ReservationID: st.ReservationID,
		ReleasedAt:    now,
	}
	released, err := a.repo.Release(ctx, st.ID, st.ReservationID, now, ev)
	if err != nil {
		outcome("release", err)
		return domain.Stall{}, err
	}
	outcome("release", nil)
	a.log.Info("stall released", "stall_id", st.ID, "reservation_id", st.ReservationID)
	return released, nil
}

type CreateInput struct {
	Name        string
	Size        domain.Size
	Dimension   float64
	Price       float64
	PositionX   int
	PositionY   int
	Description string
}

func (a *Allocator) Create(ctx context.Context, in CreateInput) (domain.Stall, error) {
	st, err := domain.New(uuid.NewString(), in.Name, in.Size, in.Dimension, in.Price, in.PositionX, in.PositionY, in.Description, a.clock.Now())
	if err != nil {
		return domain.Stall{}, err
	}
	if err := a.repo.Create(ctx, st); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return domain.Stall{}, fmt.Errorf("stall with name %s already exists: %w", st.Name, apperr.ErrConflict)
		}
		return domain.Stall{}, err
	}
	a.log.Info("stall created", "stall_id", st.ID, "name", st.Name)
	return st, nil
}

func (a *Allocator) Get(ctx context.Context, id string) (domain.Stall, error) {
	return a.repo.Get(ctx, id)
}

func (a *Allocator) List(ctx context.Context, f Filter) ([]domain.Stall, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, fmt.Errorf("minPrice greater than maxPrice: %w", apperr.ErrInvalid)
	}
	return a.repo.List(ctx, f)
}

type Availability struct {
	StallID   string
	Available bool
	Status    domain.Status
	Message   string
}

func (a *Allocator) CheckAvailability(ctx context.Context, id string) (Availability, error) {
	st, err := a.repo.Get(ctx, id)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		StallID:   st.ID,
		Available: st.Available(),
		Status:    st.Status,
		Message:   st.AvailabilityMessage(),
	}, nil
}

func (a *Allocator) CanUserReserveMore(ctx context.Context, userID string) (bool, error) {
	return a.guard.CanReserve(ctx, userID)
}

// SetMaintenance toggles a stall between AVAILABLE and MAINTENANCE. Reserved
// stalls must be released first.
func (a *Allocator) SetMaintenance(ctx context.Context, id string, on bool) (domain.Stall, error) {
	from, to := domain.StatusMaintenance, domain.StatusAvailable
	if on {
		from, to = domain.StatusAvailable, domain.StatusMaintenance
	}
	st, err := a.repo.SetStatus(ctx, id, from, to, a.clock.Now())
	if err != nil {
		return domain.Stall{}, err
	}
	a.log.Info("stall status changed", "stall_id", id, "status", to)
	return st, nil
}

func outcome(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	metrics.StallOperationsTotal.WithLabelValues(op, result).Inc()
}
