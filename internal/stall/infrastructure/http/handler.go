package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/application"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/httpapi"
)

type Allocator interface {
	Create(ctx context.Context, in application.CreateInput) (domain.Stall, error)
	Get(ctx context.Context, id string) (domain.Stall, error)
	List(ctx context.Context, f application.Filter) ([]domain.Stall, error)
	CheckAvailability(ctx context.Context, id string) (application.Availability, error)
	Reserve(ctx context.Context, stallID, userID, reservationID string) (domain.Stall, error)
	Release(ctx context.Context, stallID string) (domain.Stall, error)
	ReleaseFor(ctx context.Context, stallID, reservationID string) (domain.Stall, error)
	SetMaintenance(ctx context.Context, id string, on bool) (domain.Stall, error)
	CanUserReserveMore(ctx context.Context, userID string) (bool, error)
}

type Handler struct {
	log       *slog.Logger
	allocator Allocator
}

func NewHandler(log *slog.Logger, allocator Allocator) *Handler {
	return &Handler{log: log, allocator: allocator}
}

func (h *Handler) Mount(r chi.Router) {
	r.Route("/stalls", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/availability", h.availability)
		r.Post("/{id}/reserve", h.reserve)
		r.Post("/{id}/release", h.release)
		r.Post("/{id}/maintenance", h.maintenance)
	})
	r.Get("/users/{userID}/can-reserve", h.canReserve)
}

type createStallReq struct {
	Name        string  `json:"name"`
	Size        string  `json:"size"`
	Dimension   float64 `json:"dimension"`
	Price       float64 `json:"price"`
	PositionX   int     `json:"positionX"`
	PositionY   int     `json:"positionY"`
	Description string  `json:"description"`
}

type reserveReq struct {
	UserID        string `json:"userId"`
	ReservationID string `json:"reservationId"`
}

type releaseReq struct {
	ReservationID string `json:"reservationId"`
}

type maintenanceReq struct {
	Enabled bool `json:"enabled"`
}

type stallResp struct {
	ID            string    `json:"stallId"`
	Name          string    `json:"name"`
	Size          string    `json:"size"`
	Dimension     float64   `json:"dimension"`
	Price         float64   `json:"price"`
	PositionX     int       `json:"positionX"`
	PositionY     int       `json:"positionY"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	ReservedBy    *string   `json:"reservedBy"`
	ReservationID *string   `json:"reservationId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type availabilityResp struct {
	StallID   string `json:"stallId"`
	Available bool   `json:"available"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func toResp(s domain.Stall) stallResp {
	return stallResp{
		ID:            s.ID,
		Name:          s.Name,
		Size:          string(s.Size),
		Dimension:     s.Dimension,
		Price:         s.Price,
		PositionX:     s.PositionX,
		PositionY:     s.PositionY,
		Description:   s.Description,
		Status:        string(s.Status),
		ReservedBy:    nullable(s.ReservedBy),
		ReservationID: nullable(s.ReservationID),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createStallReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	size, err := domain.ParseSize(req.Size)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	st, err := h.allocator.Create(r.Context(), application.CreateInput{
		Name:        req.Name,
		Size:        size,
		Dimension:   req.Dimension,
		Price:       req.Price,
		PositionX:   req.PositionX,
		PositionY:   req.PositionY,
		Description: req.Description,
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toResp(st))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	stalls, err := h.allocator.List(r.Context(), f)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	out := make([]stallResp, 0, len(stalls))
	for _, s := range stalls {
		out = append(out, toResp(s))
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func parseFilter(r *http.Request) (application.Filter, error) {
	q := r.URL.Query()
	var f application.Filter
	if s := q.Get("status"); s != "" {
		st, err := domain.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if s := q.Get("size"); s != "" {
		sz, err := domain.ParseSize(s)
		if err != nil {
			return f, err
		}
		f.Size = sz
	}
	f.ReservedBy = q.Get("reservedBy")

	var err error
	if f.MinPrice, err = parsePrice(q.Get("minPrice")); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parsePrice(q.Get("maxPrice")); err != nil {
		return f, err
	}
	return f, nil
}

func parsePrice(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", s, apperr.ErrInvalid)
	}
	return &v, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	st, err := h.allocator.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResp(st))
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	a, err := h.allocator.CheckAvailability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, availabilityResp{
		StallID:   a.StallID,
		Available: a.Available,
		Status:    string(a.Status),
		Message:   a.Message,
	})
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	st, err := h.allocator.Reserve(r.Context(), chi.URLParam(r, "id"), req.UserID, req.ReservationID)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResp(st))
}

// release accepts an empty body for an unconditional release.
func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	var req releaseReq
	if r.ContentLength != 0 {
		if err := httpapi.Decode(r, &req); err != nil {
			httpapi.WriteError(w, h.log, err)
			return
		}
	}
	var (
		st  domain.Stall
		err error
	)
	id := chi.URLParam(r, "id")
	if req.ReservationID != "" {
		st, err = h.allocator.ReleaseFor(r.Context(), id, req.ReservationID)
	} else {
		st, err = h.allocator.Release(r.Context(), id)
	}
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResp(st))
}

func (h *Handler) maintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	st, err := h.allocator.SetMaintenance(r.Context(), chi.URLParam(r, "id"), req.Enabled)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResp(st))
}

func (h *Handler) canReserve(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ok, err := h.allocator.CanUserReserveMore(r.Context(), userID)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"userId": userID, "canReserve": ok})
}
