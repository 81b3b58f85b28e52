package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/application"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/httpapi"
)

// Service is what the handler needs from the reservation orchestrator.
type Service interface {
	Create(ctx context.Context, in application.CreateInput) (domain.Reservation, error)
	Confirm(ctx context.Context, id string) (domain.Reservation, error)
	Cancel(ctx context.Context, id string) (domain.Reservation, error)
	Get(ctx context.Context, id string) (domain.Reservation, error)
	List(ctx context.Context, f application.Filter) ([]domain.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Reservation, error)
	Summary(ctx context.Context, userID string) (application.Summary, error)
}

type QRRenderer interface {
	Render(text string) ([]byte, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
	qr      QRRenderer
}

func NewHandler(log *slog.Logger, service Service, qr QRRenderer) *Handler {
	return &Handler{log: log, service: service, qr: qr}
}

// Mount registers the reservation routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/reservations", h.create)
	r.Get("/reservations", h.list)
	r.Get("/reservations/{id}", h.get)
	r.Get("/reservations/{id}/qrcode", h.qrcode)
	r.Post("/reservations/{id}/confirm", h.confirm)
	r.Post("/reservations/{id}/cancel", h.cancel)
	r.Get("/users/{userID}/reservations", h.listByUser)
	r.Get("/users/{userID}/reservation-summary", h.summary)
}

type createReservationReq struct {
	ID      string  `json:"reservationId"`
	UserID  string  `json:"userId"`
	Email   string  `json:"email"`
	StallID string  `json:"stallId"`
	Amount  float64 `json:"amount"`
}

type reservationResp struct {
	ReservationID      string     `json:"reservationId"`
	UserID             string     `json:"userId"`
	Email              string     `json:"email,omitempty"`
	StallID            string     `json:"stallId"`
	Amount             float64    `json:"amount"`
	Status             string     `json:"status"`
	ReserveDate        time.Time  `json:"reserveDate"`
	ReserveConfirmDate *time.Time `json:"reserveConfirmDate"`
	QRSeed             string     `json:"qrSeed,omitempty"`
	CancelReason       string     `json:"cancelReason,omitempty"`
}

type summaryResp struct {
	UserID       string            `json:"userId"`
	Total        int               `json:"totalReservations"`
	Active       int               `json:"activeReservations"`
	Remaining    int               `json:"remainingSlots"`
	Max          int               `json:"maxAllowed"`
	CanCreateNew bool              `json:"canCreateNew"`
	Reservations []reservationResp `json:"reservations"`
}

func toResp(r domain.Reservation) reservationResp {
	return reservationResp{
		ReservationID:      r.ID,
		UserID:             r.UserID,
		Email:              r.Email,
		StallID:            r.StallID,
		Amount:             r.Amount,
		Status:             string(r.Status),
		ReserveDate:        r.ReserveDate,
		ReserveConfirmDate: r.ReserveConfirmDate,
		QRSeed:             r.QRSeed,
		CancelReason:       r.CancelReason,
	}
}

func toResps(rs []domain.Reservation) []reservationResp {
	out := make([]reservationResp, 0, len(rs))
	for _, r := range rs {
		out = append(out, toResp(r))
	}
	return out
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createReservationReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	res, err := h.service.Create(r.Context(), application.CreateInput{
		ID:      req.ID,
		UserID:  req.UserID,
		Email:   req.Email,
		StallID: req.StallID,
		Amount:  req.Amount,
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toResp(res))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResp(res))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var f application.Filter
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := domain.ParseStatus(s)
		if err != nil {
			httpapi.WriteError(w, h.log, err)
			return
		}
		f.Status = st
	}
	f.UserID = r.URL.Query().Get("userId")

	rs, err := h.service.List(r.Context(), f)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResps(rs))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Confirm)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (domain.Reservation, error)) {
	res, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResp(res))
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	rs, err := h.service.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResps(rs))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Summary(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, summaryResp{
		UserID:       s.UserID,
		Total:        s.Total,
		Active:       s.Active,
		Remaining:    s.Remaining,
		Max:          s.Max,
		CanCreateNew: s.CanCreateNew,
		Reservations: toResps(s.Reservations),
	})
}

func (h *Handler) qrcode(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	png, err := h.qr.Render(res.QRSeed)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `inline; filename="reservation-`+res.ID+`.png"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
