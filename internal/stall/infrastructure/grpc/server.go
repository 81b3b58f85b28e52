package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/application"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/stall/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/rpc"
)

type Allocator interface {
	CheckAvailability(ctx context.Context, id string) (application.Availability, error)
	Reserve(ctx context.Context, stallID, userID, reservationID string) (domain.Stall, error)
	Release(ctx context.Context, stallID string) (domain.Stall, error)
	ReleaseFor(ctx context.Context, stallID, reservationID string) (domain.Stall, error)
}

type Server struct {
	log       *slog.Logger
	allocator Allocator
}

func NewServer(log *slog.Logger, allocator Allocator) *Server {
	return &Server{log: log, allocator: allocator}
}

func (s *Server) CheckAvailability(ctx context.Context, req *rpc.AvailabilityRequest) (*rpc.AvailabilityResponse, error) {
	a, err := s.allocator.CheckAvailability(ctx, req.StallID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.AvailabilityResponse{
		StallID:   a.StallID,
		Available: a.Available,
		Status:    string(a.Status),
		Message:   a.Message,
	}, nil
}

func (s *Server) Reserve(ctx context.Context, req *rpc.ReserveRequest) (*rpc.StallResponse, error) {
	st, err := s.allocator.Reserve(ctx, req.StallID, req.UserID, req.ReservationID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return toResponse(st), nil
}

func (s *Server) Release(ctx context.Context, req *rpc.ReleaseRequest) (*rpc.StallResponse, error) {
	var (
		st  domain.Stall
		err error
	)
	if req.ReservationID != "" {
		st, err = s.allocator.ReleaseFor(ctx, req.StallID, req.ReservationID)
	} else {
		st, err = s.allocator.Release(ctx, req.StallID)
	}
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return toResponse(st), nil
}

func toResponse(st domain.Stall) *rpc.StallResponse {
	return &rpc.StallResponse{
		StallID:       st.ID,
		Status:        string(st.Status),
		Price:         st.Price,
		ReservedBy:    st.ReservedBy,
		ReservationID: st.ReservationID,
	}
}

// NewGRPCServer builds a grpc.Server with the stall service registered.
func NewGRPCServer(log *slog.Logger, srv *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(logUnary(log)))
	rpc.RegisterStallServer(gs, srv)
	return gs
}

// Run listens on addr and serves in the background. Stop it with GracefulStop.
func Run(log *slog.Logger, addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := NewGRPCServer(log, srv)
	go func() {
		if err := gs.Serve(lis); err != nil {
			log.Error("grpc server stopped", "err", err)
		}
	}()
	log.Info("grpc listening", "addr", lis.Addr().String())
	return gs, nil
}

func logUnary(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Debug("grpc call failed", "method", info.FullMethod, "err", err, "elapsed", time.Since(start))
		}
		return resp, err
	}
}
