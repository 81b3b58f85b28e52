package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/reservation/application"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/rpc"
)

type StallClient struct {
	log     *slog.Logger
	conn    *grpc.ClientConn
	cc      *rpc.StallClient
	timeout time.Duration
}

func NewStallClient(log *slog.Logger, addr string, timeout time.Duration) (*StallClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(rpc.CallOption()),
	)
	if err != nil {
		return nil, err
	}
	return newStallClient(log, conn, timeout), nil
}

func newStallClient(log *slog.Logger, conn *grpc.ClientConn, timeout time.Duration) *StallClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &StallClient{log: log, conn: conn, cc: rpc.NewStallClient(conn), timeout: timeout}
}

func (c *StallClient) Close() error {
	return c.conn.Close()
}

func (c *StallClient) CheckAvailability(ctx context.Context, stallID string) (application.Availability, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.cc.CheckAvailability(ctx, &rpc.AvailabilityRequest{StallID: stallID})
	if err != nil {
		return application.Availability{}, rpc.FromStatus(err)
	}
	return application.Availability{
		StallID:   resp.StallID,
		Available: resp.Available,
		Status:    resp.Status,
		Message:   resp.Message,
	}, nil
}

func (c *StallClient) ReleaseFor(ctx context.Context, stallID, reservationID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.cc.Release(ctx, &rpc.ReleaseRequest{StallID: stallID, ReservationID: reservationID})
	if err != nil {
		return rpc.FromStatus(err)
	}
	c.log.Info("stall released by compensation", "stall_id", stallID, "reservation_id", reservationID)
	return nil
}
