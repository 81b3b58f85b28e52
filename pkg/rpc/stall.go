package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const StallServiceName = "cibf.stall.v1.StallService"

type AvailabilityRequest struct {
	StallID string `json:"stallId"`
}

type AvailabilityResponse struct {
	StallID   string `json:"stallId"`
	Available bool   `json:"available"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type ReserveRequest struct {
	StallID       string `json:"stallId"`
	UserID        string `json:"userId"`
	ReservationID string `json:"reservationId"`
}

// ReleaseRequest frees a stall. With ReservationID set the release only
// happens while the stall is still linked to that reservation.
type ReleaseRequest struct {
	StallID       string `json:"stallId"`
	ReservationID string `json:"reservationId,omitempty"`
}

type StallResponse struct {
	StallID       string  `json:"stallId"`
	Status        string  `json:"status"`
	Price         float64 `json:"price"`
	ReservedBy    string  `json:"reservedBy,omitempty"`
	ReservationID string  `json:"reservationId,omitempty"`
}

type StallServer interface {
	CheckAvailability(ctx context.Context, in *AvailabilityRequest) (*AvailabilityResponse, error)
	Reserve(ctx context.Context, in *ReserveRequest) (*StallResponse, error)
	Release(ctx context.Context, in *ReleaseRequest) (*StallResponse, error)
}

func RegisterStallServer(s grpc.ServiceRegistrar, srv StallServer) {
	s.RegisterService(&StallServiceDesc, srv)
}

var StallServiceDesc = grpc.ServiceDesc{
	ServiceName: StallServiceName,
	HandlerType: (*StallServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: checkAvailabilityHandler},
		{MethodName: "Reserve", Handler: reserveHandler},
		{MethodName: "Release", Handler: releaseHandler},
	},
	Metadata: "cibf/stall/v1",
}

func checkAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AvailabilityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(StallServer).CheckAvailability(ctx, req.(*AvailabilityRequest))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + StallServiceName + "/CheckAvailability"}, call)
}

func reserveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReserveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(StallServer).Reserve(ctx, req.(*ReserveRequest))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + StallServiceName + "/Reserve"}, call)
}

func releaseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReleaseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(StallServer).Release(ctx, req.(*ReleaseRequest))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + StallServiceName + "/Release"}, call)
}

// StallClient calls the stall service over a connection that has the JSON
// codec registered (see CallOption).
type StallClient struct {
	cc grpc.ClientConnInterface
}

func NewStallClient(cc grpc.ClientConnInterface) *StallClient {
	return &StallClient{cc: cc}
}

func (c *StallClient) CheckAvailability(ctx context.Context, in *AvailabilityRequest) (*AvailabilityResponse, error) {
	out := new(AvailabilityResponse)
	if err := c.cc.Invoke(ctx, "/"+StallServiceName+"/CheckAvailability", in, out, CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StallClient) Reserve(ctx context.Context, in *ReserveRequest) (*StallResponse, error) {
	out := new(StallResponse)
	if err := c.cc.Invoke(ctx, "/"+StallServiceName+"/Reserve", in, out, CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StallClient) Release(ctx context.Context, in *ReleaseRequest) (*StallResponse, error) {
	out := new(StallResponse)
	if err := c.cc.Invoke(ctx, "/"+StallServiceName+"/Release", in, out, CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}
