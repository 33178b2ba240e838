package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/mapper"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "storefront.orders.v1.OrderQueryService"

// OrderQueryServer is the read-side RPC surface for back-office tools.
type OrderQueryServer interface {
	GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	CheckOrderStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var OrderQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrderQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: unaryHandler("GetOrder", OrderQueryServer.GetOrder)},
		{MethodName: "CheckOrderStatus", Handler: unaryHandler("CheckOrderStatus", OrderQueryServer.CheckOrderStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/orders/v1/order_query.proto",
}

func RegisterOrderQueryServer(registrar grpc.ServiceRegistrar, srv OrderQueryServer) {
	registrar.RegisterService(&OrderQueryServiceDesc, srv)
}

func unaryHandler(method string, call func(OrderQueryServer, context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderQueryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OrderQueryServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type orderQueries interface {
	GetOrder(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error)
	CheckOrderStatus(ctx context.Context, orderID string) (*entity.Order, error)
}

// Server answers back-office queries. Callers are trusted network peers, so
// lookups run with back-office visibility.
type Server struct {
	orderService orderQueries
	actor        *auth.Actor
}

func NewServer(orderService orderQueries) *Server {
	return &Server{
		orderService: orderService,
		actor:        &auth.Actor{ID: "grpc", Role: entity.RoleAdmin},
	}
}

func (s *Server) GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "order id is required")
	}

	item, err := s.orderService.GetOrder(ctx, id, s.actor)
	if err != nil {
		return nil, s.toStatus(ctx, "Get order", err)
	}
	return orderToStruct(item)
}

func (s *Server) CheckOrderStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "order id is required")
	}

	item, err := s.orderService.CheckOrderStatus(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, "Check order status", err)
	}
	return orderToStruct(item)
}

func (s *Server) toStatus(ctx context.Context, action string, err error) error {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return status.Error(codes.NotFound, "order not found")
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		loggerWithContext(ctx).WithError(err).Error(action + " failed")
		return status.Error(codes.Internal, "internal server error")
	}
}

func orderToStruct(item *entity.Order) (*structpb.Struct, error) {
	raw, err := json.Marshal(mapper.OrderToResponse(item))
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}
