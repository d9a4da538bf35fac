package api

import (
	"context"

	"venuebook/internal/domain"
	"venuebook/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const bookingServiceName = "venuebook.booking.v1.BookingService"

const (
	methodGetAvailableSlots     = "/" + bookingServiceName + "/GetAvailableSlots"
	methodCreateVenueBooking    = "/" + bookingServiceName + "/CreateVenueBooking"
	methodCreateActivityBooking = "/" + bookingServiceName + "/CreateActivityBooking"
	methodCancelActivityBooking = "/" + bookingServiceName + "/CancelActivityBooking"
)

// BookingServiceServer is the gRPC face of the booking engine.
type BookingServiceServer interface {
	GetAvailableSlots(context.Context, *GetAvailableSlotsRequest) (*models.SlotAvailability, error)
	CreateVenueBooking(context.Context, *CreateVenueBookingRequest) (*CreateVenueBookingResponse, error)
	CreateActivityBooking(context.Context, *CreateActivityBookingRequest) (*models.ActivityBooking, error)
	CancelActivityBooking(context.Context, *CancelActivityBookingRequest) (*CancelBookingResponse, error)
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailableSlots", Handler: unaryHandler(methodGetAvailableSlots, BookingServiceServer.GetAvailableSlots)},
		{MethodName: "CreateVenueBooking", Handler: unaryHandler(methodCreateVenueBooking, BookingServiceServer.CreateVenueBooking)},
		{MethodName: "CreateActivityBooking", Handler: unaryHandler(methodCreateActivityBooking, BookingServiceServer.CreateActivityBooking)},
		{MethodName: "CancelActivityBooking", Handler: unaryHandler(methodCancelActivityBooking, BookingServiceServer.CancelActivityBooking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "venuebook/booking/v1/booking.json",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(BookingServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingGRPCService adapts the booking service to BookingServiceServer.
type BookingGRPCService struct {
	booking domain.BookingService
}

func NewBookingGRPCService(booking domain.BookingService) *BookingGRPCService {
	return &BookingGRPCService{booking: booking}
}

func (s *BookingGRPCService) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest) (*models.SlotAvailability, error) {
	if err := validateRequest(ctx, req); err != nil {
		return nil, toGRPCError(err)
	}
	slots, err := s.booking.GetAvailableSlots(ctx, req.VenueID, req.Date)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return slots, nil
}

func (s *BookingGRPCService) CreateVenueBooking(ctx context.Context, req *CreateVenueBookingRequest) (*CreateVenueBookingResponse, error) {
	who, err := requireRequester(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(ctx, req); err != nil {
		return nil, toGRPCError(err)
	}
	bookings, err := s.booking.CreateVenueBooking(ctx, who, req.VenueID, req.Date, req.TimeSlots)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &CreateVenueBookingResponse{Bookings: bookings}, nil
}

func (s *BookingGRPCService) CreateActivityBooking(ctx context.Context, req *CreateActivityBookingRequest) (*models.ActivityBooking, error) {
	who, err := requireRequester(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(ctx, req); err != nil {
		return nil, toGRPCError(err)
	}
	booking, err := s.booking.CreateActivityBooking(ctx, who, req.ActivityID, req.Quantity)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return booking, nil
}

func (s *BookingGRPCService) CancelActivityBooking(ctx context.Context, req *CancelActivityBookingRequest) (*CancelBookingResponse, error) {
	who, err := requireRequester(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(ctx, req); err != nil {
		return nil, toGRPCError(err)
	}
	if err := s.booking.CancelActivityBooking(ctx, who, req.BookingID); err != nil {
		return nil, toGRPCError(err)
	}
	return &CancelBookingResponse{BookingID: req.BookingID, Status: models.StatusCancelled}, nil
}

func requireRequester(ctx context.Context) (models.Requester, error) {
	who, ok := RequesterFrom(ctx)
	if !ok {
		return models.Requester{}, status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	return who, nil
}

// BookingClient calls BookingService over a connection using the JSON codec.
type BookingClient struct {
	conn grpc.ClientConnInterface
}

func NewBookingClient(conn grpc.ClientConnInterface) *BookingClient {
	return &BookingClient{conn: conn}
}

func (c *BookingClient) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest, opts ...grpc.CallOption) (*models.SlotAvailability, error) {
	out := new(models.SlotAvailability)
	if err := c.invoke(ctx, methodGetAvailableSlots, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) CreateVenueBooking(ctx context.Context, req *CreateVenueBookingRequest, opts ...grpc.CallOption) (*CreateVenueBookingResponse, error) {
	out := new(CreateVenueBookingResponse)
	if err := c.invoke(ctx, methodCreateVenueBooking, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) CreateActivityBooking(ctx context.Context, req *CreateActivityBookingRequest, opts ...grpc.CallOption) (*models.ActivityBooking, error) {
	out := new(models.ActivityBooking)
	if err := c.invoke(ctx, methodCreateActivityBooking, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) CancelActivityBooking(ctx context.Context, req *CancelActivityBookingRequest, opts ...grpc.CallOption) (*CancelBookingResponse, error) {
	out := new(CancelBookingResponse)
	if err := c.invoke(ctx, methodCancelActivityBooking, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) invoke(ctx context.Context, method string, req, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.conn.Invoke(ctx, method, req, out, opts...)
}
