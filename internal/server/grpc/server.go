package internalgrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/golang/protobuf/ptypes/empty"
	"github.com/lomoval/sked/internal/app"
	"github.com/lomoval/sked/internal/daterange"
	"github.com/lomoval/sked/internal/storage"
	"github.com/lomoval/sked/internal/validator"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	errEventNotProvided    = "event is not provided"
	errInternalServerError = "internal server error"
	errEventNotFound       = "event not found"
	errIDNotProvided       = "id is not provided"
	errIncorrectDate       = "incorrect date"
	errDateIsNotProvided   = "date is not provided"
)

type Config struct {
	Host string
	Port int
}

type Server struct {
	grpcServer *grpc.Server
	app        *app.App
	addr       string
}

func NewServer(config Config, app *app.App) *Server {
	s := &Server{
		grpcServer: grpc.NewServer(grpc.UnaryInterceptor(loggingHandler)),
		app:        app,
		addr:       net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
	}
	RegisterEventsServer(s.grpcServer, s)
	return s
}

func (s *Server) Start(_ context.Context) error {
	lsn, err := net.Listen("tcp", s.addr)
	if err != nil {
		log.Errorf("failed to listen grpc endpoint: %v", err)
		return err
	}
	log.Printf("starting grpc server on %s", s.addr)
	return s.Serve(lsn)
}

// Serve serves the sked.Events service on lsn until Stop is called.
func (s *Server) Serve(lsn net.Listener) error {
	return s.grpcServer.Serve(lsn)
}

func (s *Server) Stop(_ context.Context) error {
	s.grpcServer.GracefulStop()
	return nil
}

// AddEvent takes the event fields as accepted by the HTTP API and returns {"id": ...}.
func (s *Server) AddEvent(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	if len(r.GetFields()) == 0 {
		return nil, status.Error(codes.InvalidArgument, errEventNotProvided)
	}
	var in validator.Input
	if err := fromStruct(r, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed event: %v", err)
	}
	id, err := s.app.CreateEvent(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"id": id})
}

func (s *Server) RemoveEvent(ctx context.Context, r *structpb.Struct) (*empty.Empty, error) {
	id := r.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, errIDNotProvided)
	}
	if err := s.app.RemoveEvent(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return &empty.Empty{}, nil
}

type dayRequest struct {
	Date   string            `json:"date"`
	Offset int               `json:"offset"`
	Member string            `json:"member"`
	Public bool              `json:"public"`
	Tags   map[string]string `json:"tags"`
}

type occurrenceMessage struct {
	EventID string    `json:"eventId"`
	Label   string    `json:"label"`
	At      time.Time `json:"at"`
	Ends    time.Time `json:"ends"`
	Time    string    `json:"time"`
	Anchor  bool      `json:"anchor"`
}

// GetEventsForDay takes {"date": "YYYY-MM-DD", "offset", "member", "public", "tags"}.
func (s *Server) GetEventsForDay(ctx context.Context, r *structpb.Struct) (*structpb.ListValue, error) {
	var req dayRequest
	if err := fromStruct(r, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if req.Date == "" {
		return nil, status.Error(codes.InvalidArgument, errDateIsNotProvided)
	}
	date, err := daterange.ParseDate(req.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, errIncorrectDate)
	}

	occ, err := s.app.EventsForDay(ctx, date, app.Query{
		Offset:     req.Offset,
		MemberID:   req.Member,
		PublicOnly: req.Public,
		Tags:       req.Tags,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	msgs := make([]occurrenceMessage, 0, len(occ))
	for _, o := range occ {
		msgs = append(msgs, occurrenceMessage{
			EventID: o.Event.ID,
			Label:   o.Event.Label,
			At:      o.At,
			Ends:    o.Ends(),
			Time:    o.Format(""),
			Anchor:  o.Anchor,
		})
	}
	return toList(msgs)
}

func (s *Server) GetDueReminders(ctx context.Context, r *timestamppb.Timestamp) (*structpb.ListValue, error) {
	if r == nil || !r.IsValid() {
		return nil, status.Error(codes.InvalidArgument, errIncorrectDate)
	}
	reminders, err := s.app.DueReminders(ctx, r.AsTime(), 0)
	if err != nil {
		return nil, toStatus(err)
	}
	return toList(reminders)
}

func toStatus(err error) error {
	var verrs validator.Errors
	switch {
	case errors.As(err, &verrs):
		return status.Error(codes.InvalidArgument, verrs.Error())
	case errors.Is(err, storage.ErrNotFoundEvent):
		return status.Error(codes.NotFound, errEventNotFound)
	default:
		log.Errorf("grpc request failed: %v", err)
		return status.Error(codes.Internal, errInternalServerError)
	}
}

func fromStruct(s *structpb.Struct, v interface{}) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func toList(v interface{}) (*structpb.ListValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, errInternalServerError)
	}
	var items []interface{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, status.Error(codes.Internal, errInternalServerError)
	}
	list, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to build list: %v", err))
	}
	return list, nil
}
