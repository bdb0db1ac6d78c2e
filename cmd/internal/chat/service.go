package chat

import (
	"errors"
	"log/slog"
	"time"

	"courier/cmd/identity"
)

const defaultDeliveryTimeout = 5 * time.Second

// Service is the one-to-one messaging delivery core. It owns authorization,
// validation, persistence and event fan-out; transport concerns stay behind
// the Events seam.
type Service struct {
	store  Store
	users  identity.Store
	events Events
	log    *slog.Logger

	now             func() time.Time
	deliveryTimeout time.Duration
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the service clock. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDeliveryTimeout bounds the async delivered transition after fan-out.
func WithDeliveryTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// NewService wires the delivery core. events may be nil when no realtime
// layer is attached.
func NewService(store Store, users identity.Store, events Events, log *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("chat: nil store")
	}
	if users == nil {
		return nil, errors.New("chat: nil identity store")
	}
	if events == nil {
		events = NopEvents{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:           store,
		users:           users,
		events:          events,
		log:             log,
		now:             time.Now,
		deliveryTimeout: defaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
