package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/notify"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// NewScheduleService builds a schedule service over repo using the factory
// clock and identifiers.
func (f *ServiceFactory) NewScheduleService(repo persistence.ScheduleRepository, logger *slog.Logger) *application.ScheduleService {
	return application.NewScheduleServiceWithLogger(repo, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewAutomationService builds an automation service over the harness
// repositories. sender defaults to a RecordingSender that accepts everything.
func (f *ServiceFactory) NewAutomationService(h *SQLiteHarness, sender notify.Sender, policy application.DedupePolicy, logger *slog.Logger) *application.AutomationService {
	if sender == nil {
		sender = &RecordingSender{}
	}
	return application.NewAutomationService(application.AutomationDependencies{
		Automations: h.Automations,
		Messages:    h.Messages,
		Source:      h.Bookings,
		Sender:      sender,
		Policy:      policy,
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         f.Clock.NowFunc(),
		Logger:      logger,
	})
}

// RecordingSender captures every message it is asked to send. When Reject is
// set, sends are reported as provider failures. A non-nil error from OnSend is
// returned as a transport error.
type RecordingSender struct {
	mu       sync.Mutex
	Reject   bool
	OnSend   func(ctx context.Context, message notify.Message) error
	messages []notify.Message
}

// Send records message.
func (s *RecordingSender) Send(ctx context.Context, message notify.Message) (notify.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	if s.OnSend != nil {
		if err := s.OnSend(ctx, message); err != nil {
			return notify.Result{}, err
		}
	}
	if s.Reject {
		return notify.Result{Success: false, Error: "provider rejected"}, nil
	}
	return notify.Result{Success: true, MessageID: "provider-" + message.ThreadID}, nil
}

// SetOnSend installs or clears the per-send hook.
func (s *RecordingSender) SetOnSend(hook func(ctx context.Context, message notify.Message) error) {
	s.mu.Lock()
	s.OnSend = hook
	s.mu.Unlock()
}

// SetReject toggles provider failures.
func (s *RecordingSender) SetReject(reject bool) {
	s.mu.Lock()
	s.Reject = reject
	s.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (s *RecordingSender) Messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.messages...)
}
