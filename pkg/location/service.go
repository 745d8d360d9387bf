package location

import (
	"log/slog"
	"sync"
)

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 16

// Service fans background fixes out to subscribers. One producer (the
// platform's background task) publishes; any number of consumers
// subscribe. A subscriber that falls behind loses fixes rather than
// blocking the producer.
type Service struct {
	logger *slog.Logger

	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	running bool
	last    *Fix
	dropped int
}

// Subscription receives fixes on C until Close.
type Subscription struct {
	C <-chan Fix

	ch      chan Fix
	service *Service
	once    sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.service.mu.Lock()
		delete(s.service.subs, s)
		s.service.mu.Unlock()
		close(s.ch)
	})
}

var (
	defaultService *Service
	defaultOnce    sync.Once
)

// Default returns the process-wide service.
func Default() *Service {
	defaultOnce.Do(func() {
		defaultService = NewService(nil)
	})
	return defaultService
}

// NewService creates an independent service. Most callers want Default.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger: logger.With("component", "location.service"),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Start accepts published fixes.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.running = true
		s.logger.Info("background updates started")
	}
}

// Stop drops published fixes until the next Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		s.logger.Info("background updates stopped")
	}
}

// Running reports whether fixes are being accepted.
func (s *Service) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Subscribe registers a consumer with the given buffer (DefaultBuffer if <= 0).
func (s *Service) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Fix, buffer)
	sub := &Subscription{C: ch, ch: ch, service: s}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	count := len(s.subs)
	s.mu.Unlock()

	s.logger.Debug("subscriber added", "total", count)
	return sub
}

// Publish delivers fix to every subscriber. It reports false when the
// service is stopped and the fix was discarded.
func (s *Service) Publish(fix Fix) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	f := fix
	s.last = &f

	for sub := range s.subs {
		select {
		case sub.ch <- fix:
		default:
			s.dropped++
			s.logger.Warn("slow subscriber, dropping fix", "dropped_total", s.dropped)
		}
	}
	return true
}

// Last returns the most recently published fix.
func (s *Service) Last() (Fix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Fix{}, false
	}
	return *s.last, true
}

// SubscriberCount returns the number of active subscriptions.
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
