package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// AttendanceChannel carries attendance changes published by the reporting app.
var AttendanceChannel = PubSubChannel("attendance")

// AttendanceMessage is the wire form of one attendance change.
type AttendanceMessage struct {
	StudentID     string `json:"student_id"`
	Date          string `json:"date"`
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// AttendanceEvent is a decoded, validated AttendanceMessage.
type AttendanceEvent struct {
	StudentID     string
	Date          time.Time
	Status        ledger.AttendanceStatus
	CorrelationID string
}

// DecodeAttendanceMessage parses and validates a payload.
func DecodeAttendanceMessage(payload []byte) (AttendanceEvent, error) {
	var msg AttendanceMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return AttendanceEvent{}, shared.WrapError("redis", "DecodeAttendanceMessage", shared.ErrInvalidFormat, "malformed attendance message", err)
	}

	studentID := strings.TrimSpace(msg.StudentID)
	if studentID == "" {
		return AttendanceEvent{}, shared.NewDomainError("redis", "DecodeAttendanceMessage", shared.ErrEmptyValue, "student_id is required")
	}
	date, err := ledger.ParseDate(msg.Date)
	if err != nil {
		return AttendanceEvent{}, err
	}
	status, err := ledger.ParseAttendanceStatus(msg.Status)
	if err != nil {
		return AttendanceEvent{}, err
	}

	return AttendanceEvent{
		StudentID:     studentID,
		Date:          date,
		Status:        status,
		CorrelationID: msg.CorrelationID,
	}, nil
}

// AttendanceHandler processes one attendance event.
type AttendanceHandler func(ctx context.Context, event AttendanceEvent) error

// AttendanceSubscriber consumes AttendanceChannel and hands each event to a
// handler. Events are processed one at a time in arrival order.
type AttendanceSubscriber struct {
	cache          *Cache
	handler        AttendanceHandler
	logger         *slog.Logger
	handlerTimeout time.Duration

	mu      sync.Mutex
	pubsub  *redis.PubSub
	done    chan struct{}
	running bool
}

// NewAttendanceSubscriber creates a subscriber.
func NewAttendanceSubscriber(cache *Cache, handler AttendanceHandler, handlerTimeout time.Duration, logger *slog.Logger) *AttendanceSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if handlerTimeout <= 0 {
		handlerTimeout = 30 * time.Second
	}
	return &AttendanceSubscriber{
		cache:          cache,
		handler:        handler,
		logger:         logger.With("component", "attendance_subscriber"),
		handlerTimeout: handlerTimeout,
	}
}

// Start subscribes and begins consuming in a background goroutine.
func (s *AttendanceSubscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("attendance subscriber already running")
	}

	pubsub := s.cache.Subscribe(ctx, AttendanceChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", AttendanceChannel, err)
	}

	s.pubsub = pubsub
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, pubsub.Channel(), s.done)

	s.logger.Info("attendance subscriber started", "channel", AttendanceChannel)
	return nil
}

func (s *AttendanceSubscriber) loop(ctx context.Context, messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.handleMessage(ctx, msg)
		}
	}
}

func (s *AttendanceSubscriber) handleMessage(ctx context.Context, msg *redis.Message) {
	event, err := DecodeAttendanceMessage([]byte(msg.Payload))
	if err != nil {
		// Invalid input is dropped; redelivery would fail the same way.
		s.logger.Warn("dropping invalid attendance message", "error", err)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, s.handlerTimeout)
	defer cancel()

	if err := s.handler(hctx, event); err != nil {
		s.logger.Error("attendance event failed",
			"student_id", event.StudentID,
			"date", ledger.FormatDate(event.Date),
			"status", event.Status,
			"retryable", shared.IsRetryable(err),
			"error", err,
		)
	}
}

// Stop closes the subscription and waits for the in-flight event.
func (s *AttendanceSubscriber) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	pubsub, done := s.pubsub, s.done
	s.mu.Unlock()

	err := pubsub.Close()
	<-done

	s.logger.Info("attendance subscriber stopped")
	return err
}
