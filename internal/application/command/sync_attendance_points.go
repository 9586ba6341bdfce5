package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
	"github.com/alem-hub/progress-ranking/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC ATTENDANCE POINTS COMMAND
// Keeps the enthusiasm point of one (student, day) in line with attendance.
// ══════════════════════════════════════════════════════════════════════════════

// SyncAttendancePointsCommand carries one attendance change.
type SyncAttendancePointsCommand struct {
	// StudentID is the internal ID of the student.
	StudentID string `validate:"required,uuid"`

	// Date is any instant on the attendance day. It is reduced to the
	// calendar day in the configured timezone.
	Date time.Time `validate:"required"`

	// Status is "present" or "absent".
	Status string `validate:"required,oneof=present absent"`

	// CorrelationID for tracing across services.
	CorrelationID string `validate:"omitempty,max=128"`
}

// Validate validates the command.
func (c SyncAttendancePointsCommand) Validate() error {
	return validateStruct("SyncAttendancePoints", c)
}

// SyncAttendancePointsResult reports what the reconciliation did.
type SyncAttendancePointsResult struct {
	StudentID string
	Date      string
	Status    ledger.AttendanceStatus
	Outcome   ledger.Outcome
	Inserted  int
	Deleted   int

	// Attempts is how many times the reconciliation ran, retries included.
	Attempts int

	// Events contains domain events generated by the change.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SyncAttendancePointsHandler handles SyncAttendancePointsCommand.
type SyncAttendancePointsHandler struct {
	synchronizer   *ledger.Synchronizer
	locker         ledger.Locker
	eventPublisher shared.EventPublisher
	retrier        *retry.Retrier
	location       *time.Location
	logger         *slog.Logger
}

// SyncAttendancePointsHandlerConfig contains configuration for the handler.
type SyncAttendancePointsHandlerConfig struct {
	// Location is the timezone that defines a calendar day.
	Location *time.Location

	// RetryAttempts bounds the attempts for retryable failures.
	RetryAttempts int

	// RetryDelay is the delay before the first retry.
	RetryDelay time.Duration
}

// DefaultSyncAttendancePointsHandlerConfig returns default configuration.
func DefaultSyncAttendancePointsHandlerConfig() SyncAttendancePointsHandlerConfig {
	return SyncAttendancePointsHandlerConfig{
		Location:      time.UTC,
		RetryAttempts: 3,
		RetryDelay:    50 * time.Millisecond,
	}
}

// NewSyncAttendancePointsHandler creates a new SyncAttendancePointsHandler.
// locker and eventPublisher may be nil.
func NewSyncAttendancePointsHandler(
	store ledger.Store,
	locker ledger.Locker,
	eventPublisher shared.EventPublisher,
	config SyncAttendancePointsHandlerConfig,
	logger *slog.Logger,
) *SyncAttendancePointsHandler {
	defaults := DefaultSyncAttendancePointsHandlerConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("component", "sync_attendance_points")

	h := &SyncAttendancePointsHandler{
		synchronizer:   ledger.NewSynchronizer(store, config.Location, logger),
		locker:         locker,
		eventPublisher: eventPublisher,
		location:       config.Location,
		logger:         logger,
	}
	h.retrier = retry.DatabaseRetrier(
		retry.WithMaxAttempts(config.RetryAttempts),
		retry.WithInitialDelay(config.RetryDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			h.logger.Warn("retrying attendance reconciliation",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)
	return h
}

// Handle executes the command. Validation failures are returned without
// touching the store; store failures are retried and then surfaced.
func (h *SyncAttendancePointsHandler) Handle(ctx context.Context, cmd SyncAttendancePointsCommand) (*SyncAttendancePointsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("sync_attendance_points: validation failed: %w", err)
	}

	status, err := ledger.ParseAttendanceStatus(cmd.Status)
	if err != nil {
		return nil, fmt.Errorf("sync_attendance_points: %w", err)
	}

	day := ledger.NormalizeDate(cmd.Date, h.location)
	key := ledger.Key{StudentID: cmd.StudentID, Date: day}

	var (
		res      ledger.Result
		attempts int
	)
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		attempts++
		var opErr error
		res, opErr = h.reconcileLocked(ctx, key, status)
		return opErr
	})
	if err != nil {
		h.logger.Error("attendance reconciliation failed",
			"student_id", cmd.StudentID,
			"date", ledger.FormatDate(day),
			"status", status,
			"attempts", attempts,
			"error", err,
		)
		return nil, fmt.Errorf("sync_attendance_points: %w", err)
	}

	result := &SyncAttendancePointsResult{
		StudentID: cmd.StudentID,
		Date:      ledger.FormatDate(day),
		Status:    status,
		Outcome:   res.Outcome,
		Inserted:  res.Inserted,
		Deleted:   res.Deleted,
		Attempts:  attempts,
	}

	if res.Outcome.Changed() {
		event := shared.NewLedgerChangedEvent(eventTypeFor(res.Outcome),
			cmd.StudentID, result.Date, status.String(), res.Inserted, res.Deleted)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, event)

		// The ledger is already consistent; a lost event is logged, not returned.
		if pubErr := h.eventPublisher.Publish(event); pubErr != nil {
			h.logger.Warn("failed to publish ledger event",
				"event_type", event.EventType(),
				"student_id", cmd.StudentID,
				"error", pubErr,
			)
		}
	}

	h.logger.Info("attendance reconciled",
		"student_id", cmd.StudentID,
		"date", result.Date,
		"status", status,
		"outcome", res.Outcome,
		"attempts", attempts,
	)

	return result, nil
}

func (h *SyncAttendancePointsHandler) reconcileLocked(ctx context.Context, key ledger.Key, status ledger.AttendanceStatus) (ledger.Result, error) {
	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, ledger.LockKey(key))
		if err != nil {
			return ledger.Result{}, err
		}
		defer func() {
			// Release with a fresh context so a canceled caller still frees the key.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				h.logger.Warn("failed to release ledger lock", "key", key.String(), "error", err)
			}
		}()
	}

	return h.synchronizer.Reconcile(ctx, key.StudentID, key.Date, status)
}

func eventTypeFor(outcome ledger.Outcome) shared.EventType {
	switch outcome {
	case ledger.OutcomeRevoked:
		return shared.EventEnthusiasmRevoked
	case ledger.OutcomeHealed:
		return shared.EventLedgerHealed
	default:
		return shared.EventEnthusiasmAwarded
	}
}
