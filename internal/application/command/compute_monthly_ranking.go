package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPUTE MONTHLY RANKING COMMAND
// Turns one student's monthly facts into a ranking-points breakdown.
// ══════════════════════════════════════════════════════════════════════════════

// ComputeMonthlyRankingCommand identifies the student and month to score.
type ComputeMonthlyRankingCommand struct {
	StudentID string `validate:"required,uuid"`

	// Month is "YYYY-MM".
	Month string `validate:"required,datetime=2006-01"`

	// Publish stores the breakdown on the ranking board when one is configured.
	Publish bool

	CorrelationID string `validate:"omitempty,max=128"`
}

// Validate validates the command.
func (c ComputeMonthlyRankingCommand) Validate() error {
	return validateStruct("ComputeMonthlyRanking", c)
}

// ComputeMonthlyRankingResult holds the computed breakdown.
type ComputeMonthlyRankingResult struct {
	StudentID string
	Month     ranking.Month
	Facts     ranking.MonthlyFacts
	Breakdown ranking.Breakdown
	Published bool
	Events    []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ComputeMonthlyRankingHandler handles ComputeMonthlyRankingCommand.
type ComputeMonthlyRankingHandler struct {
	facts          ranking.FactsProvider
	board          ranking.Board
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewComputeMonthlyRankingHandler creates a new handler. board and
// eventPublisher may be nil.
func NewComputeMonthlyRankingHandler(
	facts ranking.FactsProvider,
	board ranking.Board,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *ComputeMonthlyRankingHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ComputeMonthlyRankingHandler{
		facts:          facts,
		board:          board,
		eventPublisher: eventPublisher,
		logger:         logger.With("component", "compute_monthly_ranking"),
	}
}

// Handle executes the command.
func (h *ComputeMonthlyRankingHandler) Handle(ctx context.Context, cmd ComputeMonthlyRankingCommand) (*ComputeMonthlyRankingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("compute_monthly_ranking: validation failed: %w", err)
	}

	month, err := ranking.ParseMonth(cmd.Month)
	if err != nil {
		return nil, fmt.Errorf("compute_monthly_ranking: %w", err)
	}

	facts, err := h.facts.MonthlyFacts(ctx, cmd.StudentID, month)
	if err != nil {
		return nil, fmt.Errorf("compute_monthly_ranking: failed to load facts: %w", err)
	}

	breakdown, err := ranking.Aggregate(facts)
	if err != nil {
		return nil, fmt.Errorf("compute_monthly_ranking: %w", err)
	}

	result := &ComputeMonthlyRankingResult{
		StudentID: cmd.StudentID,
		Month:     month,
		Facts:     facts,
		Breakdown: breakdown,
	}

	if cmd.Publish && h.board != nil {
		if err := h.board.Publish(ctx, month, cmd.StudentID, breakdown); err != nil {
			return nil, fmt.Errorf("compute_monthly_ranking: failed to publish breakdown: %w", err)
		}
		result.Published = true
	}

	event := shared.NewMonthlyRankingComputedEvent(cmd.StudentID, month.String(), breakdown.Total)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)
	if err := h.eventPublisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish ranking event", "student_id", cmd.StudentID, "error", err)
	}

	h.logger.Debug("monthly ranking computed",
		"student_id", cmd.StudentID,
		"month", month.String(),
		"behavior", breakdown.Behavior,
		"attendance", breakdown.Attendance,
		"review", breakdown.Review,
		"exam", breakdown.Exam,
		"total", breakdown.Total,
	)

	return result, nil
}
