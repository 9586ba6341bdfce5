// Package jobs contains the scheduled jobs of the ranking worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/progress-ranking/internal/application/command"
	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPUTE MONTHLY RANKINGS JOB
// ══════════════════════════════════════════════════════════════════════════════

// MonthlyRankingHandler computes one student's breakdown for a month.
type MonthlyRankingHandler interface {
	Handle(ctx context.Context, cmd command.ComputeMonthlyRankingCommand) (*command.ComputeMonthlyRankingResult, error)
}

// ComputeMonthlyRankingsJob scores the previous month for every active
// student and publishes the results to the ranking board. A failure for one
// student is recorded and the run moves on.
type ComputeMonthlyRankingsJob struct {
	students ranking.StudentLister
	handler  MonthlyRankingHandler
	logger   *slog.Logger
	config   ComputeMonthlyRankingsConfig

	lastRunStats atomic.Pointer[RankingRunStats]
}

// ComputeMonthlyRankingsConfig contains configuration for the job.
type ComputeMonthlyRankingsConfig struct {
	// Location decides which month "previous" refers to.
	Location *time.Location

	// Timeout bounds a whole run. Zero means no limit.
	Timeout time.Duration

	// MaxFailureRate fails the run when exceeded (0..1).
	MaxFailureRate float64

	// Board, when set, drops entries of students no longer active once a
	// run has gone through the whole list.
	Board ranking.Board

	// Now is overridable for tests.
	Now func() time.Time
}

// DefaultComputeMonthlyRankingsConfig returns sensible defaults.
func DefaultComputeMonthlyRankingsConfig() ComputeMonthlyRankingsConfig {
	return ComputeMonthlyRankingsConfig{
		Location:       time.UTC,
		Timeout:        30 * time.Minute,
		MaxFailureRate: 0.5,
		Now:            time.Now,
	}
}

// RankingRunStats summarizes one run.
type RankingRunStats struct {
	RunID         string
	Month         ranking.Month
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	TotalStudents int
	Computed      int
	Failed        int
	Pruned        int
	Errors        []StudentError
}

// StudentError records a per-student failure.
type StudentError struct {
	StudentID string
	Err       error
}

// NewComputeMonthlyRankingsJob creates the job.
func NewComputeMonthlyRankingsJob(
	students ranking.StudentLister,
	handler MonthlyRankingHandler,
	logger *slog.Logger,
	config ComputeMonthlyRankingsConfig,
) *ComputeMonthlyRankingsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.MaxFailureRate <= 0 || config.MaxFailureRate > 1 {
		config.MaxFailureRate = 0.5
	}

	return &ComputeMonthlyRankingsJob{
		students: students,
		handler:  handler,
		logger:   logger.With("job", "compute_monthly_rankings"),
		config:   config,
	}
}

// Name implements scheduler.Job.
func (j *ComputeMonthlyRankingsJob) Name() string {
	return "compute_monthly_rankings"
}

// Description implements scheduler.Job.
func (j *ComputeMonthlyRankingsJob) Description() string {
	return "Computes last month's ranking points for all active students"
}

// Run implements scheduler.Job.
func (j *ComputeMonthlyRankingsJob) Run(ctx context.Context) error {
	month := ranking.MonthOf(j.config.Now(), j.config.Location).Previous()
	_, err := j.RunForMonth(ctx, month)
	return err
}

// RunForMonth computes the given month. Used by Run and for backfills.
func (j *ComputeMonthlyRankingsJob) RunForMonth(ctx context.Context, month ranking.Month) (*RankingRunStats, error) {
	stats := &RankingRunStats{
		RunID:     uuid.NewString(),
		Month:     month,
		StartedAt: time.Now(),
	}
	defer func() {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastRunStats.Store(stats)
	}()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	logger := j.logger.With("run_id", stats.RunID, "month", month.String())
	logger.Info("starting monthly ranking run")

	ids, err := j.students.ListActiveStudents(ctx)
	if err != nil {
		return stats, fmt.Errorf("list active students: %w", err)
	}
	stats.TotalStudents = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("run interrupted after %d of %d students: %w",
				stats.Computed+stats.Failed, stats.TotalStudents, err)
		}

		result, err := j.handler.Handle(ctx, command.ComputeMonthlyRankingCommand{
			StudentID:     id,
			Month:         month.String(),
			Publish:       true,
			CorrelationID: stats.RunID,
		})
		if err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, StudentError{StudentID: id, Err: err})
			logger.Warn("ranking computation failed", "student_id", id, "error", err)
			continue
		}

		stats.Computed++
		logger.Debug("ranking computed", "student_id", id, "total", result.Breakdown.Total)
	}

	if j.config.Board != nil {
		pruned, err := j.config.Board.Retain(ctx, month, ids)
		if err != nil {
			logger.Warn("failed to prune ranking board", "error", err)
		}
		stats.Pruned = pruned
	}

	logger.Info("monthly ranking run completed",
		"total", stats.TotalStudents,
		"computed", stats.Computed,
		"failed", stats.Failed,
		"pruned", stats.Pruned,
	)

	if stats.TotalStudents > 0 {
		rate := float64(stats.Failed) / float64(stats.TotalStudents)
		if rate > j.config.MaxFailureRate {
			return stats, fmt.Errorf("ranking failed for %d of %d students", stats.Failed, stats.TotalStudents)
		}
	}
	return stats, nil
}

// LastRunStats returns the stats of the most recent run, or nil.
func (j *ComputeMonthlyRankingsJob) LastRunStats() *RankingRunStats {
	return j.lastRunStats.Load()
}
