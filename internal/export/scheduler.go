package export

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	runnerNotConfiguredMessageConstant = "scheduler requires an export runner"
	scheduledRunFailedMessageConstant  = "Scheduled export run failed; waiting for the next interval"
	schedulerStartedMessageConstant    = "Export scheduler started"
	schedulerStoppedMessageConstant    = "Export scheduler stopped"
	logFieldIntervalConstant           = "interval"
)

// ErrRunnerNotConfigured indicates that NewScheduler received no runner.
var ErrRunnerNotConfigured = errors.New(runnerNotConfiguredMessageConstant)

// Runner performs one export run.
type Runner interface {
	Run(executionContext context.Context, configuration Configuration) (Report, error)
}

// Scheduler repeats export runs on the configured interval.
type Scheduler struct {
	logger *zap.Logger
	runner Runner
	clock  clockwork.Clock
}

// NewScheduler constructs a Scheduler. A nil clock uses the real clock.
func NewScheduler(logger *zap.Logger, runner Runner, clock clockwork.Clock) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrRunnerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{logger: logger, runner: runner, clock: clock}, nil
}

// Run performs one export immediately. With a zero interval it returns that run's error; otherwise
// it keeps running on every tick, logging failed runs, until the context is canceled.
func (scheduler *Scheduler) Run(executionContext context.Context, configuration Configuration) error {
	_, firstRunError := scheduler.runner.Run(executionContext, configuration)
	if configuration.Interval <= 0 {
		return firstRunError
	}

	scheduler.logger.Info(schedulerStartedMessageConstant, zap.Duration(logFieldIntervalConstant, configuration.Interval))
	scheduler.reportFailure(firstRunError)

	ticker := scheduler.clock.NewTicker(configuration.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-executionContext.Done():
			scheduler.logger.Info(schedulerStoppedMessageConstant)
			return nil
		case <-ticker.Chan():
			_, runError := scheduler.runner.Run(executionContext, configuration)
			scheduler.reportFailure(runError)
		}
	}
}

func (scheduler *Scheduler) reportFailure(runError error) {
	if runError == nil || isCancellation(runError) {
		return
	}
	scheduler.logger.Warn(scheduledRunFailedMessageConstant, zap.Error(runError))
}
