package iteration

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BranchFunc executes one iteration with its counter value. A returned error
// is a faulted branch; it does not abort the other branches.
type BranchFunc func(ctx context.Context, counter int64) error

// Option configures a Driver.
type Option func(d *Driver)

// WithLogger sets the driver logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithConcurrency caps the number of parallel branches; zero means no cap.
func WithConcurrency(limit int) Option {
	return func(d *Driver) { d.concurrency = limit }
}

// Driver runs the branches of a plan.
type Driver struct {
	logger      *zap.Logger
	concurrency int
}

// NewDriver creates a driver.
func NewDriver(opts ...Option) *Driver {
	ret := &Driver{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Run executes the plan. Sequential plans run one branch at a time and stop
// as soon as the for-each completes; parallel plans launch every branch and
// cancel the ones still running once it completes early.
func (d *Driver) Run(ctx context.Context, plan *Plan, fn BranchFunc) (*Result, error) {
	tracker := NewTracker(plan)
	counter := NewCounter(plan.Start, plan.Final)
	var err error
	if plan.Parallel {
		err = d.runParallel(ctx, plan, tracker, counter, fn)
	} else {
		err = d.runSequential(ctx, plan, tracker, counter, fn)
	}
	result := tracker.Result()
	if err != nil {
		return result, err
	}
	if tracker.Failed() {
		return result, fmt.Errorf("%s: %d of %d branches counted: %w", plan.Name, counted(plan, result), plan.BranchCount, ErrCompletionConditionFailure)
	}
	d.logger.Debug("forEach completed",
		zap.String("forEach", plan.Name),
		zap.Int64("launched", result.Launched),
		zap.Int64("successful", result.Successful),
		zap.Int64("faulted", result.Faulted),
		zap.Bool("early", result.Early))
	return result, nil
}

func (d *Driver) runSequential(ctx context.Context, plan *Plan, tracker *Tracker, counter *Counter, fn BranchFunc) error {
	for !tracker.Done() {
		value, ok := counter.Next()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tracker.Launch()
		err := fn(ctx, value)
		d.branchDone(plan, value, err)
		tracker.MarkDone(err != nil)
	}
	return nil
}

func (d *Driver) runParallel(ctx context.Context, plan *Plan, tracker *Tracker, counter *Counter, fn BranchFunc) error {
	if tracker.Done() {
		return nil
	}
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(branchCtx)
	if d.concurrency > 0 {
		group.SetLimit(d.concurrency)
	}
	for {
		value, ok := counter.Next()
		if !ok {
			break
		}
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			tracker.Launch()
			err := fn(groupCtx, value)
			d.branchDone(plan, value, err)
			if tracker.MarkDone(err != nil) {
				cancel()
			}
			return nil
		})
	}
	_ = group.Wait()
	if tracker.Done() {
		return nil
	}
	return ctx.Err()
}

func (d *Driver) branchDone(plan *Plan, value int64, err error) {
	if err != nil {
		d.logger.Warn("forEach branch faulted", zap.String("forEach", plan.Name), zap.Int64("counter", value), zap.Error(err))
		return
	}
	d.logger.Debug("forEach branch completed", zap.String("forEach", plan.Name), zap.Int64("counter", value))
}

func counted(plan *Plan, result *Result) int64 {
	if plan.SuccessfulOnly {
		return result.Successful
	}
	return result.Completed
}
