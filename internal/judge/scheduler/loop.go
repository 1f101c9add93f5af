// Package scheduler runs the judge loop: it drains pending submissions in
// submit order, persists each verdict and announces it on the event bus.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cryptoj/internal/judge/event"
	"cryptoj/internal/judge/model"
	"cryptoj/pkg/utils/logger"
)

// Store is the persistence surface the loop needs.
type Store interface {
	OldestPending(ctx context.Context) (*model.Submission, error)
	Experiment(ctx context.Context, expID int64) (*model.Experiment, error)
	UpdateResult(ctx context.Context, subID int64, result *model.JudgeResult) error
	ExperimentTitle(ctx context.Context, expID int64) (string, error)
	HasPriorAccepted(ctx context.Context, expID, uid, excludeSubID int64) (bool, error)
	Username(ctx context.Context, uid int64) (string, error)
}

// Judger resolves one submission into a terminal result.
type Judger interface {
	Judge(ctx context.Context, sub *model.Submission, exp *model.Experiment) *model.JudgeResult
}

// Publisher is the announcement surface, satisfied by *event.Bus.
type Publisher interface {
	Publish(topic event.Topic, payload any)
}

// Loop polls for pending submissions and judges them one at a time. Wake
// cuts the poll interval short when a new submission arrives.
type Loop struct {
	store    Store
	judger   Judger
	bus      Publisher
	interval time.Duration
	wake     chan struct{}
}

// NewLoop creates a judge loop polling at the given interval.
func NewLoop(store Store, judger Judger, bus Publisher, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Loop{
		store:    store,
		judger:   judger,
		bus:      bus,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Wake asks the loop to re-query immediately. Never blocks; concurrent
// wakes collapse into one.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sub, err := l.store.OldestPending(ctx)
		if err != nil {
			logger.Error(ctx, "query pending submission failed", zap.Error(err))
			if !l.wait(ctx) {
				return ctx.Err()
			}
			continue
		}
		if sub == nil {
			if !l.wait(ctx) {
				return ctx.Err()
			}
			continue
		}
		l.judgeOne(ctx, sub)
	}
}

// wait sleeps until the interval elapses, Wake is called, or ctx is
// cancelled. Returns false on cancellation.
func (l *Loop) wait(ctx context.Context) bool {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-l.wake:
		return true
	}
}

func (l *Loop) judgeOne(ctx context.Context, sub *model.Submission) {
	logger.Info(ctx, "judging submission",
		zap.Int64("subid", sub.SubID), zap.Int64("expid", sub.ExpID), zap.String("language", sub.Language))

	var result *model.JudgeResult
	exp, err := l.store.Experiment(ctx, sub.ExpID)
	if err != nil {
		result = model.FailureResult(err)
	} else {
		result = l.judger.Judge(ctx, sub, exp)
	}

	if err := l.store.UpdateResult(ctx, sub.SubID, result); err != nil {
		// The row is still pending; back off before the loop retries it.
		logger.Error(ctx, "persist verdict failed",
			zap.Int64("subid", sub.SubID), zap.Error(err))
		l.wait(ctx)
		return
	}

	title, err := l.store.ExperimentTitle(ctx, sub.ExpID)
	if err != nil {
		logger.Warn(ctx, "query experiment title failed",
			zap.Int64("expid", sub.ExpID), zap.Error(err))
		if exp != nil {
			title = exp.Title
		}
	}

	l.bus.Publish(event.TopicJudge, model.JudgeEvent{
		ExpID:          sub.ExpID,
		SubID:          sub.SubID,
		UID:            sub.UID,
		Title:          title,
		CompileSuccess: result.CompileSuccess,
		Time:           result.Time,
		Memory:         result.Memory,
		Accepted:       result.Accepted,
		AcceptedCount:  result.AcceptedCount,
	})

	if !result.Accepted {
		return
	}
	prior, err := l.store.HasPriorAccepted(ctx, sub.ExpID, sub.UID, sub.SubID)
	if err != nil {
		logger.Error(ctx, "query accepted submissions failed", zap.Error(err))
		return
	}
	if prior {
		return
	}
	username, err := l.store.Username(ctx, sub.UID)
	if err != nil {
		logger.Error(ctx, "query username failed", zap.Int64("uid", sub.UID), zap.Error(err))
		return
	}
	l.bus.Publish(event.TopicCongrats, model.CongratsEvent{
		ExpID:    sub.ExpID,
		SubID:    sub.SubID,
		UID:      sub.UID,
		Title:    title,
		Username: username,
		Time:     result.Time,
		Memory:   result.Memory,
	})
}
