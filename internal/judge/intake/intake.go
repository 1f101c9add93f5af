// Package intake validates and enqueues fresh submissions.
package intake

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"cryptoj/internal/judge/model"
	appErr "cryptoj/pkg/errors"
	"cryptoj/pkg/utils/logger"
)

const (
	dedupKeyPrefix = "judge:dedup:"
	dedupTTL       = 24 * time.Hour
)

// Store is the persistence surface intake needs.
type Store interface {
	Experiment(ctx context.Context, expID int64) (*model.Experiment, error)
	HasPendingFor(ctx context.Context, expID, uid int64) (bool, error)
	Insert(ctx context.Context, sub *model.Submission) (int64, error)
}

// Intake accepts submissions: it checks the language against the
// experiment, rejects a second in-flight submission per user, drops exact
// resubmissions for a day via Redis, then enqueues and wakes the judge loop.
type Intake struct {
	store Store
	redis *redis.Client
	wake  func()
}

// New creates an Intake. redis may be nil, which disables deduplication.
// wake is called after every successful enqueue.
func New(store Store, redisClient *redis.Client, wake func()) *Intake {
	if wake == nil {
		wake = func() {}
	}
	return &Intake{store: store, redis: redisClient, wake: wake}
}

// Submit enqueues one submission and returns its id.
func (i *Intake) Submit(ctx context.Context, uid, expID int64, language, code string) (int64, error) {
	exp, err := i.store.Experiment(ctx, expID)
	if err != nil {
		return 0, err
	}
	if _, ok := exp.CompileCommands[language]; !ok {
		return 0, appErr.Newf(appErr.LanguageNotSupported, "experiment %d does not accept language %s", expID, language)
	}

	pending, err := i.store.HasPendingFor(ctx, expID, uid)
	if err != nil {
		return 0, err
	}
	if pending {
		return 0, appErr.Newf(appErr.SubmissionPending, "user %d already has a pending submission for experiment %d", uid, expID)
	}

	if err := i.claimDedup(ctx, uid, expID, language, code); err != nil {
		return 0, err
	}

	subID, err := i.store.Insert(ctx, &model.Submission{
		UID:      uid,
		ExpID:    expID,
		Code:     code,
		Language: language,
	})
	if err != nil {
		return 0, err
	}
	logger.Info(ctx, "submission enqueued",
		zap.Int64("subid", subID), zap.Int64("uid", uid), zap.Int64("expid", expID))
	i.wake()
	return subID, nil
}

// claimDedup reserves the submission fingerprint. Redis outages fail open:
// a duplicate slipping through is judged twice, which is harmless.
func (i *Intake) claimDedup(ctx context.Context, uid, expID int64, language, code string) error {
	if i.redis == nil {
		return nil
	}
	key := dedupKeyPrefix + fingerprint(uid, expID, language, code)
	claimed, err := i.redis.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		logger.Warn(ctx, "dedup check unavailable", zap.Error(err))
		return nil
	}
	if !claimed {
		return appErr.Newf(appErr.DuplicateSubmission, "identical submission received within the last %v", dedupTTL)
	}
	return nil
}

func fingerprint(uid, expID int64, language, code string) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%d#%d#%s#%s", uid, expID, language, code)))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
