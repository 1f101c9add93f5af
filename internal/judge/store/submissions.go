package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"cryptoj/internal/judge/model"
	appErr "cryptoj/pkg/errors"
)

// OldestPending returns the oldest non-obsolete pending submission, or nil
// when the queue is empty.
func (s *Store) OldestPending(ctx context.Context) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subid, uid, expid, submit_time, code, language
		FROM submissions
		WHERE pending = 1 AND obsolete = 0
		ORDER BY submit_time ASC
		LIMIT 1`)

	var sub model.Submission
	err := row.Scan(&sub.SubID, &sub.UID, &sub.ExpID, &sub.SubmitTime, &sub.Code, &sub.Language)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logx.WithContext(ctx).Errorf("query pending submission failed: %v", err)
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query pending submission failed")
	}
	sub.Pending = true
	return &sub, nil
}

// UpdateResult writes a judging result onto the submission row and clears
// the pending flag, in one statement. An incomplete pass leaves the
// aggregate columns NULL.
func (s *Store) UpdateResult(ctx context.Context, subID int64, result *model.JudgeResult) error {
	var (
		t, mem, count sql.NullInt64
		accepted      sql.NullBool
		checkpoints   []byte
	)
	if result.Completed {
		t = sql.NullInt64{Int64: result.Time, Valid: true}
		mem = sql.NullInt64{Int64: result.Memory, Valid: true}
		count = sql.NullInt64{Int64: result.AcceptedCount, Valid: true}
		accepted = sql.NullBool{Bool: result.Accepted, Valid: true}
	}
	if result.Checkpoints != nil {
		data, err := json.Marshal(result.Checkpoints)
		if err != nil {
			return appErr.Wrapf(err, appErr.InternalError, "encode checkpoint results failed")
		}
		checkpoints = data
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET pending = 0, compile_success = ?, compile_output = ?,
		    time = ?, memory = ?, accepted = ?, accepted_count = ?, result = ?
		WHERE subid = ?`,
		result.CompileSuccess, result.CompileOutput,
		t, mem, accepted, count, checkpoints, subID)
	if err != nil {
		logx.WithContext(ctx).Errorf("update submission %d failed: %v", subID, err)
		return appErr.Wrapf(err, appErr.DatabaseError, "update submission %d failed", subID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErr.Newf(appErr.SubmissionNotFound, "submission %d not found", subID)
	}
	return nil
}

// Insert stores a fresh pending submission and returns its id.
func (s *Store) Insert(ctx context.Context, sub *model.Submission) (int64, error) {
	submitTime := sub.SubmitTime
	if submitTime.IsZero() {
		submitTime = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (uid, expid, submit_time, pending, obsolete, code, language)
		VALUES (?, ?, ?, 1, 0, ?, ?)`,
		sub.UID, sub.ExpID, submitTime, sub.Code, sub.Language)
	if err != nil {
		logx.WithContext(ctx).Errorf("insert submission failed: %v", err)
		return 0, appErr.Wrapf(err, appErr.DatabaseError, "insert submission failed")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.DatabaseError, "read submission id failed")
	}
	return id, nil
}

// MarkPending requeues an existing submission for judging.
func (s *Store) MarkPending(ctx context.Context, subID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET pending = 1 WHERE subid = ? AND obsolete = 0`, subID)
	if err != nil {
		logx.WithContext(ctx).Errorf("requeue submission %d failed: %v", subID, err)
		return appErr.Wrapf(err, appErr.DatabaseError, "requeue submission %d failed", subID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErr.Newf(appErr.SubmissionNotFound, "submission %d not found", subID)
	}
	return nil
}

// FindSubmission loads one submission with its recorded result.
func (s *Store) FindSubmission(ctx context.Context, subID int64) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subid, uid, expid, submit_time, pending, obsolete, code, language,
		       compile_success, compile_output, time, memory, accepted, accepted_count, result
		FROM submissions WHERE subid = ?`, subID)

	var (
		sub         model.Submission
		success     sql.NullBool
		output      sql.NullString
		t, mem, cnt sql.NullInt64
		accepted    sql.NullBool
		checkpoints []byte
	)
	err := row.Scan(&sub.SubID, &sub.UID, &sub.ExpID, &sub.SubmitTime, &sub.Pending, &sub.Obsolete,
		&sub.Code, &sub.Language, &success, &output, &t, &mem, &accepted, &cnt, &checkpoints)
	if err == sql.ErrNoRows {
		return nil, appErr.Newf(appErr.SubmissionNotFound, "submission %d not found", subID)
	}
	if err != nil {
		logx.WithContext(ctx).Errorf("query submission %d failed: %v", subID, err)
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query submission %d failed", subID)
	}

	if success.Valid {
		sub.CompileSuccess = &success.Bool
	}
	if output.Valid {
		sub.CompileOutput = &output.String
	}
	if t.Valid {
		sub.Time = &t.Int64
	}
	if mem.Valid {
		sub.Memory = &mem.Int64
	}
	if accepted.Valid {
		sub.Accepted = &accepted.Bool
	}
	if cnt.Valid {
		sub.AcceptedCount = &cnt.Int64
	}
	if len(checkpoints) > 0 {
		if err := json.Unmarshal(checkpoints, &sub.Result); err != nil {
			return nil, appErr.Wrapf(err, appErr.InternalError, "decode checkpoint results failed")
		}
	}
	return &sub, nil
}

// HasPriorAccepted reports whether the user already has another accepted,
// non-obsolete submission for the experiment.
func (s *Store) HasPriorAccepted(ctx context.Context, expID, uid, excludeSubID int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subid FROM submissions
		WHERE expid = ? AND uid = ? AND accepted = 1 AND obsolete = 0 AND subid <> ?
		LIMIT 1`, expID, uid, excludeSubID)

	var subID int64
	err := row.Scan(&subID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		logx.WithContext(ctx).Errorf("query accepted submissions failed: %v", err)
		return false, appErr.Wrapf(err, appErr.DatabaseError, "query accepted submissions failed")
	}
	return true, nil
}

// HasPendingFor reports whether the user already has a pending submission
// for the experiment.
func (s *Store) HasPendingFor(ctx context.Context, expID, uid int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subid FROM submissions
		WHERE expid = ? AND uid = ? AND pending = 1 AND obsolete = 0
		LIMIT 1`, expID, uid)

	var subID int64
	err := row.Scan(&subID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		logx.WithContext(ctx).Errorf("query pending submissions failed: %v", err)
		return false, appErr.Wrapf(err, appErr.DatabaseError, "query pending submissions failed")
	}
	return true, nil
}
