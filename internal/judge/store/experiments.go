package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/zeromicro/go-zero/core/logx"

	"cryptoj/internal/judge/model"
	appErr "cryptoj/pkg/errors"
)

// Experiment loads a full grading configuration.
func (s *Store) Experiment(ctx context.Context, expID int64) (*model.Experiment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT expid, title, cpu_limit, compile_time_limit, compile_memory_limit,
		       run_time_limit, run_memory_limit, compile_commands, checkpoint_path
		FROM experiments WHERE expid = ?`, expID)

	var (
		exp      model.Experiment
		commands []byte
	)
	err := row.Scan(&exp.ExpID, &exp.Title, &exp.CPULimit, &exp.CompileTimeLimit,
		&exp.CompileMemoryLimit, &exp.RunTimeLimit, &exp.RunMemoryLimit,
		&commands, &exp.CheckpointPath)
	if err == sql.ErrNoRows {
		return nil, appErr.Newf(appErr.ExperimentNotFound, "experiment %d not found", expID)
	}
	if err != nil {
		logx.WithContext(ctx).Errorf("query experiment %d failed: %v", expID, err)
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query experiment %d failed", expID)
	}
	if err := json.Unmarshal(commands, &exp.CompileCommands); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalError, "decode compile commands failed")
	}
	return &exp, nil
}

// ExperimentTitle loads just the display title.
func (s *Store) ExperimentTitle(ctx context.Context, expID int64) (string, error) {
	var title string
	err := s.db.QueryRowContext(ctx,
		`SELECT title FROM experiments WHERE expid = ?`, expID).Scan(&title)
	if err == sql.ErrNoRows {
		return "", appErr.Newf(appErr.ExperimentNotFound, "experiment %d not found", expID)
	}
	if err != nil {
		logx.WithContext(ctx).Errorf("query experiment title %d failed: %v", expID, err)
		return "", appErr.Wrapf(err, appErr.DatabaseError, "query experiment title failed")
	}
	return title, nil
}
