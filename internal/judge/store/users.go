package store

import (
	"context"
	"database/sql"

	"github.com/zeromicro/go-zero/core/logx"

	appErr "cryptoj/pkg/errors"
)

// Username loads a user's display name.
func (s *Store) Username(ctx context.Context, uid int64) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE uid = ?`, uid).Scan(&username)
	if err == sql.ErrNoRows {
		return "", appErr.Newf(appErr.UserNotFound, "user %d not found", uid)
	}
	if err != nil {
		logx.WithContext(ctx).Errorf("query user %d failed: %v", uid, err)
		return "", appErr.Wrapf(err, appErr.DatabaseError, "query user %d failed", uid)
	}
	return username, nil
}
