package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// WithTransaction 在事务中执行函数，SQLite BUSY/LOCKED 时自动重试
//
//	err := store.WithTransaction(ctx, func(tx *sql.Tx) error {
//	    _, err := tx.ExecContext(ctx, "INSERT INTO liveconf_config ...")
//	    return err
//	})
func (s *SQLStore) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return withTransaction(s.db, ctx, fn)
}

// withTransaction 最多重试12次（attempt 0-11），指数退避带抖动；
// context 有 deadline 时，预计超时即提前退出
func withTransaction(db *sql.DB, ctx context.Context, fn func(*sql.Tx) error) error {
	const maxRetries = 12
	const baseDelay = 25 * time.Millisecond

	deadline, hasDeadline := ctx.Deadline()

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := executeSingleTransaction(db, ctx, fn)
		if err == nil || !isSQLiteBusyError(err) {
			return err
		}

		if attempt < maxRetries-1 {
			nextDelay := calculateBackoffDelay(attempt, baseDelay)
			if hasDeadline && time.Now().Add(nextDelay).After(deadline) {
				return fmt.Errorf("transaction aborted: context deadline would be exceeded (attempted %d retries): %w", attempt+1, err)
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("transaction cancelled after %d retries: %w", attempt+1, ctx.Err())
			case <-time.After(nextDelay):
			}
			continue
		}

		return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, err)
	}

	return fmt.Errorf("unexpected: retry loop exited without result")
}

// executeSingleTransaction 执行单次事务(无重试)
func executeSingleTransaction(db *sql.DB, ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// panic 时回滚后继续 panic，不吞掉编程错误
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isSQLiteBusyError 检测是否是SQLite的BUSY/LOCKED错误（可重试）
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"database is locked",
		"database is deadlocked",
		"database table is locked",
		"sqlite_busy",
		"sqlite_locked",
	} {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

// calculateBackoffDelay 指数退避延迟：baseDelay * 2^attempt * [0.5, 0.995]
func calculateBackoffDelay(attempt int, baseDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	randomFactor := float64(time.Now().UnixNano()%100) / 100.0
	return time.Duration(float64(delay) * (0.5 + 0.5*randomFactor))
}
