package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TokenCleanupSpec   = "@every 24h"
	AccountCleanupSpec = "@every 168h"
)

// NewScheduler registers the periodic cleanups. The caller starts and stops
// the returned cron.
func NewScheduler(db *gorm.DB, u *Uploader) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})),
	)

	_, err := c.AddFunc(TokenCleanupSpec, func() {
		n, err := TokenCleanup(db, time.Now())
		if err != nil {
			zap.L().Error("Token cleanup failed", zap.Error(err))
			return
		}

		zap.L().Debug("Token cleanup finished", zap.Int64("removed", n))
	})
	if err != nil {
		return nil, err
	}

	_, err = c.AddFunc(AccountCleanupSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		n, err := AccountCleanup(ctx, db, u, time.Now())
		if err != nil {
			zap.L().Error("Account cleanup failed", zap.Error(err))
			return
		}

		zap.L().Debug("Account cleanup finished", zap.Int64("removed", n))
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Cleanup jobs scheduled",
		zap.String("tokens", TokenCleanupSpec),
		zap.String("accounts", AccountCleanupSpec))

	return c, nil
}

// cronLogger routes cron's own logs to zap
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	zap.L().Sugar().Debugw(msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	zap.L().Sugar().Errorw(msg, append(kv, "error", err)...)
}
