// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package gormdb

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm/logger"
)

var _ logger.Interface = (*logBridge)(nil)

// logBridge forwards gorm's log output to hclog.  Level filtering is the
// hclog logger's job; gorm's own LogMode is a no-op.
type logBridge struct {
	log hclog.Logger
}

func (l *logBridge) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (l *logBridge) Info(_ context.Context, msg string, args ...any) {
	l.log.Info(fmt.Sprintf(msg, args...))
}

func (l *logBridge) Warn(_ context.Context, msg string, args ...any) {
	l.log.Warn(fmt.Sprintf(msg, args...))
}

func (l *logBridge) Error(_ context.Context, msg string, args ...any) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

func (l *logBridge) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if err == nil && !l.log.IsTrace() {
		return
	}
	statement, rows := fc()
	if err != nil {
		l.log.Error("statement failed", "statement", statement, "elapsed", time.Since(begin), "error", err)
		return
	}
	l.log.Trace("statement complete", "statement", statement, "rows", rows, "elapsed", time.Since(begin))
}
