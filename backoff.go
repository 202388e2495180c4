// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff defines an interface for providing a back off for retrying
// connection attempts.  See ConstBackoff and ExpBackoff for implementations
// of the interface.  The policy is pluggable on a Manager via WithBackoff.
type Backoff interface {
	Duration(attemptNumber int) time.Duration
}

// ConstBackoff defines a constant backoff for retrying connection attempts.
type ConstBackoff struct {
	DurationMs time.Duration
}

// Duration is the constant backoff duration based on the attempt number.
func (b ConstBackoff) Duration(attempt int) time.Duration {
	return time.Millisecond * time.Duration(b.DurationMs)
}

// ExpBackoff defines an exponential backoff with jitter for retrying
// connection attempts.
type ExpBackoff struct{}

// Duration is the exponential backoff duration based on the attempt number.
func (b ExpBackoff) Duration(attempt int) time.Duration {
	r := rand.Float64()
	return time.Millisecond * time.Duration(math.Exp2(float64(attempt))*5*(r+0.5))
}

// sleepWithContext waits for the duration unless the context is done first,
// in which case the context's error is returned.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
