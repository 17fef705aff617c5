// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	. "gopkg.in/check.v1"
)

var _ = Suite(&limiterSuite{})

type limiterSuite struct{}

func (*limiterSuite) TestUncappedBeforeFirst503(c *C) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(time.Minute))
	defer cancel()
	lim := requestLimiter{}

	var wg sync.WaitGroup
	wg.Add(1000)
	for i := 0; i < 1000; i++ {
		go func() {
			lim.Acquire(ctx)
			wg.Done()
		}()
	}
	wg.Wait()
	c.Check(lim.inFlight, Equals, int64(1000))
	wg.Add(1000)
	for i := 0; i < 1000; i++ {
		go func() {
			lim.Release()
			wg.Done()
		}()
	}
	wg.Wait()
	c.Check(lim.inFlight, Equals, int64(0))
}

func (*limiterSuite) TestAcquireCanceled(c *C) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(time.Minute))
	defer cancel()
	lim := requestLimiter{}

	lim.ceiling = 1
	lim.Acquire(ctx)
	ctxShort, cancel := context.WithDeadline(ctx, time.Now().Add(time.Millisecond))
	defer cancel()
	// A canceled Acquire comes back overcommitted; the caller
	// Releases without sending a request.
	lim.Acquire(ctxShort)
	c.Check(lim.inFlight, Equals, int64(2))
	c.Check(ctxShort.Err(), NotNil)
	lim.Release()
	lim.Release()
	c.Check(lim.inFlight, Equals, int64(0))
}

func (*limiterSuite) TestHoldPeriodAfter503(c *C) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(time.Minute))
	defer cancel()
	lim := requestLimiter{}

	defer func(orig time.Duration) { limiterHoldPeriod = orig }(limiterHoldPeriod)
	limiterHoldPeriod = time.Second / 10

	for i := 0; i < 5; i++ {
		lim.Acquire(ctx)
	}
	is503 := lim.Report(&http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	c.Check(is503, Equals, true)
	// 5 in flight, halved (rounding up).
	c.Check(lim.ceiling, Equals, int64(3))
	for i := 0; i < 5; i++ {
		lim.Release()
	}

	// Free slots or not, nothing starts during the hold period.

	// A context that expires mid-hold gets out early with
	// DeadlineExceeded.
	acquire := time.Now()
	ctxShort, cancel := context.WithDeadline(ctx, time.Now().Add(limiterHoldPeriod/10))
	defer cancel()
	lim.Acquire(ctxShort)
	c.Check(ctxShort.Err(), Equals, context.DeadlineExceeded)
	c.Check(time.Since(acquire) < limiterHoldPeriod/2, Equals, true)
	c.Check(lim.holdUntil.Sub(time.Now()) > limiterHoldPeriod/2, Equals, true)
	lim.Release()

	// A context that outlives the hold waits it out.
	ctxLong, cancel := context.WithDeadline(ctx, time.Now().Add(limiterHoldPeriod*2))
	defer cancel()
	acquire = time.Now()
	lim.Acquire(ctxLong)
	c.Check(time.Since(acquire) > limiterHoldPeriod/10, Equals, true)
	c.Check(time.Since(acquire) < limiterHoldPeriod, Equals, true)
	c.Check(ctxLong.Err(), IsNil)
	lim.Release()

	// Success raises the ceiling again.
	lim.Acquire(ctx)
	c.Check(lim.Report(&http.Response{StatusCode: http.StatusOK}, nil), Equals, false)
	c.Check(lim.ceiling > 3, Equals, true)
	lim.Release()

	// Report tolerates a nil Response when Do failed outright.
	c.Check(lim.Report(nil, errors.New("network error")), Equals, false)
}
