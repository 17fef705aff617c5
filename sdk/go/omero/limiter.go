// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// limiterHoldPeriod is how long Acquire holds back new requests after
// a 503. Tests shorten it.
var limiterHoldPeriod = time.Second

// requestLimiter caps the number of requests in flight when the
// server signals overload. There is no cap at all until the first 503
// arrives; each 503 after that halves the cap (at most once per hold
// period) and every subsequent success nudges it back up.
type requestLimiter struct {
	inFlight  int64
	ceiling   int64 // 0 = uncapped
	lock      sync.Mutex
	cond      *sync.Cond
	holdUntil time.Time
}

// Acquire reserves an in-flight slot, blocking while the limiter is
// in a hold period or at its ceiling.
//
// A canceled ctx makes Acquire return right away, possibly
// overcommitted. The caller is expected to see ctx.Err(), skip the
// request, and Release the slot.
func (lim *requestLimiter) Acquire(ctx context.Context) {
	lim.lock.Lock()
	if lim.cond == nil {
		lim.cond = sync.NewCond(&lim.lock)
	}
	for ctx.Err() == nil {
		hold := time.Until(lim.holdUntil)
		if hold < 0 {
			break
		}
		// Sit out the remainder of the hold period started by
		// the last 503.
		lim.lock.Unlock()
		timer := time.NewTimer(hold)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		lim.lock.Lock()
	}
	slot := make(chan struct{})
	go func() {
		// Closes slot once there is room below the ceiling, or
		// once ctx cancellation has been noticed (at which
		// point Acquire has returned or is about to).
		for lim.ceiling > 0 && lim.inFlight >= lim.ceiling && ctx.Err() == nil {
			lim.cond.Wait()
		}
		close(slot)
	}()
	select {
	case <-slot:
		// The waiting goroutine holds the lock when Wait()
		// returns.
		lim.inFlight++
		lim.lock.Unlock()
	case <-ctx.Done():
		// The waiting goroutine may still be parked in Wait();
		// it will reacquire the lock on wakeup, so hand the
		// unlock to it or the Lock() below can deadlock.
		go func() {
			<-slot
			lim.lock.Unlock()
		}()
		// inFlight can exceed the ceiling here until the
		// caller Releases.
		lim.lock.Lock()
		lim.inFlight++
		lim.lock.Unlock()
	}
}

// Release returns a slot reserved by Acquire.
func (lim *requestLimiter) Release() {
	lim.lock.Lock()
	lim.inFlight--
	lim.lock.Unlock()
	lim.cond.Signal()
}

// Report adjusts the ceiling based on one (*http.Client).Do outcome:
// down on 503, up on success. It reports whether resp was a 503.
func (lim *requestLimiter) Report(resp *http.Response, err error) bool {
	if err != nil {
		return false
	}
	lim.lock.Lock()
	defer lim.lock.Unlock()
	if resp.StatusCode == http.StatusServiceUnavailable {
		if lim.ceiling == 0 {
			// First 503 ends the uncapped phase. Start from
			// the concurrency actually reached rather than
			// some arbitrary constant.
			lim.ceiling = lim.inFlight
		}
		if time.Now().After(lim.holdUntil) {
			lim.ceiling = (lim.ceiling + 1) / 2
			// One reduction per hold period, no matter how
			// many 503s come back in it.
			lim.holdUntil = time.Now().Add(limiterHoldPeriod)
		}
		return true
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 400 && lim.ceiling > 0 {
		// Raise the ceiling by 10% (at least 1) per success,
		// jumping straight to twice the current concurrency
		// when that is higher.
		bump := lim.ceiling / 10
		if bump < 1 {
			bump = 1
		}
		lim.ceiling += bump
		if twice := lim.inFlight * 2; twice > lim.ceiling {
			lim.ceiling = twice
		}
		lim.cond.Broadcast()
	}
	return false
}
