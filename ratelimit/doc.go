// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ratelimit implements per-IP, per-action attempt limits backed by the
rate_limits table.

	limiter := ratelimit.New(dbx, dialect, time.Hour)
	d := limiter.Check(ctx, ip, "vote", 10, time.Minute)
	if !d.Allowed {
		// 429 with d.Message
	}

Each check runs in one transaction:

 1. A live lockout (blocked_until in the future) denies immediately.
 2. A record whose last attempt is inside the window is incremented while
    it is under the limit.
 3. A full window sets blocked_until = now + block duration and denies.
 4. Otherwise the record is (re)started with a count of 1.

The window is fixed, so a client can spend a full allowance on both sides of
a window boundary. Storage errors deny the request.
*/
package ratelimit
