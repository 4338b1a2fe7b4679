// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine implements the QuickPoll operations independent of HTTP.

# Operations

	Admit       per-IP rate limit for create_poll and vote
	CreatePoll  validate, store images, insert poll and options
	ListPolls   page through active polls with direct and view-only links
	GetPoll     access check, lazy expiry, result projection
	CastVote    ordered vote checks, then an atomic commit

Every failure is an *Error carrying a Kind that maps to an HTTP status:

	var e *engine.Error
	if errors.As(err, &e) {
		status := e.Kind.Status()
	}

# Access Modes

A request that carries a valid view token for the poll is view-only.
Without one it is a direct-link request. Passwords are only checked for
view-only requests; direct links never need one. View-only requests may
vote only when the poll has a password and the caller supplies it.

# Expiry

Polls expire lazily. The first read or vote after expires_at flips
is_expired and freezes the winner (highest vote_count, lowest id on ties,
none when nobody voted). Once set, the winner never changes. The Sweeper
does the same for polls nobody reads and deletes polls that expired more
than the retention window ago.

Expired polls show only the winner at 100% with total_votes equal to the
winner's count; the full ranking is in all_options.
*/
package engine
