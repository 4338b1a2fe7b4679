// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("/api/vote", middleware.WithLogging(voteHandler.Vote))

Logs method, path, status, remote_addr and duration_ms once the handler
returns.

# CORS Middleware

Reflects the request Origin (or "*") and answers OPTIONS preflights with
200 without calling the wrapped handler.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.FailureResponse(w, http.StatusForbidden, "Incorrect password", true)

Every failure body has the shape {"success":false,"message":...} with
requires_password added only when true.

Parse JSON request bodies. ParseJSONBody reads at most DefaultMaxBodyBytes;
ParseLimitedJSONBody takes an explicit limit. IsBodyTooLarge tells an
oversized body apart from malformed JSON:

	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			middleware.FailureResponse(w, http.StatusRequestEntityTooLarge, "Request body too large", false)
			return
		}
		middleware.FailureResponse(w, http.StatusBadRequest, "Invalid request body", false)
		return
	}

# Client IP and Base URL

GetClientIP resolves the caller address used for rate limiting and the
one-vote-per-IP rule. When the direct peer is a trusted proxy it checks, in
this order: Client-IP, the first hop of X-Forwarded-For, X-Real-IP. Any
other peer is identified by RemoteAddr alone. With no trusted list,
loopback and private peers are trusted, which covers a reverse proxy on
the same host or network.

BaseURL returns the configured public origin or derives one from the
request (TLS, X-Forwarded-Proto, X-Forwarded-Ssl). Localhost is always
http.
*/
package middleware
