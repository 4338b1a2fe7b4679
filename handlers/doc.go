// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the QuickPoll API.

# Handler Types

Each handler is a struct holding the engine and config:

  - PollHandler: poll creation and the active poll listing
  - ResultsHandler: reading a single poll with results
  - VotingHandler: casting a vote

Handlers are created via constructor functions:

	pollHandler := handlers.NewPollHandler(eng, cfg)

# Endpoints

	POST /api/create_poll            → CreatePoll (201, returns poll_id)
	GET  /api/get_all_polls          → ListPolls (page, per_page)
	GET  /api/get_poll?id=           → GetPoll (view_token, password)
	POST /api/vote                   → Vote (view_token in body or query)

Routes are registered without a method pattern so each handler answers
wrong methods itself with a JSON 405. create_poll and vote apply the per-IP
rate limit before anything else, so a blocked client gets 429 even for a
wrong method.

# Error Responses

Failures are *engine.Error values written as

	{"success": false, "message": "...", "requires_password": true}

with the status taken from the error kind. Internal errors are logged and
the client only sees a generic message.

# Links

Image paths and poll links are made absolute using BASE_URL, or the
request host and scheme when BASE_URL is unset.
*/
package handlers
