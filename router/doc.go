// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the QuickPoll API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(eng, cfg)

# Endpoints

Health:

	GET /health

API (methods are checked by the handlers, which answer 405 as JSON):

	/api/create_poll   - Create poll (POST)
	/api/get_all_polls - List active polls (GET)
	/api/get_poll      - Poll with results (GET)
	/api/vote          - Cast a vote (POST)

Static:

	GET /uploads/{file} - Option images from UPLOAD_DIR, no directory listing

API routes are wrapped with middleware.WithLogging. CORS is applied to the
whole mux in main.
*/
package router
