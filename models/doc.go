// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: title, options, expiration_type, expiration_value, password
  - OptionInput: text, image (data URI)
  - VoteRequest: poll_id, option_id, view_token, password

# Response Types

Every response carries "success"; failures add "message" and, for password
gates, "requires_password":

  - CreatePollResponse: poll_id, message
  - ListPollsResponse: polls, count, total, page, per_page, total_pages
  - GetPollResponse: poll, options, all_options, winner, total_votes, ...
  - VoteResponse: message, options, total_votes, user_vote_option_id
  - ErrorResponse: success, message, requires_password

# Domain Types

  - Poll: stored poll including password hash and frozen winner
  - Option: option text, image path and running vote_count
  - PollInfo / OptionResult: public projections of the above

# Constants

Expiration types:

	ExpirationHours = "hours"
	ExpirationDays  = "days"

Rate limited actions:

	ActionCreatePoll = "create_poll"
	ActionVote       = "vote"
*/
package models
