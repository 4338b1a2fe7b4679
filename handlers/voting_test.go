package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/quickpoll/engine"
	"github.com/danielhkuo/quickpoll/models"
	"github.com/danielhkuo/quickpoll/ratelimit"
	"github.com/danielhkuo/quickpoll/testutil"
)

func voteBody(pollID string, optionID int64) models.VoteRequest {
	return models.VoteRequest{PollID: pollID, OptionID: &optionID}
}

func TestVote(t *testing.T) {
	srv := setupHandlers(t)
	p := testutil.CreateTestPoll(t, srv.dbx, "Vote", "", "A", "B")

	w := httptest.NewRecorder()
	srv.voting.Vote(w, testutil.MakeRequest("POST", "/api/vote", voteBody(p.UniqueID, p.OptionIDs[0]), fromIP("10.2.0.1")))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.VoteResponse
	testutil.AssertJSON(t, w, &resp)

	if !resp.Success || resp.Message != "Vote recorded successfully" {
		t.Errorf("Unexpected response %+v", resp)
	}
	if resp.TotalVotes != 1 || resp.UserVoteOptionID != p.OptionIDs[0] {
		t.Errorf("Expected one vote for A, got %+v", resp)
	}
	if len(resp.Options) != 2 || resp.Options[0].VoteCount != 1 || resp.Options[0].Percentage != 100 {
		t.Errorf("Unexpected options %+v", resp.Options)
	}

	// Same address, other option
	w = httptest.NewRecorder()
	srv.voting.Vote(w, testutil.MakeRequest("POST", "/api/vote", voteBody(p.UniqueID, p.OptionIDs[1]), fromIP("10.2.0.1")))
	testutil.AssertStatus(t, w, http.StatusForbidden)
	var failure models.ErrorResponse
	testutil.AssertJSON(t, w, &failure)
	if failure.Message != engine.MsgAlreadyVoted {
		t.Errorf("Expected '%s', got '%s'", engine.MsgAlreadyVoted, failure.Message)
	}

	// The read side reports the vote
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/get_poll?id="+p.UniqueID, nil)
	req.Header.Set("X-Forwarded-For", "10.2.0.1")
	srv.results.GetPoll(w, req)
	var poll models.GetPollResponse
	testutil.AssertJSON(t, w, &poll)
	if !poll.HasVoted || poll.UserVoteOptionID == nil || *poll.UserVoteOptionID != p.OptionIDs[0] {
		t.Errorf("Expected has_voted for A, got %+v", poll)
	}
}

func TestVote_Errors(t *testing.T) {
	srv := setupHandlers(t)
	p := testutil.CreateTestPoll(t, srv.dbx, "Open", "", "A", "B")
	other := testutil.CreateTestPoll(t, srv.dbx, "Other", "", "X", "Y")
	closed := testutil.CreateTestPoll(t, srv.dbx, "Closed", "", "A", "B")
	testutil.ExpireTestPoll(t, srv.dbx, closed.ID, time.Minute)

	tests := []struct {
		name           string
		method         string
		body           interface{}
		expectedStatus int
		expectedMsg    string
	}{
		{"missing option id", "POST", models.VoteRequest{PollID: p.UniqueID}, http.StatusBadRequest, "Poll ID and Option ID are required"},
		{"unknown poll", "POST", voteBody("zzzzzzzz", p.OptionIDs[0]), http.StatusNotFound, engine.MsgPollNotFound},
		{"option from another poll", "POST", voteBody(p.UniqueID, other.OptionIDs[0]), http.StatusForbidden, engine.MsgInvalidOption},
		{"expired poll", "POST", voteBody(closed.UniqueID, closed.OptionIDs[0]), http.StatusForbidden, engine.MsgPollExpired},
		{"wrong method", "GET", nil, http.StatusMethodNotAllowed, engine.MsgMethodNotAllowed},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.voting.Vote(w, testutil.MakeRequest(tt.method, "/api/vote", tt.body, fromIP(fmt.Sprintf("10.3.0.%d", i))))

			testutil.AssertStatus(t, w, tt.expectedStatus)
			var resp models.ErrorResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.Success || resp.Message != tt.expectedMsg {
				t.Errorf("Expected '%s', got %+v", tt.expectedMsg, resp)
			}
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.voting.Vote(w, httptest.NewRequest("POST", "/api/vote", strings.NewReader("[")))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}

func TestVote_ViewToken(t *testing.T) {
	srv := setupHandlers(t)
	public := testutil.CreateTestPoll(t, srv.dbx, "Public", "", "A", "B")
	locked := testutil.CreateTestPoll(t, srv.dbx, "Locked", "s3cret", "A", "B")

	t.Run("token in query blocks voting on a public poll", func(t *testing.T) {
		path := "/api/vote?view_token=" + url.QueryEscape(srv.signer.Issue(public.UniqueID))
		w := httptest.NewRecorder()
		srv.voting.Vote(w, testutil.MakeRequest("POST", path, voteBody(public.UniqueID, public.OptionIDs[0]), fromIP("10.4.0.1")))

		testutil.AssertStatus(t, w, http.StatusForbidden)
		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Message != engine.MsgViewOnlyVoting {
			t.Errorf("Expected view-only message, got '%s'", resp.Message)
		}
	})

	t.Run("token in body needs the password", func(t *testing.T) {
		body := voteBody(locked.UniqueID, locked.OptionIDs[0])
		body.ViewToken = srv.signer.Issue(locked.UniqueID)

		w := httptest.NewRecorder()
		srv.voting.Vote(w, testutil.MakeRequest("POST", "/api/vote", body, fromIP("10.4.0.2")))
		testutil.AssertStatus(t, w, http.StatusForbidden)
		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		if !resp.RequiresPassword || resp.Message != "Password is required to vote on this poll" {
			t.Errorf("Expected password prompt, got %+v", resp)
		}

		body.Password = "s3cret"
		w = httptest.NewRecorder()
		srv.voting.Vote(w, testutil.MakeRequest("POST", "/api/vote", body, fromIP("10.4.0.2")))
		testutil.AssertStatus(t, w, http.StatusOK)
	})

	t.Run("direct link needs no password", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.voting.Vote(w, testutil.MakeRequest("POST", "/api/vote", voteBody(locked.UniqueID, locked.OptionIDs[1]), fromIP("10.4.0.3")))
		testutil.AssertStatus(t, w, http.StatusOK)
	})
}

func TestVote_UntrustedPeerCannotSpoofIP(t *testing.T) {
	srv := setupHandlers(t)
	p := testutil.CreateTestPoll(t, srv.dbx, "Spoof", "", "A", "B")

	tests := []struct {
		name           string
		forwardedFor   string
		optionID       int64
		expectedStatus int
	}{
		{"first vote", "1.1.1.1", p.OptionIDs[0], http.StatusOK},
		{"new forwarded address, same peer", "2.2.2.2", p.OptionIDs[1], http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/api/vote", voteBody(p.UniqueID, tt.optionID), fromIP(tt.forwardedFor))
			req.RemoteAddr = "203.0.113.50:40000"

			w := httptest.NewRecorder()
			srv.voting.Vote(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}

	var ip string
	if err := srv.dbx.Get(&ip, `SELECT ip_address FROM votes WHERE poll_id = $1`, p.ID); err != nil {
		t.Fatal(err)
	}
	if ip != "203.0.113.50" {
		t.Errorf("Expected the vote keyed by the peer address, got %s", ip)
	}
}

func TestVote_RateLimit(t *testing.T) {
	srv := setupHandlers(t)
	ip := fromIP("198.51.100.20")

	// Rejected requests still count against the limit
	for i := 0; i < srv.cfg.MaxVotesPerMinute; i++ {
		w := httptest.NewRecorder()
		srv.voting.Vote(w, testutil.MakeRequest("POST", "/api/vote", models.VoteRequest{}, ip))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	}

	w := httptest.NewRecorder()
	srv.voting.Vote(w, testutil.MakeRequest("POST", "/api/vote", models.VoteRequest{}, ip))
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Message != ratelimit.MsgBlocked {
		t.Errorf("Expected '%s', got '%s'", ratelimit.MsgBlocked, resp.Message)
	}
}
