// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/danielhkuo/quickpoll/engine"
	"github.com/danielhkuo/quickpoll/models"
	"github.com/danielhkuo/quickpoll/testutil"
)

func TestGetPoll(t *testing.T) {
	srv := setupHandlers(t)

	open := testutil.CreateTestPoll(t, srv.dbx, "Open", "", "A", "B")
	locked := testutil.CreateTestPoll(t, srv.dbx, "Locked", "s3cret", "A", "B")
	token := url.QueryEscape(srv.signer.Issue(locked.UniqueID))

	tests := []struct {
		name             string
		method           string
		query            string
		expectedStatus   int
		expectedMsg      string
		requiresPassword bool
	}{
		{"direct link", "GET", "?id=" + open.UniqueID, http.StatusOK, "", false},
		{"direct link skips password", "GET", "?id=" + locked.UniqueID, http.StatusOK, "", false},
		{"view-only without password", "GET", "?id=" + locked.UniqueID + "&view_token=" + token, http.StatusForbidden, "Password is required to view this poll", true},
		{"view-only wrong password", "GET", "?id=" + locked.UniqueID + "&view_token=" + token + "&password=nope", http.StatusForbidden, engine.MsgIncorrectPassword, true},
		{"view-only correct password", "GET", "?id=" + locked.UniqueID + "&view_token=" + token + "&password=s3cret", http.StatusOK, "", true},
		{"missing id", "GET", "", http.StatusBadRequest, "Poll ID is required", false},
		{"unknown poll", "GET", "?id=zzzzzzzz", http.StatusNotFound, engine.MsgPollNotFound, false},
		{"wrong method", "POST", "?id=" + open.UniqueID, http.StatusMethodNotAllowed, engine.MsgMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.results.GetPoll(w, httptest.NewRequest(tt.method, "/api/get_poll"+tt.query, nil))

			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusOK {
				var resp models.GetPollResponse
				testutil.AssertJSON(t, w, &resp)
				if !resp.Success || resp.RequiresPassword != tt.requiresPassword {
					t.Errorf("Unexpected response %+v", resp)
				}
				if resp.IsViewOnly != tt.requiresPassword {
					t.Errorf("Expected is_view_only=%v, got %v", tt.requiresPassword, resp.IsViewOnly)
				}
				return
			}

			var resp models.ErrorResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.Message != tt.expectedMsg || resp.RequiresPassword != tt.requiresPassword {
				t.Errorf("Expected '%s' (requires_password=%v), got %+v", tt.expectedMsg, tt.requiresPassword, resp)
			}
		})
	}
}

func TestGetPoll_PasswordFailureHidesPoll(t *testing.T) {
	srv := setupHandlers(t)
	locked := testutil.CreateTestPoll(t, srv.dbx, "Top secret title", "s3cret", "Hidden option", "B")
	token := url.QueryEscape(srv.signer.Issue(locked.UniqueID))

	w := httptest.NewRecorder()
	srv.results.GetPoll(w, httptest.NewRequest("GET", "/api/get_poll?id="+locked.UniqueID+"&view_token="+token, nil))

	testutil.AssertStatus(t, w, http.StatusForbidden)
	var body map[string]interface{}
	testutil.AssertJSON(t, w, &body)
	for _, key := range []string{"poll", "options", "total_votes"} {
		if _, ok := body[key]; ok {
			t.Errorf("Password failure leaked %q", key)
		}
	}
}

func TestGetPoll_ImageURLs(t *testing.T) {
	srv := setupHandlers(t)
	p := testutil.CreateTestPoll(t, srv.dbx, "Pictures", "", "Cat", "Dog")
	srv.dbx.MustExec(`UPDATE poll_options SET image_path = 'uploads/cat.png' WHERE id = $1`, p.OptionIDs[0])

	req := httptest.NewRequest("GET", "/api/get_poll?id="+p.UniqueID, nil)
	req.Host = "polls.example.org"
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()

	srv.results.GetPoll(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.GetPollResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Options[0].ImagePath == nil || *resp.Options[0].ImagePath != "https://polls.example.org/uploads/cat.png" {
		t.Errorf("Expected absolute image URL, got %v", resp.Options[0].ImagePath)
	}
	if resp.Options[1].ImagePath != nil {
		t.Error("Expected no image for second option")
	}
}

func TestGetPoll_Expired(t *testing.T) {
	srv := setupHandlers(t)
	p := testutil.CreateTestPoll(t, srv.dbx, "Done", "", "A", "B", "C")
	testutil.AddTestVotes(t, srv.dbx, p.ID, p.OptionIDs[0], 1)
	testutil.AddTestVotes(t, srv.dbx, p.ID, p.OptionIDs[2], 4)
	testutil.ExpireTestPoll(t, srv.dbx, p.ID, time.Hour)

	w := httptest.NewRecorder()
	srv.results.GetPoll(w, httptest.NewRequest("GET", "/api/get_poll?id="+p.UniqueID, nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.GetPollResponse
	testutil.AssertJSON(t, w, &resp)

	if !resp.IsExpired || resp.Winner == nil || resp.Winner.ID != p.OptionIDs[2] {
		t.Fatalf("Expected expired poll won by C, got %+v", resp)
	}
	if len(resp.Options) != 1 || resp.Options[0].Percentage != 100 || resp.TotalVotes != 4 {
		t.Errorf("Expected winner-only view, got %+v", resp.Options)
	}
	if len(resp.AllOptions) != 3 || resp.AllOptions[0].Percentage != 80 || resp.AllOptions[1].Percentage != 20 {
		t.Errorf("Unexpected ranking %+v", resp.AllOptions)
	}
}
