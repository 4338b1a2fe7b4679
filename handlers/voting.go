// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quickpoll/cliparse"
	"github.com/danielhkuo/quickpoll/engine"
	"github.com/danielhkuo/quickpoll/middleware"
	"github.com/danielhkuo/quickpoll/models"
)

type VotingHandler struct {
	engine *engine.Engine
	cfg    cliparse.Config
}

func NewVotingHandler(eng *engine.Engine, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{engine: eng, cfg: cfg}
}

// Vote handles POST /api/vote
func (h *VotingHandler) Vote(w http.ResponseWriter, r *http.Request) {
	ip := middleware.GetClientIP(r, h.cfg.TrustedProxies)

	if err := h.engine.Admit(r.Context(), ip, models.ActionVote); err != nil {
		writeError(w, err)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, engine.MethodNotAllowed())
		return
	}

	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	// The view token may also ride on the page URL
	viewToken := req.ViewToken
	if viewToken == "" {
		viewToken = r.URL.Query().Get("view_token")
	}

	resp, err := h.engine.CastVote(r.Context(), engine.VoteInput{
		UniqueID:  req.PollID,
		OptionID:  req.OptionID,
		ViewToken: viewToken,
		Password:  req.Password,
		IP:        ip,
		BaseURL:   middleware.BaseURL(r, h.cfg.BaseURL),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
