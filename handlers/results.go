// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/quickpoll/cliparse"
	"github.com/danielhkuo/quickpoll/engine"
	"github.com/danielhkuo/quickpoll/middleware"
)

type ResultsHandler struct {
	engine *engine.Engine
	cfg    cliparse.Config
}

func NewResultsHandler(eng *engine.Engine, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{engine: eng, cfg: cfg}
}

// GetPoll handles GET /api/get_poll?id=&view_token=&password=
// Reading a poll past its expiry freezes the winner before results are
// returned.
func (h *ResultsHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, engine.MethodNotAllowed())
		return
	}

	q := r.URL.Query()
	resp, err := h.engine.GetPoll(r.Context(), engine.GetPollInput{
		UniqueID:  q.Get("id"),
		ViewToken: q.Get("view_token"),
		Password:  q.Get("password"),
		IP:        middleware.GetClientIP(r, h.cfg.TrustedProxies),
		BaseURL:   middleware.BaseURL(r, h.cfg.BaseURL),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
